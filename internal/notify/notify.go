// Package notify publishes composed insight reports to an SNS topic.
package notify

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// maxSubjectLen is the SNS subject length limit.
const maxSubjectLen = 100

// Publisher sends reports to a single SNS topic.
type Publisher struct {
	client   awsx.SNSClient
	topicARN string
	log      *zap.Logger
}

// NewPublisher constructs a Publisher for the given topic.
func NewPublisher(client awsx.SNSClient, topicARN string, log *zap.Logger) *Publisher {
	return &Publisher{client: client, topicARN: topicARN, log: log}
}

// Publish sends one report. Subjects longer than the SNS limit are truncated
// rather than rejected.
func (p *Publisher) Publish(ctx context.Context, report models.Report) error {
	subject := truncateSubject(report.Subject)

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(report.Body),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.topicARN, err)
	}

	p.log.Info("published notification",
		zap.String("message_id", aws.ToString(out.MessageId)),
		zap.String("severity", string(report.Severity.Level)))
	return nil
}

// truncateSubject caps the subject at the SNS limit without splitting a
// multi-byte rune, so emoji-prefixed subjects stay valid UTF-8.
func truncateSubject(s string) string {
	if len(s) <= maxSubjectLen {
		return s
	}
	cut := maxSubjectLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
