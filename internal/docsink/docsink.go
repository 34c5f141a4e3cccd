// Package docsink upserts anomaly documents into an Amazon Q Business index
// in fixed-size batches.
package docsink

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/qbusiness"
	qbtypes "github.com/aws/aws-sdk-go-v2/service/qbusiness/types"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// batchSize is the BatchPutDocument limit.
const batchSize = 10

// Sink writes anomaly documents to one Q Business application index.
type Sink struct {
	client        awsx.QBusinessClient
	applicationID string
	indexID       string
	log           *zap.Logger
}

// NewSink constructs a Sink.
func NewSink(client awsx.QBusinessClient, applicationID, indexID string, log *zap.Logger) *Sink {
	return &Sink{client: client, applicationID: applicationID, indexID: indexID, log: log}
}

// Put upserts all documents in batches. Per-document and per-batch failures
// are collected into the result instead of aborting the sync; the returned
// error is reserved for invalid sink configuration.
func (s *Sink) Put(ctx context.Context, docs []models.AnomalyDocument) (*models.SyncResult, error) {
	if s.applicationID == "" || s.indexID == "" {
		return nil, fmt.Errorf("document sink is not configured")
	}

	result := &models.SyncResult{}
	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		s.putBatch(ctx, docs[start:end], result)
	}

	s.log.Info("document sync finished",
		zap.Int("synced", result.SuccessCount),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// putBatch sends one batch and records its outcome. A failed call marks every
// document in the batch as failed.
func (s *Sink) putBatch(ctx context.Context, batch []models.AnomalyDocument, result *models.SyncResult) {
	payload := make([]qbtypes.Document, 0, len(batch))
	for _, doc := range batch {
		payload = append(payload, toQDocument(doc))
	}

	out, err := s.client.BatchPutDocument(ctx, &qbusiness.BatchPutDocumentInput{
		ApplicationId: aws.String(s.applicationID),
		IndexId:       aws.String(s.indexID),
		Documents:     payload,
	})
	if err != nil {
		s.log.Warn("document batch failed", zap.Int("size", len(batch)), zap.Error(err))
		for _, doc := range batch {
			result.Failed = append(result.Failed, models.FailedDocument{
				ID:    doc.ID,
				Error: err.Error(),
			})
		}
		return
	}

	failed := make(map[string]string, len(out.FailedDocuments))
	for _, f := range out.FailedDocuments {
		msg := "unknown error"
		if f.Error != nil && f.Error.ErrorMessage != nil {
			msg = *f.Error.ErrorMessage
		}
		failed[aws.ToString(f.Id)] = msg
	}

	for _, doc := range batch {
		if msg, ok := failed[doc.ID]; ok {
			s.log.Warn("document rejected", zap.String("id", doc.ID), zap.String("error", msg))
			result.Failed = append(result.Failed, models.FailedDocument{ID: doc.ID, Error: msg})
			continue
		}
		result.SuccessCount++
	}
}

// toQDocument converts an anomaly document into the Q Business wire shape,
// with flat string attributes and a plain-text content blob.
func toQDocument(doc models.AnomalyDocument) qbtypes.Document {
	attrs := []qbtypes.DocumentAttribute{
		stringAttribute("account_id", doc.Attributes.AccountID),
		stringAttribute("account_alias", doc.Attributes.AccountAlias),
		stringAttribute("event_name", doc.Attributes.EventName),
		stringAttribute("event_count", fmt.Sprintf("%d", doc.Attributes.EventCount)),
		stringAttribute("anomaly_date", doc.Attributes.AnomalyDate),
		stringAttribute("severity", doc.Attributes.Severity),
	}

	return qbtypes.Document{
		Id:          aws.String(doc.ID),
		Title:       aws.String(doc.Title),
		ContentType: qbtypes.ContentTypePlainText,
		Content: &qbtypes.DocumentContentMemberBlob{
			Value: []byte(doc.Body),
		},
		Attributes: attrs,
	}
}

func stringAttribute(name, value string) qbtypes.DocumentAttribute {
	return qbtypes.DocumentAttribute{
		Name:  aws.String(name),
		Value: &qbtypes.DocumentAttributeValueMemberStringValue{Value: value},
	}
}
