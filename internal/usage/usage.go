// Package usage verifies an anomaly alert against live resource usage in the
// management account, giving the notification a ground-truth snapshot next to
// the detector's statistics.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

const (
	pageSize     = 100
	metricPeriod = 300
)

// Verifier gathers per-kind usage numbers for the anomaly window.
type Verifier struct {
	ec2Client    awsx.EC2Client
	lambdaClient awsx.LambdaClient
	cw           awsx.CloudWatchClient
	log          *zap.Logger

	// window is the anomaly evaluation period the counts cover.
	window time.Duration

	now func() time.Time
}

// NewVerifier constructs a Verifier covering the given anomaly window.
func NewVerifier(ec2Client awsx.EC2Client, lambdaClient awsx.LambdaClient, cw awsx.CloudWatchClient, window time.Duration, log *zap.Logger) *Verifier {
	return &Verifier{
		ec2Client:    ec2Client,
		lambdaClient: lambdaClient,
		cw:           cw,
		log:          log,
		window:       window,
		now:          time.Now,
	}
}

// Verify returns the usage snapshot matching the alert's kind. Unknown kinds
// have nothing to verify and return nil without error.
func (v *Verifier) Verify(ctx context.Context, kind models.EventKind) (*models.UsageDetails, error) {
	switch kind {
	case models.KindEC2Launch:
		return v.ec2Usage(ctx)
	case models.KindEBSVolume:
		return v.ebsUsage(ctx)
	case models.KindLambdaInvoke:
		return v.lambdaUsage(ctx)
	default:
		return nil, nil
	}
}

// ec2Usage counts currently running instances and instances launched inside
// the anomaly window.
func (v *Verifier) ec2Usage(ctx context.Context) (*models.UsageDetails, error) {
	end := v.now().UTC()
	start := end.Add(-v.window)

	details := &models.UsageDetails{Kind: models.KindEC2Launch}

	var nextToken *string
	for {
		out, err := v.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			MaxResults: aws.Int32(pageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeInstances: %w", err)
		}

		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == ec2types.InstanceStateNameRunning {
					details.RunningInstances++
				}
				if instance.LaunchTime != nil && inWindow(*instance.LaunchTime, start, end) {
					details.LaunchedInWindow++
				}
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	v.log.Debug("verified ec2 usage",
		zap.Int("running", details.RunningInstances),
		zap.Int("launched_in_window", details.LaunchedInWindow))
	return details, nil
}

// ebsUsage counts all volumes and volumes created inside the anomaly window.
func (v *Verifier) ebsUsage(ctx context.Context) (*models.UsageDetails, error) {
	end := v.now().UTC()
	start := end.Add(-v.window)

	details := &models.UsageDetails{Kind: models.KindEBSVolume}

	var nextToken *string
	for {
		out, err := v.ec2Client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
			MaxResults: aws.Int32(pageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("DescribeVolumes: %w", err)
		}

		for _, volume := range out.Volumes {
			details.TotalVolumes++
			if volume.CreateTime != nil && inWindow(*volume.CreateTime, start, end) {
				details.CreatedInWindow++
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	v.log.Debug("verified ebs usage",
		zap.Int("total", details.TotalVolumes),
		zap.Int("created_in_window", details.CreatedInWindow))
	return details, nil
}

// lambdaUsage lists every function and reads its invocation metric twice,
// once over the anomaly window and once over the trailing 24 hours.
func (v *Verifier) lambdaUsage(ctx context.Context) (*models.UsageDetails, error) {
	end := v.now().UTC()

	details := &models.UsageDetails{Kind: models.KindLambdaInvoke}

	var marker *string
	for {
		out, err := v.lambdaClient.ListFunctions(ctx, &lambda.ListFunctionsInput{
			MaxItems: aws.Int32(pageSize),
			Marker:   marker,
		})
		if err != nil {
			return nil, fmt.Errorf("ListFunctions: %w", err)
		}

		for _, fn := range out.Functions {
			name := aws.ToString(fn.FunctionName)

			windowCount, err := v.invocationAverage(ctx, name, end.Add(-v.window), end)
			if err != nil {
				return nil, err
			}
			dayCount, err := v.invocationAverage(ctx, name, end.Add(-24*time.Hour), end)
			if err != nil {
				return nil, err
			}

			details.Functions = append(details.Functions, models.FunctionUsage{
				FunctionName:      name,
				WindowInvocations: windowCount,
				DayAvgInvocations: dayCount,
			})
		}

		if out.NextMarker == nil {
			break
		}
		marker = out.NextMarker
	}

	return details, nil
}

// invocationAverage reads the average Invocations datapoint for one function
// over [start, end]. No datapoints means the function was idle.
func (v *Verifier) invocationAverage(ctx context.Context, functionName string, start, end time.Time) (int, error) {
	out, err := v.cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/Lambda"),
		MetricName: aws.String("Invocations"),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("FunctionName"), Value: aws.String(functionName)},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(metricPeriod),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil {
		return 0, fmt.Errorf("GetMetricStatistics Invocations for %s: %w", functionName, err)
	}
	if len(out.Datapoints) == 0 || out.Datapoints[0].Average == nil {
		return 0, nil
	}
	return int(*out.Datapoints[0].Average), nil
}

// inWindow reports whether t falls inside (start, end].
func inWindow(t, start, end time.Time) bool {
	return t.After(start) && !t.After(end)
}
