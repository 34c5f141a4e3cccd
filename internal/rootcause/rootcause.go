// Package rootcause runs CloudWatch-backed heuristics that attribute an
// anomaly alert to a likely operational cause.
package rootcause

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

const (
	// lookback is how far before the alert the metric checks reach.
	lookback = time.Hour

	// metricPeriod is the GetMetricStatistics period in seconds.
	metricPeriod = 300

	// scaleOutFactor marks compute capacity growth within the window as
	// auto-scaling activity.
	scaleOutFactor = 1.2

	// highErrorRatePct is the Lambda error-rate threshold, in percent, above
	// which retries become the likely cause of an invocation spike.
	highErrorRatePct = 5.0
)

// Analyzer correlates an alert with CloudWatch metrics from the same window.
type Analyzer struct {
	cw  awsx.CloudWatchClient
	log *zap.Logger
}

// New constructs an Analyzer.
func New(cw awsx.CloudWatchClient, log *zap.Logger) *Analyzer {
	return &Analyzer{cw: cw, log: log}
}

// Analyze inspects CloudWatch metrics for the hour leading up to the alert
// and returns the most likely cause per event kind. When no heuristic fires
// the result keeps its "Unknown" cause at low confidence; callers can still
// render it.
func (a *Analyzer) Analyze(ctx context.Context, alert *models.AnomalyAlert) (*models.RootCauseResult, error) {
	result := &models.RootCauseResult{
		LikelyCause: "Unknown",
		Confidence:  "Low",
	}

	end := alert.AlertTime.UTC()
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := end.Add(-lookback)

	var err error
	switch alert.Kind {
	case models.KindEC2Launch:
		err = a.checkScaling(ctx, start, end, result)
	case models.KindLambdaInvoke:
		err = a.checkLambdaErrors(ctx, start, end, result)
	case models.KindEBSVolume:
		err = a.checkBackupJobs(ctx, start, end, result)
	}
	if err != nil {
		return nil, fmt.Errorf("root cause for %s: %w", alert.Kind.DisplayName(), err)
	}
	return result, nil
}

// checkScaling looks at the account-level vCPU usage metric. A rising count
// inside the window means the launches were capacity growth rather than a
// one-off burst.
func (a *Analyzer) checkScaling(ctx context.Context, start, end time.Time, result *models.RootCauseResult) error {
	points, err := a.metricPoints(ctx, start, end, "AWS/Usage", "ResourceCount", cwtypes.StatisticMaximum, []cwtypes.Dimension{
		{Name: aws.String("Service"), Value: aws.String("EC2")},
		{Name: aws.String("Type"), Value: aws.String("Resource")},
		{Name: aws.String("Resource"), Value: aws.String("vCPU")},
		{Name: aws.String("Class"), Value: aws.String("Standard/OnDemand")},
	})
	if err != nil {
		return err
	}
	if len(points) < 2 {
		return nil
	}

	first, last := points[0], points[len(points)-1]
	if first > 0 && last > first*scaleOutFactor {
		result.LikelyCause = "Auto-scaling activity"
		result.Confidence = "High"
		result.Evidence = append(result.Evidence,
			fmt.Sprintf("Running vCPU count rose from %.0f to %.0f during the window", first, last))
		result.Recommendations = append(result.Recommendations,
			"Review auto-scaling policies and thresholds")
	}
	return nil
}

// checkLambdaErrors compares the account-aggregate error and invocation sums.
// A high error rate points at retries amplifying the invocation count.
func (a *Analyzer) checkLambdaErrors(ctx context.Context, start, end time.Time, result *models.RootCauseResult) error {
	errors, err := a.metricPoints(ctx, start, end, "AWS/Lambda", "Errors", cwtypes.StatisticSum, nil)
	if err != nil {
		return err
	}
	invocations, err := a.metricPoints(ctx, start, end, "AWS/Lambda", "Invocations", cwtypes.StatisticSum, nil)
	if err != nil {
		return err
	}

	totalErrors := sum(errors)
	totalInvocations := sum(invocations)
	if totalInvocations == 0 {
		return nil
	}

	rate := totalErrors / totalInvocations * 100
	if rate > highErrorRatePct {
		result.LikelyCause = "Function errors causing retries"
		result.Confidence = "High"
		result.Evidence = append(result.Evidence, fmt.Sprintf("Error rate: %.1f%%", rate))
		result.Recommendations = append(result.Recommendations,
			"Review function logs and fix errors")
	}
	return nil
}

// checkBackupJobs looks for completed AWS Backup jobs inside the window,
// which would explain a burst of volume creation.
func (a *Analyzer) checkBackupJobs(ctx context.Context, start, end time.Time, result *models.RootCauseResult) error {
	completed, err := a.metricPoints(ctx, start, end, "AWS/Backup", "NumberOfBackupJobsCompleted", cwtypes.StatisticSum, nil)
	if err != nil {
		return err
	}
	if sum(completed) > 0 {
		result.LikelyCause = "Scheduled backup process"
		result.Confidence = "Medium"
		result.Evidence = append(result.Evidence, "Backup job detected during anomaly window")
		result.Recommendations = append(result.Recommendations,
			"Review backup schedules and retention policies")
	}
	return nil
}

// metricPoints fetches one statistic for a metric over [start, end] and
// returns the values in timestamp order.
func (a *Analyzer) metricPoints(ctx context.Context, start, end time.Time, namespace, metric string, stat cwtypes.Statistic, dims []cwtypes.Dimension) ([]float64, error) {
	out, err := a.cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metric),
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(metricPeriod),
		Statistics: []cwtypes.Statistic{stat},
		Dimensions: dims,
	})
	if err != nil {
		return nil, fmt.Errorf("GetMetricStatistics %s/%s: %w", namespace, metric, err)
	}

	points := out.Datapoints
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(*points[j].Timestamp)
	})

	values := make([]float64, 0, len(points))
	for _, p := range points {
		switch stat {
		case cwtypes.StatisticSum:
			if p.Sum != nil {
				values = append(values, *p.Sum)
			}
		case cwtypes.StatisticMaximum:
			if p.Maximum != nil {
				values = append(values, *p.Maximum)
			}
		case cwtypes.StatisticAverage:
			if p.Average != nil {
				values = append(values, *p.Average)
			}
		}
	}
	return values, nil
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
