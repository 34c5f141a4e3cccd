// Package costimpact estimates the billing impact of an anomaly from Cost
// Explorer daily spend in the affected accounts.
package costimpact

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ce "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// spikeFactor marks the latest daily cost as a spike when it exceeds the
// period average by this multiple.
const spikeFactor = 1.5

// ceServices maps an event kind to the Cost Explorer SERVICE dimension value
// its spend lands under.
var ceServices = map[models.EventKind]string{
	models.KindEC2Launch:    "Amazon Elastic Compute Cloud - Compute",
	models.KindLambdaInvoke: "AWS Lambda",
	models.KindEBSVolume:    "Amazon Elastic Compute Cloud - Storage",
}

// kindRecommendations are the fixed cost-optimisation suggestions attached
// per event kind.
var kindRecommendations = map[models.EventKind][]string{
	models.KindEC2Launch: {
		"Review instance types and consider using Spot instances for non-critical workloads",
		"Implement auto-shutdown for development instances",
		"Use AWS Instance Scheduler to optimize runtime",
	},
	models.KindLambdaInvoke: {
		"Review function timeout settings and memory allocation",
		"Implement circuit breakers to prevent runaway functions",
		"Consider using Lambda reserved concurrency",
	},
	models.KindEBSVolume: {
		"Review volume types and consider using GP3 for cost optimization",
		"Implement lifecycle policies for snapshots",
		"Delete unattached volumes regularly",
	},
}

// Analyzer queries Cost Explorer for anomaly cost impact.
type Analyzer struct {
	client awsx.CostExplorerClient
	log    *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New constructs an Analyzer.
func New(client awsx.CostExplorerClient, log *zap.Logger) *Analyzer {
	return &Analyzer{client: client, log: log, now: time.Now}
}

// Analyze returns the month-to-date daily cost profile of the affected
// accounts for the service behind kind, flagging a spike when the latest
// daily cost runs 50% above the period average. With no affected accounts or
// an unknown kind there is nothing to query; the result reports an unknown
// impact with the kind's fixed recommendations.
func (a *Analyzer) Analyze(ctx context.Context, kind models.EventKind, accounts []string) (*models.CostAnalysis, error) {
	analysis := &models.CostAnalysis{
		EstimatedImpact: "Unknown",
		Recommendations: append([]string(nil), kindRecommendations[kind]...),
	}

	service, ok := ceServices[kind]
	if !ok || len(accounts) == 0 {
		return analysis, nil
	}

	end := a.now().UTC()
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily, err := a.dailyCosts(ctx, start, end, service, accounts)
	if err != nil {
		return nil, fmt.Errorf("cost impact for %s: %w", kind.DisplayName(), err)
	}
	if len(daily) == 0 {
		return analysis, nil
	}

	var total float64
	for _, c := range daily {
		total += c
	}
	avg := total / float64(len(daily))
	latest := daily[len(daily)-1]

	if avg > 0 && latest > avg*spikeFactor {
		analysis.EstimatedImpact = "HIGH"
		analysis.Recommendations = append([]string{fmt.Sprintf(
			"Latest daily cost ($%.2f) is 50%% higher than average ($%.2f)", latest, avg,
		)}, analysis.Recommendations...)
	} else {
		analysis.EstimatedImpact = "MODERATE"
	}

	analysis.Breakdown = &models.CostBreakdown{
		AverageDailyUSD:   avg,
		LatestDailyUSD:    latest,
		MonthlyProjection: avg * 30,
	}
	return analysis, nil
}

// dailyCosts calls GetCostAndUsage with DAILY granularity filtered to the
// affected accounts and service, returning one cost per returned day in
// chronological order.
func (a *Analyzer) dailyCosts(ctx context.Context, start, end time.Time, service string, accounts []string) ([]float64, error) {
	var daily []float64

	var nextToken *string
	for {
		out, err := a.client.GetCostAndUsage(ctx, &ce.GetCostAndUsageInput{
			TimePeriod: &cetypes.DateInterval{
				Start: aws.String(start.Format("2006-01-02")),
				End:   aws.String(end.Format("2006-01-02")),
			},
			Granularity: cetypes.GranularityDaily,
			Metrics:     []string{"UnblendedCost"},
			Filter: &cetypes.Expression{
				And: []cetypes.Expression{
					{
						Dimensions: &cetypes.DimensionValues{
							Key:    cetypes.DimensionLinkedAccount,
							Values: accounts,
						},
					},
					{
						Dimensions: &cetypes.DimensionValues{
							Key:    cetypes.DimensionService,
							Values: []string{service},
						},
					},
				},
			},
			NextPageToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("GetCostAndUsage: %w", err)
		}

		for _, result := range out.ResultsByTime {
			metric, ok := result.Total["UnblendedCost"]
			if !ok {
				continue
			}
			daily = append(daily, parseCostFloat(metric.Amount))
		}

		if out.NextPageToken == nil {
			break
		}
		nextToken = out.NextPageToken
	}

	return daily, nil
}

// parseCostFloat converts a Cost Explorer amount string to a float64.
// Missing or malformed amounts are treated as zero cost.
func parseCostFloat(amount *string) float64 {
	if amount == nil {
		return 0
	}
	v, err := strconv.ParseFloat(*amount, 64)
	if err != nil {
		return 0
	}
	return v
}
