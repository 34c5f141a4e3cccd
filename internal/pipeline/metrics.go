package pipeline

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/awsx"
)

// MetricsRecorder publishes per-cycle health metrics to a custom CloudWatch
// namespace. A nil recorder is valid and records nothing, so metrics stay
// optional for callers.
type MetricsRecorder struct {
	cw        awsx.CloudWatchClient
	namespace string
	log       *zap.Logger
}

// NewMetricsRecorder constructs a recorder for the given namespace.
func NewMetricsRecorder(cw awsx.CloudWatchClient, namespace string, log *zap.Logger) *MetricsRecorder {
	return &MetricsRecorder{cw: cw, namespace: namespace, log: log}
}

// RecordSync publishes the outcome of one sync cycle.
func (m *MetricsRecorder) RecordSync(ctx context.Context, anomalies, synced, failed int, elapsed time.Duration) {
	m.put(ctx,
		datum("AnomaliesFound", float64(anomalies), cwtypes.StandardUnitCount),
		datum("DocumentsSynced", float64(synced), cwtypes.StandardUnitCount),
		datum("SyncErrors", float64(failed), cwtypes.StandardUnitCount),
		datum("SyncDuration", elapsed.Seconds(), cwtypes.StandardUnitSeconds),
	)
}

// RecordNotify publishes the outcome of one alert-enrichment cycle.
func (m *MetricsRecorder) RecordNotify(ctx context.Context, published bool, elapsed time.Duration) {
	ok := 0.0
	if published {
		ok = 1.0
	}
	m.put(ctx,
		datum("NotificationsPublished", ok, cwtypes.StandardUnitCount),
		datum("NotifyDuration", elapsed.Seconds(), cwtypes.StandardUnitSeconds),
	)
}

// put sends the data points. Metric delivery is best effort; failures are
// logged and never surface to the cycle.
func (m *MetricsRecorder) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	if m == nil {
		return
	}
	_, err := m.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.log.Warn("failed to publish cycle metrics", zap.Error(err))
	}
}

func datum(name string, value float64, unit cwtypes.StandardUnit) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now().UTC()),
	}
}
