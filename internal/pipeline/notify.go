package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/correlation"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/insight"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/severity"
)

// costAnalyzer estimates billing impact for an alert.
type costAnalyzer interface {
	Analyze(ctx context.Context, kind models.EventKind, accounts []string) (*models.CostAnalysis, error)
}

// rootCauseAnalyzer attributes an alert to a likely operational cause.
type rootCauseAnalyzer interface {
	Analyze(ctx context.Context, alert *models.AnomalyAlert) (*models.RootCauseResult, error)
}

// usageVerifier gathers live-usage numbers for an alert's kind.
type usageVerifier interface {
	Verify(ctx context.Context, kind models.EventKind) (*models.UsageDetails, error)
}

// reportPublisher delivers the composed report.
type reportPublisher interface {
	Publish(ctx context.Context, report models.Report) error
}

// Enricher drives the alert-triggered notify cycle: parse the raw detector
// alert, gather the optional enrichment sections, compose the report, and
// publish it. Every enrichment is individually non-fatal; a missing section
// degrades the report instead of suppressing it.
type Enricher struct {
	publisher reportPublisher
	cost      costAnalyzer
	rootCause rootCauseAnalyzer
	usage     usageVerifier
	metrics   *MetricsRecorder
	log       *zap.Logger

	// namePrefix is the detector naming convention stripped during parsing.
	namePrefix string

	sensitive map[string]bool

	now func() time.Time
}

// EnricherOptions collects the optional collaborators of an Enricher.
type EnricherOptions struct {
	Cost      costAnalyzer
	RootCause rootCauseAnalyzer
	Usage     usageVerifier
	Metrics   *MetricsRecorder

	SensitiveAccounts []string
}

// NewEnricher constructs an Enricher publishing through the given publisher.
func NewEnricher(publisher reportPublisher, namePrefix string, opts EnricherOptions, log *zap.Logger) *Enricher {
	sensitive := make(map[string]bool, len(opts.SensitiveAccounts))
	for _, id := range opts.SensitiveAccounts {
		sensitive[id] = true
	}
	return &Enricher{
		publisher:  publisher,
		cost:       opts.Cost,
		rootCause:  opts.RootCause,
		usage:      opts.Usage,
		metrics:    opts.Metrics,
		log:        log,
		namePrefix: namePrefix,
		sensitive:  sensitive,
		now:        time.Now,
	}
}

// HandleAlert processes one raw alert message end to end and returns the
// published report. Only an unparseable alert or a failed publish is fatal.
func (e *Enricher) HandleAlert(ctx context.Context, message string) (models.Report, error) {
	started := e.now()

	alert, err := insight.ParseAlert(message, e.namePrefix, started.UTC())
	if err != nil {
		return models.Report{}, fmt.Errorf("parse alert: %w", err)
	}

	corr := correlation.Classify(alert.Kind, alert.AffectedAccounts)
	sev := severity.Score(severity.FromAlert(alert), corr, e.sensitive)

	sections := insight.Sections{
		Severity:    sev,
		Correlation: &corr,
	}

	if e.cost != nil {
		cost, err := e.cost.Analyze(ctx, alert.Kind, alert.AffectedAccounts)
		if err != nil {
			e.log.Warn("cost analysis failed", zap.Error(err))
		} else {
			sections.Cost = cost
		}
	}

	if e.rootCause != nil {
		rca, err := e.rootCause.Analyze(ctx, &alert)
		if err != nil {
			e.log.Warn("root cause analysis failed", zap.Error(err))
		} else {
			sections.RootCause = rca
		}
	}

	if e.usage != nil {
		details, err := e.usage.Verify(ctx, alert.Kind)
		if err != nil {
			e.log.Warn("usage verification failed", zap.Error(err))
		} else {
			sections.Usage = details
		}
	}

	report := insight.Compose(alert, sections)

	if err := e.publisher.Publish(ctx, report); err != nil {
		e.metrics.RecordNotify(ctx, false, e.now().Sub(started))
		return models.Report{}, fmt.Errorf("publish report: %w", err)
	}

	e.metrics.RecordNotify(ctx, true, e.now().Sub(started))
	e.log.Info("alert enriched and published",
		zap.String("detector", alert.DetectorName),
		zap.String("severity", string(sev.Level)),
		zap.Int("accounts", len(alert.AffectedAccounts)))
	return report, nil
}
