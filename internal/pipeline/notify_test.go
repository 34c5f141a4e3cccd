package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

type mockPublisher struct {
	reports []models.Report
	err     error
}

func (m *mockPublisher) Publish(_ context.Context, report models.Report) error {
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, report)
	return nil
}

type mockCost struct {
	analysis *models.CostAnalysis
	err      error
	kinds    []models.EventKind
}

func (m *mockCost) Analyze(_ context.Context, kind models.EventKind, _ []string) (*models.CostAnalysis, error) {
	m.kinds = append(m.kinds, kind)
	return m.analysis, m.err
}

type mockRootCause struct {
	result *models.RootCauseResult
	err    error
}

func (m *mockRootCause) Analyze(_ context.Context, _ *models.AnomalyAlert) (*models.RootCauseResult, error) {
	return m.result, m.err
}

type mockUsage struct {
	details *models.UsageDetails
	err     error
}

func (m *mockUsage) Verify(_ context.Context, _ models.EventKind) (*models.UsageDetails, error) {
	return m.details, m.err
}

const alertMessage = `{
	"Detector": "multi-account-ec2-usage-anomaly",
	"Anomalies": 12,
	"TopAccounts": "111111111111 (45 events), 222222222222 (30 events)"
}`

func TestHandleAlert_PublishesEnrichedReport(t *testing.T) {
	publisher := &mockPublisher{}
	cost := &mockCost{analysis: &models.CostAnalysis{
		EstimatedImpact: "HIGH",
		Recommendations: []string{"Review instance types"},
	}}
	rootCause := &mockRootCause{result: &models.RootCauseResult{
		LikelyCause: "Auto-scaling response to load",
		Confidence:  "High",
	}}
	usage := &mockUsage{details: &models.UsageDetails{
		Kind:             models.KindEC2Launch,
		RunningInstances: 42,
		LaunchedInWindow: 9,
	}}

	enricher := NewEnricher(publisher, "multi-account-", EnricherOptions{
		Cost:      cost,
		RootCause: rootCause,
		Usage:     usage,
	}, zap.NewNop())

	report, err := enricher.HandleAlert(context.Background(), alertMessage)
	if err != nil {
		t.Fatalf("HandleAlert: %v", err)
	}

	if len(publisher.reports) != 1 {
		t.Fatalf("published %d reports; want 1", len(publisher.reports))
	}
	if publisher.reports[0].Subject != report.Subject {
		t.Error("returned report differs from the published one")
	}
	if len(cost.kinds) != 1 || cost.kinds[0] != models.KindEC2Launch {
		t.Errorf("cost analyzed kinds %v; want the alert's kind", cost.kinds)
	}

	for _, want := range []string{
		"Auto-scaling response to load",
		"HIGH",
		"Total Running EC2 Count: 42",
	} {
		if !strings.Contains(report.Body, want) {
			t.Errorf("report body missing %q:\n%s", want, report.Body)
		}
	}
}

func TestHandleAlert_SensitiveAccountsAndCorrelation(t *testing.T) {
	publisher := &mockPublisher{}
	enricher := NewEnricher(publisher, "multi-account-", EnricherOptions{
		SensitiveAccounts: []string{"222222222222"},
	}, zap.NewNop())

	report, err := enricher.HandleAlert(context.Background(), alertMessage)
	if err != nil {
		t.Fatalf("HandleAlert: %v", err)
	}

	// Two EC2 accounts correlate as a coordinated launch (0.7 adds 2), one
	// of them sensitive adds 2 more on top of the base 3 and the EC2 weight.
	if report.Severity.Score != 8 || report.Severity.Level != models.SeverityCritical {
		t.Errorf("severity = %d %s; want 8 CRITICAL", report.Severity.Score, report.Severity.Level)
	}
	if !strings.Contains(report.Subject, "Org-wide Pattern") {
		t.Errorf("subject = %q; want the correlation marker", report.Subject)
	}
}

func TestHandleAlert_EnrichmentFailuresDegradeTheReport(t *testing.T) {
	publisher := &mockPublisher{}
	enricher := NewEnricher(publisher, "multi-account-", EnricherOptions{
		Cost:      &mockCost{err: errors.New("cost explorer throttled")},
		RootCause: &mockRootCause{err: errors.New("cloudwatch unavailable")},
		Usage:     &mockUsage{err: errors.New("ec2 unavailable")},
	}, zap.NewNop())

	report, err := enricher.HandleAlert(context.Background(), alertMessage)
	if err != nil {
		t.Fatalf("HandleAlert: %v", err)
	}
	if len(publisher.reports) != 1 {
		t.Fatal("report was not published despite failed enrichments")
	}
	if strings.Contains(report.Body, "Likely Cause") {
		t.Error("failed root cause analysis still rendered a section")
	}
}

func TestHandleAlert_ParseFailureIsFatal(t *testing.T) {
	publisher := &mockPublisher{}
	enricher := NewEnricher(publisher, "multi-account-", EnricherOptions{}, zap.NewNop())

	if _, err := enricher.HandleAlert(context.Background(), "not json"); err == nil {
		t.Fatal("expected an error")
	}
	if len(publisher.reports) != 0 {
		t.Error("an unparseable alert was published")
	}
}

func TestHandleAlert_PublishFailureIsFatal(t *testing.T) {
	publisher := &mockPublisher{err: errors.New("sns unavailable")}
	enricher := NewEnricher(publisher, "multi-account-", EnricherOptions{}, zap.NewNop())

	if _, err := enricher.HandleAlert(context.Background(), alertMessage); err == nil {
		t.Fatal("expected an error")
	}
}

func TestHandleAlert_AlertTimeIsDeterministic(t *testing.T) {
	publisher := &mockPublisher{}
	enricher := NewEnricher(publisher, "multi-account-", EnricherOptions{}, zap.NewNop())
	fixed := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	enricher.now = func() time.Time { return fixed }

	report, err := enricher.HandleAlert(context.Background(), alertMessage)
	if err != nil {
		t.Fatalf("HandleAlert: %v", err)
	}
	if !strings.Contains(report.Body, "2024-03-15") {
		t.Errorf("report body does not carry the pinned alert date:\n%s", report.Body)
	}
}
