package models

import "time"

// AnomalyAlert is the parsed form of a raw detector alert arriving on the
// alert-triggered path. It carries everything the scorer, correlator, and
// composer need; parsing lives in the insight package.
type AnomalyAlert struct {
	AlertTime    time.Time `json:"alert_time"`
	DetectorName string    `json:"detector_name"`
	Kind         EventKind `json:"event_kind"`

	// AnomalyCount is the number of anomalous events reported by the alert.
	AnomalyCount int `json:"anomaly_count"`

	// AffectedAccounts lists the 12-digit account ids named in the alert.
	AffectedAccounts []string `json:"affected_accounts"`
}

// CostBreakdown is the daily/monthly cost view computed for an anomaly's
// affected accounts and service.
type CostBreakdown struct {
	AverageDailyUSD   float64 `json:"average_daily_cost_usd"`
	LatestDailyUSD    float64 `json:"latest_daily_cost_usd"`
	MonthlyProjection float64 `json:"monthly_projection_usd"`
}

// CostAnalysis is the optional cost-impact section of an insight report.
type CostAnalysis struct {
	// EstimatedImpact is "HIGH" when the latest daily cost exceeds 1.5x the
	// period average, otherwise "MODERATE"; "Unknown" when no data was found.
	EstimatedImpact string         `json:"estimated_impact"`
	Breakdown       *CostBreakdown `json:"cost_breakdown,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// RootCauseResult is the optional root-cause section of an insight report.
type RootCauseResult struct {
	LikelyCause     string   `json:"likely_cause"`
	Confidence      string   `json:"confidence"`
	Evidence        []string `json:"evidence,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// FunctionUsage is one Lambda function's invocation profile around an alert.
type FunctionUsage struct {
	FunctionName      string `json:"function_name"`
	WindowInvocations int    `json:"window_invocations"`
	DayAvgInvocations int    `json:"day_avg_invocations"`
}

// UsageDetails carries the live-usage verification numbers gathered when an
// alert fires. Only the fields matching the alert's kind are populated.
type UsageDetails struct {
	Kind EventKind `json:"kind"`

	// EC2: instances currently running / launched inside the anomaly window.
	RunningInstances int `json:"running_instances,omitempty"`
	LaunchedInWindow int `json:"launched_in_window,omitempty"`

	// EBS: total volumes / volumes created inside the anomaly window.
	TotalVolumes    int `json:"total_volumes,omitempty"`
	CreatedInWindow int `json:"created_in_window,omitempty"`

	// Lambda: per-function invocation counts.
	Functions []FunctionUsage `json:"functions,omitempty"`
}

// InsightText is the already-generated natural-language material consumed by
// the composer. The composer never calls the text-generation service itself;
// absent fields are replaced by explicit fallback phrases.
type InsightText struct {
	Summary            string `json:"summary"`
	PotentialCauses    string `json:"potential_causes"`
	RecommendedActions string `json:"recommended_actions"`
	PreventionTips     string `json:"prevention_tips"`
}

// Report is the fully composed, severity-ranked alert handed to the
// notification sink.
type Report struct {
	Subject  string         `json:"subject"`
	Body     string         `json:"body"`
	Severity SeverityResult `json:"severity"`
}
