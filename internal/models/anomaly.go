package models

import "time"

// AccountStatus mirrors the lifecycle states reported by AWS Organizations.
type AccountStatus string

const (
	AccountStatusActive         AccountStatus = "ACTIVE"
	AccountStatusSuspended      AccountStatus = "SUSPENDED"
	AccountStatusPendingClosure AccountStatus = "PENDING_CLOSURE"
)

// Account is an immutable snapshot of one organization member account as
// returned by the directory. It is never persisted by the core; the optional
// DynamoDB cache in the directory package is a read-through collaborator.
type Account struct {
	// ID is the 12-digit AWS account identifier.
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Email  string        `json:"email"`
	Status AccountStatus `json:"status"`
}

// TimeWindow is a half-open interval [Start, End) over which events were
// aggregated.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SampleEvent is one representative CloudTrail event carried inside an
// AnomalyGroup. At most ten samples are kept per group; EventCount remains
// the exact match count regardless.
type SampleEvent struct {
	Timestamp     time.Time `json:"event_time"`
	Region        string    `json:"aws_region"`
	PrincipalType string    `json:"principal_type"`
	SourceIP      string    `json:"source_ip"`
	AccountAlias  string    `json:"account_alias,omitempty"`
}

// AnomalyGroup is the per (account, event name) aggregation produced by one
// aggregation cycle. It is ephemeral: groups are scored, transformed, and
// discarded within the cycle that produced them.
type AnomalyGroup struct {
	AccountID string `json:"account_id"`

	// AccountAlias is the human-readable account name, filled in by directory
	// enrichment when the sample events do not already carry one.
	AccountAlias string `json:"account_alias,omitempty"`

	// EventType is the CloudTrail event name, e.g. "RunInstances".
	EventType string `json:"event_type"`

	// EventCount is the exact number of matching events in Window.
	// It is NOT capped at the sample size.
	EventCount int `json:"event_count"`

	// SampleEvents holds up to ten of the most recent matching events.
	SampleEvents []SampleEvent `json:"sample_events,omitempty"`

	Window TimeWindow `json:"time_window"`
}

// CorrelationPattern classifies the organization-wide pattern detected across
// a set of anomaly groups.
type CorrelationPattern string

const (
	PatternNone                     CorrelationPattern = "none"
	PatternMultiAccountSpike        CorrelationPattern = "multi_account_spike"
	PatternCoordinatedComputeLaunch CorrelationPattern = "coordinated_compute_launch"
)

// CorrelationResult is the outcome of cross-account correlation analysis over
// groups sharing an event type and time window.
//
// Score is monotonic non-decreasing in the number of affected accounts for a
// fixed pattern type.
type CorrelationResult struct {
	Detected         bool               `json:"detected"`
	PatternType      CorrelationPattern `json:"pattern_type"`
	AffectedAccounts []string           `json:"affected_accounts"`
	// Score is the correlation strength in [0, 1].
	Score          float64 `json:"correlation_score"`
	Recommendation string  `json:"recommendation"`
}

// SeverityLevel is the human-facing classification of a composite severity
// score.
type SeverityLevel string

const (
	SeverityCritical SeverityLevel = "CRITICAL"
	SeverityHigh     SeverityLevel = "HIGH"
	SeverityMedium   SeverityLevel = "MEDIUM"
	SeverityLow      SeverityLevel = "LOW"
)

// SeverityResult is the composite severity produced by the scorer: a 0-10
// integer score, its level bucket, and a fixed per-level reasoning phrase.
//
// Note this is a deliberately different scale from the per-event-type
// severity attribute stamped onto AnomalyDocuments by the transformer; the
// two are computed and tested independently.
type SeverityResult struct {
	// Score is clamped to [0, 10].
	Score     int           `json:"score"`
	Level     SeverityLevel `json:"level"`
	Reasoning string        `json:"reasoning"`
}
