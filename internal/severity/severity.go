// Package severity computes the composite 0-10 severity of an anomaly from
// event volume, account sensitivity, cross-account correlation, and
// event-type risk.
//
// Scoring is pure and deterministic: no I/O, no clock, no external state.
package severity

import "github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"

const (
	baseScore = 3
	maxScore  = 10
)

// riskWeights is the per-event-type risk adjustment. EC2 launches and EBS
// volume creations carry cost and data implications respectively; Lambda
// invocation volume is routine.
var riskWeights = map[models.EventKind]int{
	models.KindEC2Launch:    1,
	models.KindEBSVolume:    1,
	models.KindLambdaInvoke: 0,
}

// reasonings is the fixed per-level phrase; it is intentionally not derived
// from the inputs.
var reasonings = map[models.SeverityLevel]string{
	models.SeverityCritical: "High impact with organization-wide implications",
	models.SeverityHigh:     "Significant impact requiring immediate attention",
	models.SeverityMedium:   "Moderate impact requiring investigation",
	models.SeverityLow:      "Low impact for monitoring",
}

// Input is the scorer's flattened view of an anomaly, shared by the
// aggregation path (from an AnomalyGroup) and the alert path (from a parsed
// AnomalyAlert).
type Input struct {
	EventCount       int
	Kind             models.EventKind
	AffectedAccounts []string
}

// FromGroup derives the scorer input for one aggregated anomaly group.
func FromGroup(g models.AnomalyGroup) Input {
	return Input{
		EventCount:       g.EventCount,
		Kind:             models.KindForEventName(g.EventType),
		AffectedAccounts: []string{g.AccountID},
	}
}

// FromAlert derives the scorer input for a parsed detector alert.
func FromAlert(a models.AnomalyAlert) Input {
	return Input{
		EventCount:       a.AnomalyCount,
		Kind:             a.Kind,
		AffectedAccounts: a.AffectedAccounts,
	}
}

// Score maps an anomaly and its organization-wide correlation signal to a
// severity classification. sensitive flags the account ids whose involvement
// raises severity (production accounts).
//
// The score starts at 3 and is adjusted additively:
//
//	event count  > 100 → +2, > 50 → +1
//	any sensitive account affected → +2
//	correlation detected → +floor(correlation score × 3)
//	event-type risk weight (EC2 +1, EBS +1, Lambda +0)
//
// The final score is clamped to [0, 10]; inputs are externally influenced
// and unbounded, so the clamp is unconditional.
func Score(in Input, corr models.CorrelationResult, sensitive map[string]bool) models.SeverityResult {
	score := baseScore

	switch {
	case in.EventCount > 100:
		score += 2
	case in.EventCount > 50:
		score++
	}

	// The union of the anomaly's own accounts and correlation fan-out is
	// checked; a sensitive account anywhere in the blast radius counts.
	if anySensitive(in.AffectedAccounts, sensitive) || anySensitive(corr.AffectedAccounts, sensitive) {
		score += 2
	}

	if corr.Detected {
		score += int(corr.Score * 3)
	}

	score += riskWeights[in.Kind]

	score = clamp(score)
	level := levelFor(score)
	return models.SeverityResult{
		Score:     score,
		Level:     level,
		Reasoning: reasonings[level],
	}
}

// levelFor buckets a clamped score. Thresholds are checked highest first;
// all comparisons are strict ≥ so there is no equal-score ambiguity.
func levelFor(score int) models.SeverityLevel {
	switch {
	case score >= 8:
		return models.SeverityCritical
	case score >= 6:
		return models.SeverityHigh
	case score >= 4:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func clamp(score int) int {
	if score > maxScore {
		return maxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

func anySensitive(accounts []string, sensitive map[string]bool) bool {
	for _, id := range accounts {
		if sensitive[id] {
			return true
		}
	}
	return false
}
