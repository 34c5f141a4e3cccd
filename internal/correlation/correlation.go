// Package correlation decides whether multiple accounts are exhibiting a
// related anomalous pattern and assigns a correlation strength in [0, 1].
//
// Analysis is pure and deterministic. Malformed input (groups with mixed
// event types) is a programming error and panics rather than silently
// defaulting; callers are responsible for partitioning groups by event type.
package correlation

import (
	"fmt"
	"sort"
	"time"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// Recommendation texts per pattern.
const (
	recommendMonitor     = "Monitor individual account"
	recommendOrgIncident = "Investigate organization-wide security incident or automation issue"
	recommendCoordinated = "Check for coordinated deployment or potential security breach"
)

// multiAccountThreshold is the fan-out at which any event type becomes an
// organization-wide signal. The compute-launch rule below fires at only two
// accounts; the asymmetry is inherited from the deployed policy and is
// preserved as given.
const (
	multiAccountThreshold  = 3
	computeLaunchThreshold = 2
	computeLaunchScore     = 0.7
)

// Analyze examines groups sharing one event type across a sliding window
// ending at the most recent group and decides whether their accounts form a
// related pattern. Groups whose windows fall outside the sliding window are
// excluded from the affected-account set.
//
// Rule order is load-bearing: broader fan-out across three or more accounts
// dominates the narrower two-account compute-launch coincidence, and the
// resulting score feeds directly into severity.
func Analyze(groups []models.AnomalyGroup, window time.Duration) models.CorrelationResult {
	if len(groups) == 0 {
		return none(nil)
	}

	eventType := groups[0].EventType
	for _, g := range groups[1:] {
		if g.EventType != eventType {
			panic(fmt.Sprintf(
				"correlation: mixed event types %q and %q in one analysis",
				eventType, g.EventType))
		}
	}

	// Sliding window anchored at the latest group end.
	var latest time.Time
	for _, g := range groups {
		if g.Window.End.After(latest) {
			latest = g.Window.End
		}
	}
	cutoff := latest.Add(-window)

	accountSet := make(map[string]bool)
	for _, g := range groups {
		if g.Window.End.After(cutoff) {
			accountSet[g.AccountID] = true
		}
	}

	return Classify(models.KindForEventName(eventType), setToSlice(accountSet))
}

// Classify applies the correlation policy to an affected-account set for one
// event kind. First match wins:
//
//  1. three or more accounts → multi_account_spike, score min(n/10, 1.0)
//  2. compute launches across two or more accounts → coordinated_compute_launch, score 0.7
//  3. otherwise no pattern, score 0.
//
// The score is monotonic non-decreasing in the account count for a fixed
// pattern type.
func Classify(kind models.EventKind, accounts []string) models.CorrelationResult {
	n := len(accounts)

	if n >= multiAccountThreshold {
		score := float64(n) / 10.0
		if score > 1.0 {
			score = 1.0
		}
		return models.CorrelationResult{
			Detected:         true,
			PatternType:      models.PatternMultiAccountSpike,
			AffectedAccounts: accounts,
			Score:            score,
			Recommendation:   recommendOrgIncident,
		}
	}

	if kind == models.KindEC2Launch && n >= computeLaunchThreshold {
		return models.CorrelationResult{
			Detected:         true,
			PatternType:      models.PatternCoordinatedComputeLaunch,
			AffectedAccounts: accounts,
			Score:            computeLaunchScore,
			Recommendation:   recommendCoordinated,
		}
	}

	return none(accounts)
}

func none(accounts []string) models.CorrelationResult {
	return models.CorrelationResult{
		Detected:         false,
		PatternType:      models.PatternNone,
		AffectedAccounts: accounts,
		Score:            0,
		Recommendation:   recommendMonitor,
	}
}

// setToSlice returns the sorted account ids so results are deterministic
// across runs.
func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
