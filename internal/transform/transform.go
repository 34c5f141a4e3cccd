// Package transform converts aggregated anomaly groups into normalized,
// attribute-tagged documents for the downstream insight index.
//
// Document ids are content hashes over (account id, event type, window
// start), so re-syncing identical input upserts instead of duplicating.
// Everything here is deterministic given its inputs: no randomness, no
// wall-clock reads.
package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// maxDetailedEvents bounds the per-event detail lines embedded in the body.
const maxDetailedEvents = 5

// volumeThresholds are the per-event-type event-count cutoffs for the
// document severity attribute. Invocation volumes run orders of magnitude
// above launch volumes, so a single global cutoff would misclassify both.
type volumeThresholds struct {
	low, medium, high int
}

var thresholdTable = map[models.EventKind]volumeThresholds{
	models.KindEC2Launch:    {low: 5, medium: 10, high: 20},
	models.KindEBSVolume:    {low: 10, medium: 20, high: 50},
	models.KindLambdaInvoke: {low: 1000, medium: 5000, high: 10000},
}

var defaultThresholds = volumeThresholds{low: 10, medium: 50, high: 100}

// contextualCauses is the fixed per-event-type paragraph embedded in every
// document body, with a generic fallback for unknown types.
var contextualCauses = map[models.EventKind]string{
	models.KindEC2Launch: `Context: EC2 instance launches detected. This could indicate:
- Normal scaling activities
- Potential unauthorized instance creation
- Cost implications from unexpected compute usage`,
	models.KindEBSVolume: `Context: EBS volume creation detected. This could indicate:
- Normal storage provisioning
- Potential data exfiltration preparation
- Cost implications from storage expansion`,
	models.KindLambdaInvoke: `Context: Lambda function invocations detected. This could indicate:
- Normal application activity
- Potential runaway functions
- Cost implications from excessive invocations`,
}

const genericCauses = `Context: unusual activity volume detected for this event type. Review the
affected account's CloudTrail history for the listed time period.`

// ToDocument renders one anomaly group and its computed composite severity
// into an AnomalyDocument. Calling it twice on identical input yields an
// identical document, id included.
func ToDocument(group models.AnomalyGroup, severity models.SeverityResult) models.AnomalyDocument {
	kind := models.KindForEventName(group.EventType)
	alias := accountAlias(group)

	return models.AnomalyDocument{
		ID:    DocumentID(group),
		Title: fmt.Sprintf("%s Anomaly - %s", group.EventType, alias),
		Body:  renderBody(group, severity, kind, alias),
		Attributes: models.DocumentAttributes{
			AccountID:    group.AccountID,
			AccountAlias: alias,
			EventName:    group.EventType,
			EventCount:   group.EventCount,
			AnomalyDate:  group.Window.Start.Format(time.RFC3339),
			Severity:     string(VolumeSeverity(kind, group.EventCount)),
		},
	}
}

// DocumentID is the stable content hash for a group: SHA-256 over the
// account id, event type, and window start.
func DocumentID(group models.AnomalyGroup) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf(
		"%s-%s-%s",
		group.AccountID,
		group.EventType,
		group.Window.Start.Format(time.RFC3339),
	)))
	return hex.EncodeToString(sum[:])
}

// VolumeSeverityLevel is the per-event-type volume bucket for the document
// severity attribute. It is deliberately a different scale from the
// composite SeverityResult.
type VolumeSeverityLevel string

const (
	VolumeInfo   VolumeSeverityLevel = "INFO"
	VolumeLow    VolumeSeverityLevel = "LOW"
	VolumeMedium VolumeSeverityLevel = "MEDIUM"
	VolumeHigh   VolumeSeverityLevel = "HIGH"
)

// VolumeSeverity buckets eventCount against the threshold table for kind.
func VolumeSeverity(kind models.EventKind, eventCount int) VolumeSeverityLevel {
	t, ok := thresholdTable[kind]
	if !ok {
		t = defaultThresholds
	}
	switch {
	case eventCount >= t.high:
		return VolumeHigh
	case eventCount >= t.medium:
		return VolumeMedium
	case eventCount >= t.low:
		return VolumeLow
	default:
		return VolumeInfo
	}
}

// accountAlias prefers the enriched alias on the group, then the alias
// carried on the sample events, falling back to the raw account id.
func accountAlias(group models.AnomalyGroup) string {
	if group.AccountAlias != "" {
		return group.AccountAlias
	}
	for _, s := range group.SampleEvents {
		if s.AccountAlias != "" {
			return s.AccountAlias
		}
	}
	return group.AccountID
}

// renderBody assembles the plain-text document body: summary block, up to
// five event detail blocks, the contextual-causes paragraph for the event
// kind, and the composite severity line.
func renderBody(group models.AnomalyGroup, severity models.SeverityResult, kind models.EventKind, alias string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Anomaly Alert: %s in Account %s\n\n", group.EventType, alias)
	b.WriteString("Summary:\n")
	fmt.Fprintf(&b, "- Account ID: %s\n", group.AccountID)
	fmt.Fprintf(&b, "- Event Type: %s\n", group.EventType)
	fmt.Fprintf(&b, "- Event Count: %d\n", group.EventCount)
	fmt.Fprintf(&b, "- Time Period: %s to %s\n",
		group.Window.Start.Format(time.RFC3339),
		group.Window.End.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Composite Severity: %s (%d/10)\n", severity.Level, severity.Score)

	if len(group.SampleEvents) > 0 {
		b.WriteString("\nDetails:\n")
		for i, ev := range group.SampleEvents {
			if i == maxDetailedEvents {
				break
			}
			fmt.Fprintf(&b, "\nEvent %d:\n", i+1)
			fmt.Fprintf(&b, "- Time: %s\n", valueOr(ev.Timestamp.Format(time.RFC3339), ev.Timestamp.IsZero()))
			fmt.Fprintf(&b, "- Region: %s\n", valueOr(ev.Region, ev.Region == ""))
			fmt.Fprintf(&b, "- User: %s\n", valueOr(ev.PrincipalType, ev.PrincipalType == ""))
			fmt.Fprintf(&b, "- Source IP: %s\n", valueOr(ev.SourceIP, ev.SourceIP == ""))
		}
	}

	b.WriteString("\n")
	if causes, ok := contextualCauses[kind]; ok {
		b.WriteString(causes)
	} else {
		b.WriteString(genericCauses)
	}
	b.WriteString("\n")

	return b.String()
}

func valueOr(v string, missing bool) string {
	if missing {
		return "Unknown"
	}
	return v
}
