package transform

import (
	"strings"
	"testing"
	"time"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

func testGroup() models.AnomalyGroup {
	start := time.Date(2026, 8, 30, 10, 40, 0, 0, time.UTC)
	return models.AnomalyGroup{
		AccountID:  "111122223333",
		EventType:  "RunInstances",
		EventCount: 23,
		SampleEvents: []models.SampleEvent{
			{
				Timestamp:     start.Add(5 * time.Minute),
				Region:        "us-east-1",
				PrincipalType: "AssumedRole",
				SourceIP:      "198.51.100.7",
				AccountAlias:  "prod-payments",
			},
		},
		Window: models.TimeWindow{Start: start, End: start.Add(80 * time.Minute)},
	}
}

func testSeverity() models.SeverityResult {
	return models.SeverityResult{
		Score:     5,
		Level:     models.SeverityMedium,
		Reasoning: "Moderate impact requiring investigation",
	}
}

func TestDocumentID_Idempotent(t *testing.T) {
	g := testGroup()
	first := DocumentID(g)
	second := DocumentID(g)
	if first != second {
		t.Fatalf("ids differ for identical input: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("id length = %d; want 64 hex chars", len(first))
	}
}

func TestDocumentID_DiscriminatesInputs(t *testing.T) {
	base := testGroup()

	mutations := map[string]func(*models.AnomalyGroup){
		"account":      func(g *models.AnomalyGroup) { g.AccountID = "222233334444" },
		"event type":   func(g *models.AnomalyGroup) { g.EventType = "CreateVolume" },
		"window start": func(g *models.AnomalyGroup) { g.Window.Start = g.Window.Start.Add(time.Minute) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			changed := testGroup()
			mutate(&changed)
			if DocumentID(base) == DocumentID(changed) {
				t.Errorf("id did not change when %s changed", name)
			}
		})
	}

	t.Run("event count does not affect the id", func(t *testing.T) {
		changed := testGroup()
		changed.EventCount = 9999
		if DocumentID(base) != DocumentID(changed) {
			t.Error("id changed with event count; upserts would duplicate")
		}
	})
}

func TestVolumeSeverity(t *testing.T) {
	tests := []struct {
		kind  models.EventKind
		count int
		want  VolumeSeverityLevel
	}{
		{models.KindEC2Launch, 4, VolumeInfo},
		{models.KindEC2Launch, 5, VolumeLow},
		{models.KindEC2Launch, 10, VolumeMedium},
		{models.KindEC2Launch, 20, VolumeHigh},
		{models.KindEBSVolume, 9, VolumeInfo},
		{models.KindEBSVolume, 10, VolumeLow},
		{models.KindEBSVolume, 20, VolumeMedium},
		{models.KindEBSVolume, 50, VolumeHigh},
		{models.KindLambdaInvoke, 999, VolumeInfo},
		{models.KindLambdaInvoke, 1000, VolumeLow},
		{models.KindLambdaInvoke, 5000, VolumeMedium},
		{models.KindLambdaInvoke, 12000, VolumeHigh},
		{models.KindUnknown, 9, VolumeInfo},
		{models.KindUnknown, 10, VolumeLow},
		{models.KindUnknown, 50, VolumeMedium},
		{models.KindUnknown, 100, VolumeHigh},
	}
	for _, tc := range tests {
		if got := VolumeSeverity(tc.kind, tc.count); got != tc.want {
			t.Errorf("VolumeSeverity(%q, %d) = %q; want %q", tc.kind, tc.count, got, tc.want)
		}
	}
}

func TestToDocument(t *testing.T) {
	doc := ToDocument(testGroup(), testSeverity())

	if doc.Title != "RunInstances Anomaly - prod-payments" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Attributes.AccountID != "111122223333" {
		t.Errorf("AccountID = %q", doc.Attributes.AccountID)
	}
	if doc.Attributes.AccountAlias != "prod-payments" {
		t.Errorf("AccountAlias = %q", doc.Attributes.AccountAlias)
	}
	if doc.Attributes.EventCount != 23 {
		t.Errorf("EventCount = %d", doc.Attributes.EventCount)
	}
	// 23 RunInstances is past the high cutoff for launches.
	if doc.Attributes.Severity != string(VolumeHigh) {
		t.Errorf("attribute Severity = %q; want HIGH", doc.Attributes.Severity)
	}

	for _, want := range []string{
		"Anomaly Alert: RunInstances in Account prod-payments",
		"- Event Count: 23",
		"- Composite Severity: MEDIUM (5/10)",
		"- Source IP: 198.51.100.7",
		"Context: EC2 instance launches detected",
	} {
		if !strings.Contains(doc.Body, want) {
			t.Errorf("Body missing %q\nbody:\n%s", want, doc.Body)
		}
	}
}

func TestToDocument_GroupAliasWinsOverSamples(t *testing.T) {
	g := testGroup()
	g.AccountAlias = "directory-name"
	doc := ToDocument(g, testSeverity())
	if doc.Attributes.AccountAlias != "directory-name" {
		t.Errorf("AccountAlias = %q; want the enriched group alias", doc.Attributes.AccountAlias)
	}
}

func TestToDocument_FallbacksWithoutSamples(t *testing.T) {
	g := testGroup()
	g.SampleEvents = nil
	g.EventType = "DeleteBucket"

	doc := ToDocument(g, testSeverity())

	if doc.Attributes.AccountAlias != g.AccountID {
		t.Errorf("AccountAlias = %q; want raw account id", doc.Attributes.AccountAlias)
	}
	if strings.Contains(doc.Body, "Details:") {
		t.Error("Body has a Details section without samples")
	}
	if !strings.Contains(doc.Body, "Context: unusual activity volume detected") {
		t.Error("Body missing generic causes paragraph for unknown event type")
	}
}

func TestRenderBody_CapsDetailAtFive(t *testing.T) {
	g := testGroup()
	g.SampleEvents = nil
	for i := 0; i < 8; i++ {
		g.SampleEvents = append(g.SampleEvents, models.SampleEvent{
			Timestamp: g.Window.Start.Add(time.Duration(i) * time.Minute),
			Region:    "us-east-1",
		})
	}

	doc := ToDocument(g, testSeverity())

	if strings.Contains(doc.Body, "Event 6:") {
		t.Error("Body rendered more than five detail blocks")
	}
	if !strings.Contains(doc.Body, "Event 5:") {
		t.Error("Body missing the fifth detail block")
	}
	// Missing principal and source fields render as Unknown, not empty.
	if !strings.Contains(doc.Body, "- User: Unknown") {
		t.Error("missing Unknown fallback for principal")
	}
}
