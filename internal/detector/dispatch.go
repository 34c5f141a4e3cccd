package detector

import (
	"encoding/json"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// featureSpec pairs the filter predicate selecting a detector's event subtype
// with the numeric feature aggregations its model learns.
type featureSpec struct {
	filterQuery json.RawMessage
	features    []models.FeatureAttribute
}

// countFeature is the value_count aggregation over event names shared by
// every detector; volume anomalies are what this pipeline models.
var countFeature = models.FeatureAttribute{
	FeatureName:    "event_count",
	FeatureEnabled: true,
	AggregationQuery: json.RawMessage(
		`{"event_count":{"value_count":{"field":"eventName.keyword"}}}`),
}

// termFilter builds the bool/must term predicate pinning a detector to a
// single CloudTrail event name.
func termFilter(eventName string) json.RawMessage {
	f := map[string]any{
		"bool": map[string]any{
			"must": []any{
				map[string]any{"term": map[string]any{"eventName.keyword": eventName}},
			},
		},
	}
	raw, _ := json.Marshal(f)
	return raw
}

// featureTable is the dispatch table: every known EventKind maps to its
// filter and feature configuration. The table is keyed by kind, never by
// name substring, so detector names can evolve without false matches.
var featureTable = map[models.EventKind]featureSpec{
	models.KindEC2Launch: {
		filterQuery: termFilter("RunInstances"),
		features:    []models.FeatureAttribute{countFeature},
	},
	models.KindLambdaInvoke: {
		filterQuery: termFilter("Invoke"),
		features:    []models.FeatureAttribute{countFeature},
	},
	models.KindEBSVolume: {
		filterQuery: termFilter("CreateVolume"),
		features:    []models.FeatureAttribute{countFeature},
	},
}

// genericSpec is the fallback for templates whose kind is unrecognised: the
// generic count feature with an explicit match-all filter (no event subtype
// is selected).
var genericSpec = featureSpec{
	filterQuery: json.RawMessage(`{"match_all":{}}`),
	features:    []models.FeatureAttribute{countFeature},
}

// specForKind resolves the dispatch table entry for kind, falling back to
// the generic configuration for KindUnknown or any future kind the table
// does not yet cover.
func specForKind(kind models.EventKind) featureSpec {
	if spec, ok := featureTable[kind]; ok {
		return spec
	}
	return genericSpec
}
