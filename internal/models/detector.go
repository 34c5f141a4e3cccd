package models

import "encoding/json"

// DetectorTemplate is the external configuration surface for one anomaly
// detector: its unique name and the category fields (partition dimensions)
// the detector learns separate baselines for.
//
// Kind may be set explicitly; when empty it is derived from the leading
// segment of Name via KindForDetectorName.
type DetectorTemplate struct {
	Name           string    `json:"name"`
	CategoryFields []string  `json:"category_fields"`
	Kind           EventKind `json:"kind,omitempty"`
}

// ResolvedKind returns the explicit Kind when set, otherwise the kind encoded
// in the template name.
func (t DetectorTemplate) ResolvedKind() EventKind {
	if t.Kind != KindUnknown {
		return t.Kind
	}
	return KindForDetectorName(t.Name)
}

// PeriodSpec is the interval/unit pair used by the anomaly-detection plugin
// for detection intervals and window delays.
type PeriodSpec struct {
	Interval int    `json:"interval"`
	Unit     string `json:"unit"`
}

// RecurringPeriod wraps PeriodSpec in the plugin's {"period": {...}} envelope.
type RecurringPeriod struct {
	Period PeriodSpec `json:"period"`
}

// FeatureAttribute is one named numeric aggregation the detector models.
type FeatureAttribute struct {
	FeatureName      string          `json:"feature_name"`
	FeatureEnabled   bool            `json:"feature_enabled"`
	AggregationQuery json.RawMessage `json:"aggregation_query"`
}

// DetectorSpec is the full anomaly-detector definition registered with the
// search engine. Name uniquely determines FilterQuery and FeatureAttributes
// through the EventKind dispatch table in the detector package.
type DetectorSpec struct {
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	TimeField         string             `json:"time_field"`
	Indices           []string           `json:"indices"`
	FeatureAttributes []FeatureAttribute `json:"feature_attributes"`
	FilterQuery       json.RawMessage    `json:"filter_query,omitempty"`
	WindowDelay       RecurringPeriod    `json:"window_delay"`
	DetectionInterval RecurringPeriod    `json:"detection_interval"`
	CategoryFields    []string           `json:"category_field,omitempty"`
}

// RegistrationStatus is the per-template outcome of a configuration run.
type RegistrationStatus string

const (
	RegistrationCreated RegistrationStatus = "created"
	RegistrationFailed  RegistrationStatus = "failed"

	// RegistrationSkipped marks a template deliberately not registered, for
	// example a Lambda detector while the Lambda trail is disabled. Skips are
	// not failures: a run of created and skipped templates is healthy.
	RegistrationSkipped RegistrationStatus = "skipped"
)

// DetectorRegistrationResult reports the outcome of registering one detector
// template. A failed template never aborts its siblings; callers receive one
// result per input template.
type DetectorRegistrationResult struct {
	Name   string             `json:"name"`
	Status RegistrationStatus `json:"status"`
	ID     string             `json:"id,omitempty"`
	Error  string             `json:"error,omitempty"`
}
