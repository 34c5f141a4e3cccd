package models

// AnomalyDocument is the normalized, attribute-tagged document written to the
// downstream insight index. ID is a stable content hash of
// (account id, event type, window start), so repeated runs over identical
// input upsert rather than duplicate.
type AnomalyDocument struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`

	// Attributes are flat string key/values attached to the indexed document.
	Attributes DocumentAttributes `json:"attributes"`
}

// DocumentAttributes are the searchable facets stamped onto each document.
//
// Severity here is the per-event-type volume bucket (INFO/LOW/MEDIUM/HIGH),
// computed from event-count threshold tables, a deliberately different scale
// from the composite SeverityResult.
type DocumentAttributes struct {
	AccountID    string `json:"account_id"`
	AccountAlias string `json:"account_alias"`
	EventName    string `json:"event_name"`
	EventCount   int    `json:"event_count"`
	AnomalyDate  string `json:"anomaly_date"`
	Severity     string `json:"severity"`
}

// FailedDocument identifies one document that could not be upserted.
type FailedDocument struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SyncResult summarises one batch-upsert cycle against the document sink.
// Partial failure is non-fatal: both counts are always reported.
type SyncResult struct {
	SuccessCount int              `json:"success_count"`
	Failed       []FailedDocument `json:"failed,omitempty"`
}
