package models

import "strings"

// EventKind is the explicit tagged key for every per-event-type lookup table
// in the pipeline (detector features, risk weights, severity thresholds,
// contextual causes, cost service mapping).
//
// Kinds are matched exactly, never by substring: a detector template named
// "non-ec2-thing" is KindUnknown, not KindEC2Launch.
type EventKind string

const (
	KindEC2Launch    EventKind = "ec2"
	KindLambdaInvoke EventKind = "lambda"
	KindEBSVolume    EventKind = "ebs"
	KindUnknown      EventKind = ""
)

// eventNames maps each known kind to the CloudTrail event name its detector
// filters on.
var eventNames = map[EventKind]string{
	KindEC2Launch:    "RunInstances",
	KindLambdaInvoke: "Invoke",
	KindEBSVolume:    "CreateVolume",
}

// EventName returns the CloudTrail event name for k, or "" for KindUnknown.
func (k EventKind) EventName() string { return eventNames[k] }

// DisplayName returns the human-facing anomaly type label used in alerts and
// reports, e.g. "EC2_RunInstances".
func (k EventKind) DisplayName() string {
	switch k {
	case KindEC2Launch:
		return "EC2_RunInstances"
	case KindLambdaInvoke:
		return "Lambda_Invoke"
	case KindEBSVolume:
		return "EBS_CreateVolume"
	default:
		return "Unknown"
	}
}

// KindForEventName resolves a CloudTrail event name back to its kind.
// Unrecognised names return KindUnknown.
func KindForEventName(eventName string) EventKind {
	for kind, name := range eventNames {
		if name == eventName {
			return kind
		}
	}
	return KindUnknown
}

// KindForDetectorName resolves the kind encoded in a detector template name.
// The kind must be the leading hyphen-separated segment ("ec2-usage-anomaly"
// → KindEC2Launch); anything else is KindUnknown and falls back to the
// generic feature configuration.
func KindForDetectorName(name string) EventKind {
	head, _, _ := strings.Cut(name, "-")
	switch EventKind(head) {
	case KindEC2Launch, KindLambdaInvoke, KindEBSVolume:
		return EventKind(head)
	default:
		return KindUnknown
	}
}
