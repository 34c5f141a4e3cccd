package insight

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// accountIDPattern matches 12-digit AWS account ids embedded in alert text.
var accountIDPattern = regexp.MustCompile(`\d{12}`)

// rawAlert is the JSON payload the detector monitors publish.
type rawAlert struct {
	Detector    string `json:"Detector"`
	Anomalies   int    `json:"Anomalies"`
	TopAccounts string `json:"TopAccounts"`
}

// ParseAlert decodes a raw detector alert message into an AnomalyAlert.
// namePrefix is the detector naming convention; it is stripped before
// resolving the event kind from the remaining leading segment. alertTime is
// passed in so parsing stays deterministic.
func ParseAlert(message string, namePrefix string, alertTime time.Time) (models.AnomalyAlert, error) {
	var raw rawAlert
	if err := json.Unmarshal([]byte(message), &raw); err != nil {
		return models.AnomalyAlert{}, fmt.Errorf("decode alert message: %w", err)
	}
	if raw.Detector == "" {
		return models.AnomalyAlert{}, fmt.Errorf("alert message carries no detector name")
	}

	templateName := strings.TrimPrefix(raw.Detector, namePrefix)

	return models.AnomalyAlert{
		AlertTime:        alertTime,
		DetectorName:     raw.Detector,
		Kind:             models.KindForDetectorName(templateName),
		AnomalyCount:     raw.Anomalies,
		AffectedAccounts: dedupe(accountIDPattern.FindAllString(raw.TopAccounts, -1)),
	}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
