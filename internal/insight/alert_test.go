package insight

import (
	"testing"
	"time"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

func TestParseAlert(t *testing.T) {
	alertTime := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("full alert", func(t *testing.T) {
		message := `{
			"Detector": "multi-account-ec2-usage-anomaly",
			"Anomalies": 3,
			"TopAccounts": "111122223333 (42 events), 222233334444 (17 events), 111122223333 again"
		}`
		alert, err := ParseAlert(message, "multi-account-", alertTime)
		if err != nil {
			t.Fatalf("ParseAlert: %v", err)
		}

		if alert.DetectorName != "multi-account-ec2-usage-anomaly" {
			t.Errorf("DetectorName = %q", alert.DetectorName)
		}
		if alert.Kind != models.KindEC2Launch {
			t.Errorf("Kind = %q; want %q", alert.Kind, models.KindEC2Launch)
		}
		if alert.AnomalyCount != 3 {
			t.Errorf("AnomalyCount = %d; want 3", alert.AnomalyCount)
		}
		if !alert.AlertTime.Equal(alertTime) {
			t.Errorf("AlertTime = %v; want %v", alert.AlertTime, alertTime)
		}
		// Duplicated account ids collapse, order of first sight kept.
		want := []string{"111122223333", "222233334444"}
		if len(alert.AffectedAccounts) != len(want) {
			t.Fatalf("AffectedAccounts = %v; want %v", alert.AffectedAccounts, want)
		}
		for i := range want {
			if alert.AffectedAccounts[i] != want[i] {
				t.Fatalf("AffectedAccounts = %v; want %v", alert.AffectedAccounts, want)
			}
		}
	})

	t.Run("detector outside the naming convention is unknown kind", func(t *testing.T) {
		alert, err := ParseAlert(`{"Detector": "multi-account-non-ec2-thing"}`, "multi-account-", alertTime)
		if err != nil {
			t.Fatalf("ParseAlert: %v", err)
		}
		if alert.Kind != models.KindUnknown {
			t.Errorf("Kind = %q; want unknown", alert.Kind)
		}
	})

	t.Run("invalid JSON fails", func(t *testing.T) {
		if _, err := ParseAlert("not json", "multi-account-", alertTime); err == nil {
			t.Fatal("expected an error for invalid JSON")
		}
	})

	t.Run("missing detector name fails", func(t *testing.T) {
		if _, err := ParseAlert(`{"Anomalies": 2}`, "multi-account-", alertTime); err == nil {
			t.Fatal("expected an error when the detector name is absent")
		}
	})

	t.Run("no accounts mentioned leaves the set empty", func(t *testing.T) {
		alert, err := ParseAlert(`{"Detector": "multi-account-ebs-usage-anomaly", "TopAccounts": "none"}`, "multi-account-", alertTime)
		if err != nil {
			t.Fatalf("ParseAlert: %v", err)
		}
		if len(alert.AffectedAccounts) != 0 {
			t.Errorf("AffectedAccounts = %v; want empty", alert.AffectedAccounts)
		}
	})
}
