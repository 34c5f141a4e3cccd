package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"OPENSEARCH_HOST", "AWS_REGION", "INDEX_PATTERN", "SYNC_INTERVAL_MINUTES",
		"ANOMALY_EVAL_PERIOD", "NOTIF_TOPIC_ARN", "Q_APPLICATION_ID", "Q_INDEX_ID",
		"ACCOUNT_CACHE_TABLE", "SENSITIVE_ACCOUNT_IDS", "METRICS_NAMESPACE",
		"ENABLE_COST_ANALYSIS", "ENABLE_ROOT_CAUSE_ANALYSIS", "ENABLE_LAMBDA_TRAIL",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.IndexPattern != "cwl-multiaccounts*" {
		t.Errorf("IndexPattern = %q", cfg.IndexPattern)
	}
	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
	if cfg.AnomalyWindow != 80*time.Minute {
		t.Errorf("AnomalyWindow = %v", cfg.AnomalyWindow)
	}
	if !cfg.EnableCostAnalysis || !cfg.EnableRootCauseAnalysis {
		t.Error("analysis toggles should default on")
	}
	if cfg.EnableLambdaTrail {
		t.Error("lambda trail should default off")
	}
	if cfg.SensitiveAccounts != nil {
		t.Errorf("SensitiveAccounts = %v", cfg.SensitiveAccounts)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("SYNC_INTERVAL_MINUTES", "5")
	t.Setenv("SENSITIVE_ACCOUNT_IDS", " 111111111111, 222222222222 ,,")
	t.Setenv("ENABLE_COST_ANALYSIS", "false")
	t.Setenv("ENABLE_LAMBDA_TRAIL", "TRUE")

	cfg := FromEnv()

	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
	if len(cfg.SensitiveAccounts) != 2 || cfg.SensitiveAccounts[0] != "111111111111" {
		t.Errorf("SensitiveAccounts = %v", cfg.SensitiveAccounts)
	}
	if cfg.EnableCostAnalysis {
		t.Error("EnableCostAnalysis should be off")
	}
	if !cfg.EnableLambdaTrail {
		t.Error("EnableLambdaTrail should be on")
	}
}

func TestFromEnv_BadMinutesFallsBack(t *testing.T) {
	t.Setenv("SYNC_INTERVAL_MINUTES", "soon")
	t.Setenv("ANOMALY_EVAL_PERIOD", "-5")

	cfg := FromEnv()

	if cfg.SyncInterval != 15*time.Minute {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
	if cfg.AnomalyWindow != 80*time.Minute {
		t.Errorf("AnomalyWindow = %v", cfg.AnomalyWindow)
	}
}

func TestRequireHelpers(t *testing.T) {
	cfg := &Config{}

	if err := cfg.RequireOpenSearch(); err == nil {
		t.Error("RequireOpenSearch passed with no host")
	}
	if err := cfg.RequireNotification(); err == nil {
		t.Error("RequireNotification passed with no topic")
	}
	if err := cfg.RequireDocumentSink(); err == nil {
		t.Error("RequireDocumentSink passed with no ids")
	}

	cfg.OpenSearchHost = "search.example.com"
	cfg.NotifTopicARN = "arn:topic"
	cfg.QApplicationID = "app-1"
	if err := cfg.RequireOpenSearch(); err != nil {
		t.Errorf("RequireOpenSearch: %v", err)
	}
	if err := cfg.RequireNotification(); err != nil {
		t.Errorf("RequireNotification: %v", err)
	}
	if err := cfg.RequireDocumentSink(); err == nil {
		t.Error("RequireDocumentSink passed with only the application id")
	}
	cfg.QIndexID = "idx-1"
	if err := cfg.RequireDocumentSink(); err != nil {
		t.Errorf("RequireDocumentSink: %v", err)
	}
}

func TestIsSensitiveAccount(t *testing.T) {
	cfg := &Config{SensitiveAccounts: []string{"111111111111"}}
	if !cfg.IsSensitiveAccount("111111111111") {
		t.Error("flagged account not reported sensitive")
	}
	if cfg.IsSensitiveAccount("222222222222") {
		t.Error("unflagged account reported sensitive")
	}
}
