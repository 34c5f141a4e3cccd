// Package config defines the explicit configuration struct for the pipeline.
// All settings are read once at startup and passed into components at
// construction; no component reads the environment on its own.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete external configuration surface of the pipeline.
type Config struct {
	// OpenSearchHost is the search-engine endpoint hostname (no scheme).
	OpenSearchHost string

	// Region is the AWS region used for SigV4 signing and SDK clients.
	// Defaults to us-east-1 when unset.
	Region string

	// IndexPattern is the CloudTrail log index pattern queried for events
	// and targeted by detectors.
	IndexPattern string

	// SyncInterval is the lookback window of one aggregation/sync cycle.
	SyncInterval time.Duration

	// AnomalyWindow is the lookback window used for alert-time usage
	// verification (instance launches, volume creations, invocations).
	AnomalyWindow time.Duration

	// RequestTimeout bounds every single external call (search engine,
	// directory, sinks). A timed-out unit fails alone; siblings proceed.
	RequestTimeout time.Duration

	// NotifTopicARN is the SNS topic receiving composed insight reports.
	NotifTopicARN string

	// QApplicationID and QIndexID identify the document sink.
	QApplicationID string
	QIndexID       string

	// AccountCacheTable is the optional DynamoDB table caching account
	// metadata. Empty disables the cache; the directory then always calls
	// Organizations directly.
	AccountCacheTable string

	// SensitiveAccounts lists account ids whose involvement raises severity
	// (production accounts). Replaces the original's ambient name matching.
	SensitiveAccounts []string

	// MetricsNamespace is the CloudWatch namespace for pipeline cycle
	// metrics. Empty disables metric publication.
	MetricsNamespace string

	// Feature toggles.
	EnableCostAnalysis      bool
	EnableRootCauseAnalysis bool
	EnableLambdaTrail       bool
}

// Defaults mirrored from the deployed system.
const (
	defaultRegion         = "us-east-1"
	defaultIndexPattern   = "cwl-multiaccounts*"
	defaultSyncMinutes    = 15
	defaultAnomalyMinutes = 80
	defaultTimeout        = 10 * time.Second
)

// FromEnv builds a Config from the process environment, applying defaults
// for anything unset. It never fails on missing optional settings; commands
// validate the fields they actually need via the Require* helpers.
func FromEnv() *Config {
	return &Config{
		OpenSearchHost:          os.Getenv("OPENSEARCH_HOST"),
		Region:                  envOr("AWS_REGION", defaultRegion),
		IndexPattern:            envOr("INDEX_PATTERN", defaultIndexPattern),
		SyncInterval:            envMinutes("SYNC_INTERVAL_MINUTES", defaultSyncMinutes),
		AnomalyWindow:           envMinutes("ANOMALY_EVAL_PERIOD", defaultAnomalyMinutes),
		RequestTimeout:          defaultTimeout,
		NotifTopicARN:           os.Getenv("NOTIF_TOPIC_ARN"),
		QApplicationID:          os.Getenv("Q_APPLICATION_ID"),
		QIndexID:                os.Getenv("Q_INDEX_ID"),
		AccountCacheTable:       os.Getenv("ACCOUNT_CACHE_TABLE"),
		SensitiveAccounts:       splitList(os.Getenv("SENSITIVE_ACCOUNT_IDS")),
		MetricsNamespace:        os.Getenv("METRICS_NAMESPACE"),
		EnableCostAnalysis:      envBool("ENABLE_COST_ANALYSIS", true),
		EnableRootCauseAnalysis: envBool("ENABLE_ROOT_CAUSE_ANALYSIS", true),
		EnableLambdaTrail:       envBool("ENABLE_LAMBDA_TRAIL", false),
	}
}

// RequireOpenSearch validates the settings needed to reach the search engine.
func (c *Config) RequireOpenSearch() error {
	if c.OpenSearchHost == "" {
		return fmt.Errorf("OPENSEARCH_HOST is not set")
	}
	return nil
}

// RequireNotification validates the settings needed to publish alerts.
func (c *Config) RequireNotification() error {
	if c.NotifTopicARN == "" {
		return fmt.Errorf("NOTIF_TOPIC_ARN is not set")
	}
	return nil
}

// RequireDocumentSink validates the settings needed to upsert documents.
func (c *Config) RequireDocumentSink() error {
	if c.QApplicationID == "" || c.QIndexID == "" {
		return fmt.Errorf("Q_APPLICATION_ID and Q_INDEX_ID must both be set")
	}
	return nil
}

// IsSensitiveAccount reports whether id is flagged as sensitive.
func (c *Config) IsSensitiveAccount(id string) bool {
	for _, a := range c.SensitiveAccounts {
		if a == id {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envMinutes(key string, fallback int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * time.Minute
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(fallback) * time.Minute
	}
	return time.Duration(n) * time.Minute
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true")
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
