package detector

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Observability artifacts: the saved objects that make the multi-account
// indices browsable. They are sugar, not correctness-critical, so every
// provisioning step here is best-effort: failures log a warning and the
// remaining steps still run.
const (
	indexTemplateName = "cwl-multiaccounts-template"

	indexPatternID  = "cwl-multiaccounts"
	visualizationID = "multi-account-distribution"
	savedIndexTitle = "cwl-multiaccounts*"
)

// indexTemplateBody returns the schema template backing the multi-account
// log indices. Field mappings match what the log forwarders emit.
func indexTemplateBody() map[string]any {
	return map[string]any{
		"index_patterns": []string{savedIndexTitle},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":       1,
				"number_of_replicas":     1,
				"index.refresh_interval": "30s",
			},
			"mappings": map[string]any{
				"properties": map[string]any{
					"@timestamp": map[string]any{"type": "date"},
					"eventTime":  map[string]any{"type": "date"},
					"eventName": map[string]any{
						"type": "text",
						"fields": map[string]any{
							"keyword": map[string]any{"type": "keyword"},
						},
					},
					"recipientAccountId": map[string]any{"type": "keyword"},
					"accountAlias":       map[string]any{"type": "keyword"},
					"accountType":        map[string]any{"type": "keyword"},
					"organizationId":     map[string]any{"type": "keyword"},
					"organizationalUnit": map[string]any{"type": "keyword"},
					"costCenter":         map[string]any{"type": "keyword"},
					"awsRegion":          map[string]any{"type": "keyword"},
					"sourceIPAddress":    map[string]any{"type": "ip"},
					"userIdentity.type":  map[string]any{"type": "keyword"},
					"eventSource":        map[string]any{"type": "keyword"},
				},
			},
		},
	}
}

// ProvisionDashboards creates the index pattern and the account-distribution
// visualization. Both creations are idempotent (an existing object is
// success) and best-effort; this method never fails the caller.
func (c *Configurator) ProvisionDashboards(ctx context.Context) {
	indexPattern := map[string]any{
		"attributes": map[string]any{
			"title":         savedIndexTitle,
			"timeFieldName": "@timestamp",
		},
	}
	if err := c.engine.CreateSavedObject(ctx, "index-pattern", indexPatternID, indexPattern); err != nil {
		c.log.Warn("index pattern provisioning failed", zap.Error(err))
	}

	if err := c.engine.CreateSavedObject(ctx, "visualization", visualizationID, distributionVisualization()); err != nil {
		c.log.Warn("visualization provisioning failed", zap.Error(err))
	}
}

// TeardownDashboards removes the saved objects; absent objects are success.
func (c *Configurator) TeardownDashboards(ctx context.Context) {
	if err := c.engine.DeleteSavedObject(ctx, "visualization", visualizationID); err != nil {
		c.log.Warn("visualization deletion failed", zap.Error(err))
	}
	if err := c.engine.DeleteSavedObject(ctx, "index-pattern", indexPatternID); err != nil {
		c.log.Warn("index pattern deletion failed", zap.Error(err))
	}
}

// distributionVisualization builds the per-account event distribution pie.
// visState and searchSourceJSON are stored as embedded JSON strings, as the
// dashboards saved-object API requires.
func distributionVisualization() map[string]any {
	visState, _ := json.Marshal(map[string]any{
		"title": "Multi-Account Event Distribution",
		"type":  "pie",
		"params": map[string]any{
			"addTooltip":     true,
			"addLegend":      true,
			"legendPosition": "right",
		},
		"aggs": []any{
			map[string]any{
				"id": "1", "enabled": true, "type": "count",
				"schema": "metric", "params": map[string]any{},
			},
			map[string]any{
				"id": "2", "enabled": true, "type": "terms", "schema": "segment",
				"params": map[string]any{
					"field":   "accountAlias.keyword",
					"size":    10,
					"order":   "desc",
					"orderBy": "1",
				},
			},
		},
	})
	searchSource, _ := json.Marshal(map[string]any{
		"index": indexPatternID,
		"query": map[string]any{"match_all": map[string]any{}},
	})

	return map[string]any{
		"attributes": map[string]any{
			"title":       "Multi-Account Event Distribution",
			"visState":    string(visState),
			"uiStateJSON": "{}",
			"description": "Distribution of events across AWS accounts",
			"version":     1,
			"kibanaSavedObjectMeta": map[string]any{
				"searchSourceJSON": string(searchSource),
			},
		},
	}
}
