// Package aggregator queries the search engine for recent anomaly-relevant
// events and reduces the server-side aggregation buckets into per
// (account, event name) AnomalyGroups.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// searchAPI is the single search-engine call the aggregator performs; the
// grouping itself happens server-side in one request-response round trip.
type searchAPI interface {
	Search(ctx context.Context, index string, body, out any) error
}

const (
	// maxAccountBuckets bounds the per-account terms aggregation.
	maxAccountBuckets = 100

	// maxSampleEvents caps the representative events carried per group.
	// EventCount remains the exact bucket doc_count regardless.
	maxSampleEvents = 10
)

// anomalyEventNames is the known set of anomaly-relevant CloudTrail event
// names, derived from the EventKind table.
func anomalyEventNames() []string {
	return []string{
		models.KindEC2Launch.EventName(),
		models.KindEBSVolume.EventName(),
		models.KindLambdaInvoke.EventName(),
	}
}

// Aggregator fetches and groups recent anomalous events.
type Aggregator struct {
	search searchAPI
	index  string
	log    *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New constructs an Aggregator over the given index pattern.
func New(search searchAPI, index string, log *zap.Logger) *Aggregator {
	return &Aggregator{search: search, index: index, log: log, now: time.Now}
}

// FetchRecentAnomalies returns one AnomalyGroup per (account, event name)
// pair with matching events in [now - window, now). An empty result is a
// valid steady state, not an error.
func (a *Aggregator) FetchRecentAnomalies(ctx context.Context, window time.Duration) ([]models.AnomalyGroup, error) {
	end := a.now().UTC()
	start := end.Add(-window)

	var out aggregationResponse
	if err := a.search.Search(ctx, a.index, a.buildQuery(start, end), &out); err != nil {
		return nil, fmt.Errorf("aggregate anomalies: %w", err)
	}

	tw := models.TimeWindow{Start: start, End: end}
	var groups []models.AnomalyGroup
	for _, accountBucket := range out.Aggregations.ByAccount.Buckets {
		for _, eventBucket := range accountBucket.ByEvent.Buckets {
			groups = append(groups, models.AnomalyGroup{
				AccountID:    accountBucket.Key,
				EventType:    eventBucket.Key,
				EventCount:   eventBucket.DocCount,
				SampleEvents: parseSamples(eventBucket.EventDetails.Hits.Hits),
				Window:       tw,
			})
		}
	}

	a.log.Info("aggregation cycle complete",
		zap.Int("groups", len(groups)),
		zap.Time("window_start", start),
		zap.Time("window_end", end))
	return groups, nil
}

// buildQuery assembles the nested terms aggregation: account, then event
// name, with the most recent sample events attached via top_hits.
func (a *Aggregator) buildQuery(start, end time.Time) map[string]any {
	return map[string]any{
		"size": 0,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{
						"range": map[string]any{
							"eventTime": map[string]any{
								"gte": start.Format(time.RFC3339),
								"lt":  end.Format(time.RFC3339),
							},
						},
					},
					map[string]any{
						"terms": map[string]any{
							"eventName.keyword": anomalyEventNames(),
						},
					},
				},
			},
		},
		"aggs": map[string]any{
			"by_account": map[string]any{
				"terms": map[string]any{
					"field": "recipientAccountId",
					"size":  maxAccountBuckets,
				},
				"aggs": map[string]any{
					"by_event": map[string]any{
						"terms": map[string]any{
							"field": "eventName.keyword",
						},
						"aggs": map[string]any{
							"event_details": map[string]any{
								"top_hits": map[string]any{
									"size": maxSampleEvents,
									"sort": []any{
										map[string]any{"eventTime": map[string]any{"order": "desc"}},
									},
									"_source": []string{
										"eventTime",
										"awsRegion",
										"userIdentity",
										"sourceIPAddress",
										"accountAlias",
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

// Wire shapes for the aggregation response. Only the fields the pipeline
// reads are declared.
type aggregationResponse struct {
	Aggregations struct {
		ByAccount struct {
			Buckets []accountBucket `json:"buckets"`
		} `json:"by_account"`
	} `json:"aggregations"`
}

type accountBucket struct {
	Key     string `json:"key"`
	ByEvent struct {
		Buckets []eventBucket `json:"buckets"`
	} `json:"by_event"`
}

type eventBucket struct {
	Key          string `json:"key"`
	DocCount     int    `json:"doc_count"`
	EventDetails struct {
		Hits struct {
			Hits []sampleHit `json:"hits"`
		} `json:"hits"`
	} `json:"event_details"`
}

type sampleHit struct {
	Source struct {
		EventTime    string `json:"eventTime"`
		AWSRegion    string `json:"awsRegion"`
		UserIdentity struct {
			Type string `json:"type"`
		} `json:"userIdentity"`
		SourceIPAddress string `json:"sourceIPAddress"`
		AccountAlias    string `json:"accountAlias"`
	} `json:"_source"`
}

// parseSamples converts raw hits into SampleEvents. Unparseable timestamps
// are kept with a zero time rather than dropping the sample.
func parseSamples(hits []sampleHit) []models.SampleEvent {
	if len(hits) == 0 {
		return nil
	}
	samples := make([]models.SampleEvent, 0, len(hits))
	for _, hit := range hits {
		ts, _ := time.Parse(time.RFC3339, hit.Source.EventTime)
		samples = append(samples, models.SampleEvent{
			Timestamp:     ts,
			Region:        hit.Source.AWSRegion,
			PrincipalType: hit.Source.UserIdentity.Type,
			SourceIP:      hit.Source.SourceIPAddress,
			AccountAlias:  hit.Source.AccountAlias,
		})
	}
	return samples
}
