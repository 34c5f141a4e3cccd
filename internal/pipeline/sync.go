// Package pipeline wires the collaborators into the two recurring cycles:
// the sync cycle that turns fresh anomalies into indexed documents, and the
// notify cycle that enriches detector alerts into insight reports.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/correlation"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/severity"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/transform"
)

// anomalySource is the aggregation query surface the sync cycle reads from.
type anomalySource interface {
	FetchRecentAnomalies(ctx context.Context, window time.Duration) ([]models.AnomalyGroup, error)
}

// documentSink receives the transformed documents.
type documentSink interface {
	Put(ctx context.Context, docs []models.AnomalyDocument) (*models.SyncResult, error)
}

// accountResolver resolves account metadata for alias enrichment.
type accountResolver interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
}

// Syncer drives the recurring anomaly-to-document cycle.
type Syncer struct {
	source    anomalySource
	sink      documentSink
	directory accountResolver
	metrics   *MetricsRecorder
	log       *zap.Logger

	// window is the aggregation lookback per cycle.
	window time.Duration

	// sensitive marks accounts whose involvement raises severity.
	sensitive map[string]bool

	now func() time.Time
}

// SyncerOptions collects the optional collaborators of a Syncer.
type SyncerOptions struct {
	// Directory enables account-alias enrichment when set.
	Directory accountResolver

	// Metrics enables cycle metrics when set.
	Metrics *MetricsRecorder

	// SensitiveAccounts raise composite severity when affected.
	SensitiveAccounts []string
}

// NewSyncer constructs a Syncer over the given source and sink.
func NewSyncer(source anomalySource, sink documentSink, window time.Duration, opts SyncerOptions, log *zap.Logger) *Syncer {
	sensitive := make(map[string]bool, len(opts.SensitiveAccounts))
	for _, id := range opts.SensitiveAccounts {
		sensitive[id] = true
	}
	return &Syncer{
		source:    source,
		sink:      sink,
		directory: opts.Directory,
		metrics:   opts.Metrics,
		log:       log,
		window:    window,
		sensitive: sensitive,
		now:       time.Now,
	}
}

// RunOnce executes a single sync cycle: fetch recent anomaly groups, enrich
// account aliases, correlate per event type, score, transform, and upsert.
// An empty cycle is a valid outcome and returns an empty result.
func (s *Syncer) RunOnce(ctx context.Context) (*models.SyncResult, error) {
	started := s.now()

	groups, err := s.source.FetchRecentAnomalies(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("fetch anomalies: %w", err)
	}
	if len(groups) == 0 {
		s.log.Info("sync cycle found no anomalies")
		s.metrics.RecordSync(ctx, 0, 0, 0, s.now().Sub(started))
		return &models.SyncResult{}, nil
	}

	s.enrichAliases(ctx, groups)

	docs := s.buildDocuments(groups)

	result, err := s.sink.Put(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("upsert documents: %w", err)
	}

	s.metrics.RecordSync(ctx, len(groups), result.SuccessCount, len(result.Failed), s.now().Sub(started))
	s.log.Info("sync cycle finished",
		zap.Int("anomalies", len(groups)),
		zap.Int("synced", result.SuccessCount),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// Run executes sync cycles on the given interval until the context is
// cancelled. A failed cycle is logged and the loop keeps going.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error("sync cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// buildDocuments correlates groups per event type, scores each group against
// its partition's correlation result, and transforms them into documents in
// a stable (event type, account) order.
func (s *Syncer) buildDocuments(groups []models.AnomalyGroup) []models.AnomalyDocument {
	partitions := make(map[string][]models.AnomalyGroup)
	for _, g := range groups {
		partitions[g.EventType] = append(partitions[g.EventType], g)
	}

	eventTypes := make([]string, 0, len(partitions))
	for et := range partitions {
		eventTypes = append(eventTypes, et)
	}
	sort.Strings(eventTypes)

	var docs []models.AnomalyDocument
	for _, et := range eventTypes {
		part := partitions[et]
		corr := correlation.Analyze(part, s.window)

		for _, g := range part {
			sev := severity.Score(severity.FromGroup(g), corr, s.sensitive)
			docs = append(docs, transform.ToDocument(g, sev))
		}
	}
	return docs
}

// enrichAliases fills missing account aliases from the directory. Lookup
// failures leave the group unenriched; the raw account id still renders.
func (s *Syncer) enrichAliases(ctx context.Context, groups []models.AnomalyGroup) {
	if s.directory == nil {
		return
	}

	names := make(map[string]string)
	for i := range groups {
		g := &groups[i]
		if g.AccountAlias != "" || hasSampleAlias(*g) {
			continue
		}

		name, seen := names[g.AccountID]
		if !seen {
			account, err := s.directory.GetAccount(ctx, g.AccountID)
			if err != nil {
				s.log.Warn("account alias lookup failed",
					zap.String("account_id", g.AccountID), zap.Error(err))
				names[g.AccountID] = ""
				continue
			}
			name = account.Name
			names[g.AccountID] = name
		}
		g.AccountAlias = name
	}
}

func hasSampleAlias(g models.AnomalyGroup) bool {
	for _, sample := range g.SampleEvents {
		if sample.AccountAlias != "" {
			return true
		}
	}
	return false
}
