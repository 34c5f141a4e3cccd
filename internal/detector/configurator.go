// Package detector builds and registers per-event-type anomaly-detector
// specifications against the search engine and manages their lifecycle.
//
// Update is a full replace: existing detectors matching the naming
// convention are stopped and deleted before recreation, so there is a brief
// window during an update in which a detector does not exist. The
// anomaly-detection plugin rejects structural edits on a running detector,
// which makes that window an accepted tradeoff rather than a hidden one.
package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/search"
)

// State is the configuration lifecycle state of the detector set.
type State string

const (
	StateUnconfigured State = "UNCONFIGURED"
	StateConfiguring  State = "CONFIGURING"
	StateActive       State = "ACTIVE"
	StateDeleting     State = "DELETING"
	// StateFailed is terminal for the run that produced it; previously
	// created detectors are not rolled back.
	StateFailed State = "FAILED"
)

// engineAPI is the subset of the search client the configurator uses.
// Narrow so tests can substitute a mock.
type engineAPI interface {
	CreateDetector(ctx context.Context, spec models.DetectorSpec) (string, error)
	StartDetector(ctx context.Context, id string) error
	StopDetector(ctx context.Context, id string) error
	DeleteDetector(ctx context.Context, id string) error
	ListDetectors(ctx context.Context, namePattern string) ([]search.DetectorSummary, error)
	PutIndexTemplate(ctx context.Context, name string, body any) error
	DeleteIndexTemplate(ctx context.Context, name string) error
	CreateSavedObject(ctx context.Context, objType, id string, body any) error
	DeleteSavedObject(ctx context.Context, objType, id string) error
}

// Options tunes the configurator. Zero values select the deployed defaults.
type Options struct {
	// NamePrefix is the naming convention shared by every detector this
	// configurator owns. Teardown removes exactly the detectors matching
	// NamePrefix + "*".
	NamePrefix string

	// IndexPattern is the log index pattern detectors read from.
	IndexPattern string

	// DetectionInterval and WindowDelay configure the detector schedule.
	DetectionInterval time.Duration
	WindowDelay       time.Duration

	// EnableLambdaTrail gates Lambda-invoke detectors: the Invoke data
	// volume is only present when the Lambda trail is enabled, and a
	// detector over an empty stream never initialises.
	EnableLambdaTrail bool
}

// DefaultNamePrefix is the naming convention shared by the deployed
// detector set. Alert parsing strips the same prefix.
const DefaultNamePrefix = "multi-account-"

const (
	defaultDetectionInterval = 10 * time.Minute
	defaultWindowDelay       = 1 * time.Minute
)

func (o *Options) applyDefaults(indexPattern string) {
	if o.NamePrefix == "" {
		o.NamePrefix = DefaultNamePrefix
	}
	if o.IndexPattern == "" {
		o.IndexPattern = indexPattern
	}
	if o.DetectionInterval <= 0 {
		o.DetectionInterval = defaultDetectionInterval
	}
	if o.WindowDelay <= 0 {
		o.WindowDelay = defaultWindowDelay
	}
}

// Configurator owns the create/update/delete lifecycle of the detector set.
// Configuration runs are expected to be serialized externally (one
// deployment at a time); the configurator does not implement distributed
// locking and relies on delete-then-recreate for logical exclusivity.
type Configurator struct {
	engine engineAPI
	log    *zap.Logger
	opts   Options

	mu    sync.Mutex
	state State
}

// New constructs a Configurator talking to engine. indexPattern is used when
// opts.IndexPattern is empty.
func New(engine engineAPI, indexPattern string, opts Options, log *zap.Logger) *Configurator {
	opts.applyDefaults(indexPattern)
	return &Configurator{
		engine: engine,
		log:    log,
		opts:   opts,
		state:  StateUnconfigured,
	}
}

// State returns the current lifecycle state.
func (c *Configurator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Configurator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Configure registers and starts one detector per template, returning one
// result per input template. A single template's failure never aborts its
// siblings; templates are registered in parallel since they are independent.
//
// Re-configuring is a full replace: detectors matching the naming convention
// are stopped and deleted first. The backing index template is provisioned
// best-effort before registration (a warning, not a failure, when the engine
// rejects it). Dashboard artifacts are NOT provisioned here; call
// ProvisionDashboards separately.
func (c *Configurator) Configure(ctx context.Context, templates []models.DetectorTemplate) ([]models.DetectorRegistrationResult, error) {
	c.setState(StateConfiguring)

	// Full replace: clear out any detector set left by a previous run.
	if err := c.removeExisting(ctx); err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("remove existing detectors: %w", err)
	}

	// Schema backing for the log indices. Observability sugar failures are
	// logged and skipped; detection does not depend on the template.
	if err := c.engine.PutIndexTemplate(ctx, indexTemplateName, indexTemplateBody()); err != nil {
		c.log.Warn("index template provisioning failed", zap.Error(err))
	}

	results := make([]models.DetectorRegistrationResult, len(templates))
	var wg sync.WaitGroup
	for i, tmpl := range templates {
		wg.Add(1)
		go func(i int, tmpl models.DetectorTemplate) {
			defer wg.Done()
			results[i] = c.register(ctx, tmpl)
		}(i, tmpl)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Status == models.RegistrationFailed {
			failed++
		}
	}
	if failed > 0 {
		c.setState(StateFailed)
		c.log.Warn("configuration completed with failures",
			zap.Int("failed", failed), zap.Int("total", len(results)))
	} else {
		c.setState(StateActive)
	}
	return results, nil
}

// register builds the full DetectorSpec for tmpl, creates it, and starts it.
// Registration and activation are separate engine steps; a detector that was
// created but could not be started is reported as failed with its id so the
// operator can start or delete it by hand.
func (c *Configurator) register(ctx context.Context, tmpl models.DetectorTemplate) models.DetectorRegistrationResult {
	kind := tmpl.ResolvedKind()

	if kind == models.KindLambdaInvoke && !c.opts.EnableLambdaTrail {
		c.log.Info("skipping lambda detector, lambda trail disabled",
			zap.String("template", tmpl.Name))
		return models.DetectorRegistrationResult{
			Name:   tmpl.Name,
			Status: models.RegistrationSkipped,
			Error:  "lambda trail is disabled",
		}
	}

	spec := c.buildSpec(tmpl, kind)

	id, err := c.engine.CreateDetector(ctx, spec)
	if err != nil {
		c.log.Error("detector registration failed",
			zap.String("detector", spec.Name), zap.Error(err))
		return models.DetectorRegistrationResult{
			Name:   tmpl.Name,
			Status: models.RegistrationFailed,
			Error:  err.Error(),
		}
	}

	if err := c.engine.StartDetector(ctx, id); err != nil {
		c.log.Error("detector created but not started",
			zap.String("detector", spec.Name), zap.String("id", id), zap.Error(err))
		return models.DetectorRegistrationResult{
			Name:   tmpl.Name,
			Status: models.RegistrationFailed,
			ID:     id,
			Error:  fmt.Sprintf("created but not started: %v", err),
		}
	}

	c.log.Info("detector registered and started",
		zap.String("detector", spec.Name), zap.String("id", id))
	return models.DetectorRegistrationResult{
		Name:   tmpl.Name,
		Status: models.RegistrationCreated,
		ID:     id,
	}
}

// buildSpec expands a template into the full detector definition via the
// kind dispatch table.
func (c *Configurator) buildSpec(tmpl models.DetectorTemplate, kind models.EventKind) models.DetectorSpec {
	fs := specForKind(kind)
	return models.DetectorSpec{
		Name:              c.opts.NamePrefix + tmpl.Name,
		Description:       fmt.Sprintf("Multi-account anomaly detector for %s", tmpl.Name),
		TimeField:         "@timestamp",
		Indices:           []string{c.opts.IndexPattern},
		FeatureAttributes: fs.features,
		FilterQuery:       fs.filterQuery,
		WindowDelay:       periodMinutes(c.opts.WindowDelay),
		DetectionInterval: periodMinutes(c.opts.DetectionInterval),
		CategoryFields:    tmpl.CategoryFields,
	}
}

// Teardown stops and deletes every detector matching the naming convention,
// then removes the dashboard artifacts and index template best-effort.
// Deleting an already-absent detector reports success.
func (c *Configurator) Teardown(ctx context.Context) error {
	c.setState(StateDeleting)

	if err := c.removeExisting(ctx); err != nil {
		c.setState(StateFailed)
		return err
	}

	c.TeardownDashboards(ctx)

	if err := c.engine.DeleteIndexTemplate(ctx, indexTemplateName); err != nil {
		c.log.Warn("index template deletion failed", zap.Error(err))
	}

	c.setState(StateUnconfigured)
	return nil
}

// removeExisting stops and deletes all detectors matching the naming
// convention. Individual stop failures do not block deletion.
func (c *Configurator) removeExisting(ctx context.Context) error {
	existing, err := c.engine.ListDetectors(ctx, c.opts.NamePrefix+"*")
	if err != nil {
		return fmt.Errorf("list detectors: %w", err)
	}

	for _, d := range existing {
		if err := c.engine.StopDetector(ctx, d.ID); err != nil {
			c.log.Warn("detector stop failed, attempting delete anyway",
				zap.String("detector", d.Name), zap.Error(err))
		}
		if err := c.engine.DeleteDetector(ctx, d.ID); err != nil {
			return fmt.Errorf("delete detector %q: %w", d.Name, err)
		}
		c.log.Info("detector removed", zap.String("detector", d.Name))
	}
	return nil
}

// periodMinutes converts a duration to the plugin's minute-based period
// envelope, rounding up to at least one minute.
func periodMinutes(d time.Duration) models.RecurringPeriod {
	minutes := int(d / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return models.RecurringPeriod{Period: models.PeriodSpec{Interval: minutes, Unit: "Minutes"}}
}
