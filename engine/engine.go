// Package engine composes the reconstruction pipeline behind a single
// facade: it builds the configured module schedule, owns the per-event
// candidate pool and the named-array registry, and drives the event loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"perseus/engine/cluster"
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/internal/random"
	internaltracing "perseus/engine/internal/telemetry/tracing"
	"perseus/engine/models"
	"perseus/engine/modules"
	"perseus/engine/pdg"
	"perseus/engine/reader"
	"perseus/engine/telemetry/logging"
	"perseus/engine/telemetry/metrics"
)

// Summary is the end-of-run accounting emitted by Run.
type Summary struct {
	RunID     string
	Processed int64
	Failed    int64
	Skipped   int64
	Duration  time.Duration
}

// Snapshot is a point-in-time view of engine state.
type Snapshot struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Uptime    time.Duration     `json:"uptime"`
	Counters  pipeline.Counters `json:"counters"`
	PoolSize  int               `json:"pool_size"`
}

// Engine composes all subsystems behind a single facade.
type Engine struct {
	cfg       Config
	runID     string
	startedAt time.Time

	registry *arrays.Registry
	factory  *models.Factory
	rng      *random.Engine
	table    *pdg.Table
	sched    *pipeline.Scheduler
	tracer   *internaltracing.Tracer
	log      logging.Logger
	event    *pipeline.EventInfo
	provider metrics.Provider

	maxEvents int

	allParticles    *arrays.Array
	stableParticles *arrays.Array
	partons         *arrays.Array
	lheParticles    *arrays.Array
}

// New constructs an Engine from the configuration, builds every configured
// module, and runs their Init in declaration order. Init errors are fatal
// and name the offending module and key.
func New(cfg Config) (*Engine, error) {
	if cfg.Spec == nil {
		return nil, errors.New("engine: run spec is required")
	}
	if len(cfg.Spec.Pipeline) == 0 {
		return nil, errors.New("engine: pipeline is empty")
	}
	seed := cfg.Spec.Seed
	if cfg.Seed != 0 {
		seed = cfg.Seed
	}
	maxEvents := cfg.Spec.MaxEvents
	if cfg.MaxEvents != 0 {
		maxEvents = cfg.MaxEvents
	}
	clusterer := cfg.Clusterer
	if clusterer == nil {
		clusterer = cluster.NewEngine()
	}

	e := &Engine{
		cfg:       cfg,
		runID:     uuid.NewString(),
		startedAt: time.Now(),
		registry:  arrays.NewRegistry(),
		factory:   models.NewFactory(),
		rng:       random.New(seed),
		table:     pdg.Default(),
		tracer:    internaltracing.NewTracer(cfg.TracingEnabled),
		log:       logging.New(cfg.Logger),
		event:     &pipeline.EventInfo{},
		provider:  selectMetricsProvider(cfg),
		maxEvents: maxEvents,
	}

	// The reader arrays exist before any module Init so downstream imports
	// resolve regardless of pipeline position.
	var err error
	if e.allParticles, err = e.registry.Export("Reader", "Reader/allParticles"); err != nil {
		return nil, err
	}
	if e.stableParticles, err = e.registry.Export("Reader", "Reader/stableParticles"); err != nil {
		return nil, err
	}
	if e.partons, err = e.registry.Export("Reader", "Reader/partons"); err != nil {
		return nil, err
	}
	if e.lheParticles, err = e.registry.Export("Reader", "Reader/LHEParticles"); err != nil {
		return nil, err
	}

	e.sched = pipeline.NewScheduler(pipeline.SchedulerConfig{
		Arrays:  e.registry,
		Factory: e.factory,
		Random:  e.rng,
		PDG:     e.table,
		Cluster: clusterer,
		PileUp:  cfg.PileUp,
		Log:     e.log,
		Metrics: e.provider,
		Event:   e.event,
	})
	for i := range cfg.Spec.Pipeline {
		spec := &cfg.Spec.Pipeline[i]
		mod, err := modules.Build(spec.Module)
		if err != nil {
			return nil, fmt.Errorf("pipeline entry %d: %w", i, err)
		}
		e.sched.Add(spec, mod)
	}
	if err := e.sched.Init(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

func selectMetricsProvider(cfg Config) metrics.Provider {
	if !cfg.MetricsEnabled {
		return metrics.NewNoopProvider()
	}
	switch strings.ToLower(cfg.MetricsBackend) {
	case "", "prom", "prometheus":
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	case "otel", "opentelemetry":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{})
	case "noop":
		return metrics.NewNoopProvider()
	default:
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	}
}

// MetricsHandler returns the HTTP handler for metrics exposition, nil unless
// the Prometheus backend is active.
func (e *Engine) MetricsHandler() http.Handler {
	if hp, ok := e.provider.(interface{ MetricsHandler() http.Handler }); ok {
		return hp.MetricsHandler()
	}
	return nil
}

// Run drives the event loop until the reader is exhausted, the event limit
// is reached, or ctx is cancelled (cooperatively, after the current event).
// Per-event failures are logged and counted; only infrastructure errors
// abort the run. Finish always executes, in reverse module order.
func (e *Engine) Run(ctx context.Context, r reader.Reader) (Summary, error) {
	runCtx, runSpan := e.tracer.StartSpan(ctx, "run")
	defer runSpan.End()
	e.log.InfoCtx(runCtx, "run started", "run_id", e.runID, "modules", len(e.cfg.Spec.Pipeline))

	var runErr error
loop:
	for count := 0; e.maxEvents == 0 || count < e.maxEvents; count++ {
		select {
		case <-ctx.Done():
			e.log.InfoCtx(runCtx, "cooperative stop", "reason", ctx.Err())
			break loop
		default:
		}
		evCtx, evSpan := e.tracer.StartSpan(runCtx, "event")
		err := e.sched.ProcessEvent(evCtx, func() error { return e.fill(r) })
		evSpan.End()
		var modErr *pipeline.ModuleError
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			break loop
		case errors.As(err, &modErr) || isEventError(err):
			// Counted by the scheduler; costs one event, the run goes on.
			e.log.WarnCtx(evCtx, "event aborted", "err", err)
		default:
			// The reader broke in a non-event way; stop the run.
			runErr = err
			break loop
		}
	}

	if err := e.sched.Finish(runCtx); err != nil && runErr == nil {
		runErr = err
	}
	c := e.sched.Counters()
	sum := Summary{
		RunID:     e.runID,
		Processed: c.Processed,
		Failed:    c.Failed,
		Skipped:   c.Skipped,
		Duration:  time.Since(e.startedAt),
	}
	e.log.InfoCtx(runCtx, "run finished",
		"processed", sum.Processed, "failed", sum.Failed, "skipped", sum.Skipped,
		"duration", sum.Duration)
	return sum, runErr
}

// fill reads the next event into the per-event pool and publishes the reader
// arrays. Called with pool and registry already cleared.
func (e *Engine) fill(r reader.Reader) error {
	ev, err := r.Read(e.factory)
	if err != nil {
		return err
	}
	e.event.Number = ev.Number
	e.event.Weight = ev.Weight
	e.event.Header = ev.Header
	for _, c := range ev.AllParticles {
		e.allParticles.Append(c)
	}
	for _, c := range ev.StableParticles {
		e.stableParticles.Append(c)
	}
	for _, c := range ev.Partons {
		e.partons.Append(c)
	}
	for _, c := range ev.LHEParticles {
		e.lheParticles.Append(c)
	}
	return nil
}

// isEventError reports errors that cost one event rather than the run:
// malformed input and external-collaborator failures raised by the reader.
func isEventError(err error) bool {
	var in *models.InputError
	var ex *models.ExternalError
	return errors.As(err, &in) || errors.As(err, &ex)
}

// Snapshot returns a unified state view.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		RunID:     e.runID,
		StartedAt: e.startedAt,
		Uptime:    time.Since(e.startedAt),
		Counters:  e.sched.Counters(),
		PoolSize:  e.factory.Size(),
	}
}
