// Package pipeline is the module execution framework: configured processing
// stages wired into a linear schedule driven by named candidate arrays.
// Cross-module communication happens solely through the array registry; no
// module invokes another directly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"perseus/engine/configx"
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/random"
	"perseus/engine/models"
	"perseus/engine/pdg"
	"perseus/engine/telemetry/logging"
	"perseus/engine/telemetry/metrics"
)

// Module is one processing stage. Init runs once in declaration order and
// binds configuration and arrays; Process runs once per event in declaration
// order; Finish runs once at shutdown in reverse order.
type Module interface {
	Init(ctx *Context) error
	Process(ctx *Context) error
	Finish(ctx *Context) error
}

// Clusterer and PileUpSampler are opaque here: the framework hands them
// through to the modules that assert their concrete capability interfaces
// (engine/cluster.Clusterer, engine/reader.PileUpSampler), so it does not
// depend on any one implementation.
type Clusterer = any
type PileUpSampler = any

// EventInfo is the per-event header shared by the engine with every module
// context; the writer reads it when filling scalar branches.
type EventInfo struct {
	Number int64
	Weight float64
	Header any
}

// Context is a module's window onto the run: its configuration block, the
// array registry, the per-event pool, the shared random engine, the PDG
// table, and telemetry. One Context per configured module instance.
type Context struct {
	Name    string
	Spec    *configx.ModuleSpec
	Arrays  *arrays.Registry
	Factory *models.Factory
	Random  *random.Engine
	PDG     *pdg.Table
	Cluster Clusterer
	PileUp  PileUpSampler
	Log     logging.Logger
	Metrics metrics.Provider
	Event   *EventInfo

	ctx context.Context
}

// Ctx returns the cancellation context of the run (modules are not
// interruptible mid-Process; this is for logging correlation only).
func (c *Context) Ctx() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// ImportArray borrows the named array for read-only iteration. Call at Init;
// a missing path is a fatal ResolveError.
func (c *Context) ImportArray(path string) (*arrays.Array, error) {
	return c.Arrays.Import(c.Name, path)
}

// ExportArray claims ownership of the array at "<instance>/<name>".
func (c *Context) ExportArray(name string) (*arrays.Array, error) {
	return c.Arrays.Export(c.Name, c.Name+"/"+name)
}

// Typed parameter access with defaults, delegating to the config block.

func (c *Context) Int(key string, def int) int            { return c.Spec.Int(key, def) }
func (c *Context) Float(key string, def float64) float64  { return c.Spec.Float(key, def) }
func (c *Context) Bool(key string, def bool) bool         { return c.Spec.Bool(key, def) }
func (c *Context) String(key string, def string) string   { return c.Spec.String(key, def) }
func (c *Context) List(key string) []configx.Param        { return c.Spec.List(key) }
func (c *Context) Param(key string) (configx.Param, bool) { return c.Spec.Param(key) }

// RequireString returns the string parameter or a ConfigError naming the
// module and key.
func (c *Context) RequireString(key string) (string, error) {
	if v := c.Spec.String(key, ""); v != "" {
		return v, nil
	}
	return "", &models.ConfigError{Module: c.Name, Key: key, Reason: "missing required key"}
}

// ConfigErr builds a ConfigError bound to this module.
func (c *Context) ConfigErr(key, format string, args ...any) error {
	return &models.ConfigError{Module: c.Name, Key: key, Reason: fmt.Sprintf(format, args...)}
}

type boundModule struct {
	name string
	mod  Module
	mctx *Context
}

// Counters aggregates the per-run event accounting emitted at Finish.
type Counters struct {
	Processed int64
	Failed    int64
	Skipped   int64
}

// Scheduler owns the configured module instances and drives their lifecycle.
type Scheduler struct {
	base     SchedulerConfig
	modules  []boundModule
	counters Counters

	procSeconds metrics.Histogram
	evFailed    metrics.Counter
	evProcessed metrics.Counter
}

type SchedulerConfig struct {
	Arrays  *arrays.Registry
	Factory *models.Factory
	Random  *random.Engine
	PDG     *pdg.Table
	Cluster Clusterer
	PileUp  PileUpSampler
	Log     logging.Logger
	Metrics metrics.Provider
	Event   *EventInfo
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	s := &Scheduler{}
	s.base = cfg
	if cfg.Metrics != nil {
		s.evProcessed = cfg.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "perseus", Subsystem: "events", Name: "processed_total", Help: "events fully processed"}})
		s.evFailed = cfg.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "perseus", Subsystem: "events", Name: "failed_total", Help: "events aborted by a module error"}})
		s.procSeconds = cfg.Metrics.NewHistogram(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "perseus", Subsystem: "events", Name: "process_seconds", Help: "wall time per event in the module pipeline"}})
	}
	return s
}

// Add appends a module instance in declaration order.
func (s *Scheduler) Add(spec *configx.ModuleSpec, mod Module) {
	name := spec.InstanceName()
	s.modules = append(s.modules, boundModule{
		name: name,
		mod:  mod,
		mctx: &Context{
			Name:    name,
			Spec:    spec,
			Arrays:  s.base.Arrays,
			Factory: s.base.Factory,
			Random:  s.base.Random,
			PDG:     s.base.PDG,
			Cluster: s.base.Cluster,
			PileUp:  s.base.PileUp,
			Log:     s.base.Log,
			Metrics: s.base.Metrics,
			Event:   s.base.Event,
		},
	})
}

// Init runs every module's Init in declaration order. The first error is
// fatal and is returned wrapped with the offending module's name.
func (s *Scheduler) Init(ctx context.Context) error {
	for _, m := range s.modules {
		m.mctx.ctx = ctx
		if err := m.mod.Init(m.mctx); err != nil {
			return fmt.Errorf("init module %s: %w", m.name, err)
		}
	}
	return nil
}

// ProcessEvent clears the pool and every array, lets fill populate the
// reader arrays, then runs every module's Process in declaration order. An
// error aborts the event and is returned (the caller continues with the
// next event); malformed-input and external-collaborator failures count as
// skipped, any other module failure as failed. io.EOF from fill passes
// through uncounted.
func (s *Scheduler) ProcessEvent(ctx context.Context, fill func() error) error {
	start := time.Now()
	s.base.Factory.Clear()
	s.base.Arrays.ClearAll()
	if err := fill(); err != nil {
		if !errors.Is(err, io.EOF) && isSkip(err) {
			s.counters.Skipped++
		}
		return err
	}
	for _, m := range s.modules {
		m.mctx.ctx = ctx
		if err := m.mod.Process(m.mctx); err != nil {
			if isSkip(err) {
				s.counters.Skipped++
			} else {
				s.counters.Failed++
				if s.evFailed != nil {
					s.evFailed.Inc(1)
				}
			}
			return &ModuleError{Module: m.name, Err: err}
		}
	}
	s.counters.Processed++
	if s.evProcessed != nil {
		s.evProcessed.Inc(1)
	}
	if s.procSeconds != nil {
		s.procSeconds.Observe(time.Since(start).Seconds())
	}
	return nil
}

func isSkip(err error) bool {
	var in *models.InputError
	var ex *models.ExternalError
	return errors.As(err, &in) || errors.As(err, &ex)
}

// ModuleError attributes a per-event processing failure to its module. The
// event was already accounted by the scheduler when one is returned.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string { return fmt.Sprintf("module %s: %v", e.Module, e.Err) }
func (e *ModuleError) Unwrap() error { return e.Err }

// Finish runs every module's Finish in reverse declaration order, collecting
// (not short-circuiting on) errors.
func (s *Scheduler) Finish(ctx context.Context) error {
	var first error
	for i := len(s.modules) - 1; i >= 0; i-- {
		m := s.modules[i]
		m.mctx.ctx = ctx
		if err := m.mod.Finish(m.mctx); err != nil && first == nil {
			first = fmt.Errorf("finish module %s: %w", m.name, err)
		}
	}
	return first
}

// Counters returns the running event accounting.
func (s *Scheduler) Counters() Counters { return s.counters }
