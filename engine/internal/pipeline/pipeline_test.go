package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perseus/engine/configx"
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/random"
	"perseus/engine/models"
	"perseus/engine/pdg"
)

type probeModule struct {
	name    string
	calls   *[]string
	initErr error
	procErr error
}

func (p *probeModule) Init(ctx *Context) error {
	*p.calls = append(*p.calls, "init:"+p.name)
	return p.initErr
}

func (p *probeModule) Process(ctx *Context) error {
	*p.calls = append(*p.calls, "proc:"+p.name)
	return p.procErr
}

func (p *probeModule) Finish(ctx *Context) error {
	*p.calls = append(*p.calls, "finish:"+p.name)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *[]string) {
	t.Helper()
	calls := &[]string{}
	s := NewScheduler(SchedulerConfig{
		Arrays:  arrays.NewRegistry(),
		Factory: models.NewFactory(),
		Random:  random.New(1),
		PDG:     pdg.Default(),
		Event:   &EventInfo{},
	})
	return s, calls
}

func addProbe(s *Scheduler, calls *[]string, name string, initErr, procErr error) {
	spec := &configx.ModuleSpec{Module: "Probe", Name: name}
	s.Add(spec, &probeModule{name: name, calls: calls, initErr: initErr, procErr: procErr})
}

func TestLifecycleOrdering(t *testing.T) {
	s, calls := newTestScheduler(t)
	addProbe(s, calls, "a", nil, nil)
	addProbe(s, calls, "b", nil, nil)
	addProbe(s, calls, "c", nil, nil)

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.ProcessEvent(context.Background(), func() error { return nil }))
	require.NoError(t, s.Finish(context.Background()))

	assert.Equal(t, []string{
		"init:a", "init:b", "init:c",
		"proc:a", "proc:b", "proc:c",
		"finish:c", "finish:b", "finish:a", // reverse order
	}, *calls)
}

func TestInitErrorIsFatalAndNamesModule(t *testing.T) {
	s, calls := newTestScheduler(t)
	addProbe(s, calls, "good", nil, nil)
	addProbe(s, calls, "bad", &models.ConfigError{Module: "bad", Key: "Radius", Reason: "missing required key"}, nil)
	addProbe(s, calls, "never", nil, nil)

	err := s.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Contains(t, err.Error(), "Radius")
	assert.NotContains(t, *calls, "init:never", "init stops at the first failure")
}

func TestProcessErrorAbortsEventAndCounts(t *testing.T) {
	s, calls := newTestScheduler(t)
	addProbe(s, calls, "a", nil, nil)
	addProbe(s, calls, "boom", nil, errors.New("kaput"))
	addProbe(s, calls, "after", nil, nil)
	require.NoError(t, s.Init(context.Background()))

	err := s.ProcessEvent(context.Background(), func() error { return nil })
	require.Error(t, err)
	var me *ModuleError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "boom", me.Module)
	assert.NotContains(t, *calls, "proc:after", "downstream modules do not run")

	c := s.Counters()
	assert.Equal(t, int64(0), c.Processed)
	assert.Equal(t, int64(1), c.Failed)
	assert.Equal(t, int64(0), c.Skipped)
}

func TestExternalErrorCountsAsSkipped(t *testing.T) {
	s, calls := newTestScheduler(t)
	addProbe(s, calls, "cluster", nil, &models.ExternalError{Op: "clustering", Err: errors.New("nope")})
	require.NoError(t, s.Init(context.Background()))

	err := s.ProcessEvent(context.Background(), func() error { return nil })
	require.Error(t, err)
	c := s.Counters()
	assert.Equal(t, int64(1), c.Skipped)
	assert.Equal(t, int64(0), c.Failed)
}

func TestFillInputErrorCountsAsSkipped(t *testing.T) {
	s, calls := newTestScheduler(t)
	addProbe(s, calls, "a", nil, nil)
	require.NoError(t, s.Init(context.Background()))

	err := s.ProcessEvent(context.Background(), func() error {
		return &models.InputError{Event: 7, Reason: "non-finite kinematics"}
	})
	require.Error(t, err)
	assert.NotContains(t, *calls, "proc:a")
	assert.Equal(t, int64(1), s.Counters().Skipped)
}

func TestPoolIsEmptyAtEventStart(t *testing.T) {
	s, _ := newTestScheduler(t)
	fac := s.base.Factory
	require.NoError(t, s.Init(context.Background()))

	seen := -1
	fill := func() error {
		seen = fac.Size()
		fac.NewCandidate()
		return nil
	}
	require.NoError(t, s.ProcessEvent(context.Background(), fill))
	assert.Equal(t, 0, seen)
	require.NoError(t, s.ProcessEvent(context.Background(), fill))
	assert.Equal(t, 0, seen, "Clear is idempotent across events")
}

func TestContextParamHelpers(t *testing.T) {
	s, calls := newTestScheduler(t)
	spec := &configx.ModuleSpec{Module: "Probe", Name: "p", Params: map[string]configx.Param{
		"Radius": configx.NewParam(0.7),
	}}
	s.Add(spec, &probeModule{name: "p", calls: calls})
	ctx := s.modules[0].mctx

	assert.Equal(t, 0.7, ctx.Float("Radius", 0))
	assert.Equal(t, 42, ctx.Int("Missing", 42))
	_, err := ctx.RequireString("InputArray")
	var ce *models.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "p", ce.Module)
	assert.Equal(t, "InputArray", ce.Key)
}

func TestExportImportThroughContext(t *testing.T) {
	s, calls := newTestScheduler(t)
	addProbe(s, calls, "prod", nil, nil)
	ctx := s.modules[0].mctx

	out, err := ctx.ExportArray("things")
	require.NoError(t, err)
	assert.Equal(t, "prod/things", out.Path())

	in, err := ctx.ImportArray("prod/things")
	require.NoError(t, err)
	assert.Same(t, out, in)

	_, err = ctx.ImportArray("nowhere/else")
	var re *models.ResolveError
	require.ErrorAs(t, err, &re)
}
