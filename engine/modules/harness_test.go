package modules

import (
	"testing"

	"perseus/engine/cluster"
	"perseus/engine/configx"
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/internal/random"
	"perseus/engine/models"
	"perseus/engine/pdg"
	"perseus/engine/telemetry/logging"
)

// rig is the shared module test fixture: one registry, one pool, one seeded
// random engine.
type rig struct {
	reg *arrays.Registry
	fac *models.Factory
	rng *random.Engine
}

func newRig(seed int64) *rig {
	return &rig{
		reg: arrays.NewRegistry(),
		fac: models.NewFactory(),
		rng: random.New(seed),
	}
}

// param converts plain Go values (including nested []any) into config params.
func param(v any) configx.Param {
	if list, ok := v.([]any); ok {
		ps := make([]configx.Param, len(list))
		for i, e := range list {
			ps[i] = param(e)
		}
		return configx.NewParam(ps)
	}
	return configx.NewParam(v)
}

// ctx builds a module context bound to the rig.
func (r *rig) ctx(name string, params map[string]any) *pipeline.Context {
	spec := &configx.ModuleSpec{Module: name, Name: name, Params: map[string]configx.Param{}}
	for k, v := range params {
		spec.Params[k] = param(v)
	}
	return &pipeline.Context{
		Name:    name,
		Spec:    spec,
		Arrays:  r.reg,
		Factory: r.fac,
		Random:  r.rng,
		PDG:     pdg.Default(),
		Cluster: cluster.NewEngine(),
		Log:     logging.New(nil),
		Event:   &pipeline.EventInfo{Number: 1, Weight: 1},
	}
}

// export registers an array under an arbitrary owner path, standing in for
// an upstream module.
func (r *rig) export(t *testing.T, path string) *arrays.Array {
	t.Helper()
	a, err := r.reg.Export("test", path)
	if err != nil {
		t.Fatalf("export %s: %v", path, err)
	}
	return a
}

// particle appends a minimal stable candidate to an array.
func (r *rig) particle(a *arrays.Array, pid, charge int, pt, eta, phi float64) *models.Candidate {
	c := r.fac.NewCandidate()
	c.PID = pid
	c.Status = 1
	c.Charge = charge
	c.Momentum = models.NewPtEtaPhiM(pt, eta, phi, 0)
	a.Append(c)
	return c
}
