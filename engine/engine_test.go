package engine

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perseus/engine/configx"
	"perseus/engine/pdg"
	"perseus/engine/reader"
)

// fullSpec is the reference reconstruction pipeline used by the end-to-end
// tests: merger → propagator → calorimeter → energy flow → jets → b-tag →
// isolation → MET → writer.
func fullSpec(t *testing.T, dir string) *configx.RunSpec {
	t.Helper()
	yaml := fmt.Sprintf(`
seed: 17
pipeline:
  - module: PileUpMerger
    params:
      InputArray: Reader/stableParticles
  - module: ParticlePropagator
    params:
      InputArray: PileUpMerger/stableParticles
      Radius: 1.29
      HalfLength: 3.0
      Bz: 0.0
  - module: Calorimeter
    params:
      EtaPhiBins:
        - [[-2.5, -2.0, -1.5, -1.0, -0.5, 0.0, 0.5, 1.0, 1.5, 2.0, 2.5],
           [-3.142, -2.356, -1.571, -0.785, 0.0, 0.785, 1.571, 2.356, 3.142]]
      EnergyFractions:
        - [22, 1.0, 0.0]
        - [11, 1.0, 0.0]
        - [0, 0.0, 1.0]
      ECalResolutionFormula: "0"
      HCalResolutionFormula: "0"
  - module: Merger
    name: EFlowMerger
    params:
      InputArrays: [Calorimeter/eflowTracks, Calorimeter/eflowTowers]
  - module: JetFinder
    params:
      InputArray: EFlowMerger/candidates
      JetAlgorithm: 6
      ParameterR: 0.5
      JetPTMin: 20.0
  - module: BTagger
    params:
      JetInputArray: JetFinder/jets
      EfficiencyFormulas:
        - [0, "0.001"]
        - [5, "0.8"]
  - module: Isolation
    name: PhotonIsolation
    params:
      CandidateInputArray: Calorimeter/photons
      IsolationInputArray: EFlowMerger/candidates
  - module: MissingET
    params:
      InputArray: EFlowMerger/candidates
  - module: TreeWriter
    params:
      OutputDir: %q
      Branches:
        - [Jet, JetFinder/jets, Candidate]
        - [Photon, PhotonIsolation/candidates, Candidate]
        - [Tower, Calorimeter/towers, Candidate]
        - [MissingET, MissingET/momentum, MissingET]
        - [ScalarHT, MissingET/scalarHT, ScalarHT]
        - [Event, "", Event]
`, dir)
	spec, err := configx.Parse([]byte(yaml))
	require.NoError(t, err)
	return spec
}

func newTestEngine(t *testing.T, spec *configx.RunSpec) *Engine {
	t.Helper()
	cfg := Defaults()
	cfg.Spec = spec
	cfg.TracingEnabled = false
	eng, err := New(cfg)
	require.NoError(t, err)
	return eng
}

func TestSinglePhotonScenario(t *testing.T) {
	eng := newTestEngine(t, fullSpec(t, t.TempDir()))
	src := reader.NewGunReader(pdg.Default(), reader.GunConfig{Events: 1, PID: 22, Pt: 100 / math.Cosh(0.3), Eta: 0.3})

	sum, err := eng.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Processed)
	assert.Zero(t, sum.Failed)
	assert.Zero(t, sum.Skipped)
}

func TestBackToBackDijets(t *testing.T) {
	dir := t.TempDir()
	eng := newTestEngine(t, fullSpec(t, dir))
	src := reader.NewMemoryReader(pdg.Default(), []reader.GenEvent{{
		Number: 1,
		Weight: 1,
		Particles: []reader.GenParticle{
			genPion(200, 0.5, 0.0),
			genPion(200, -0.5, math.Pi),
		},
	}})
	sum, err := eng.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Processed)
}

func genPion(pt, eta, phi float64) reader.GenParticle {
	px := pt * math.Cos(phi)
	py := pt * math.Sin(phi)
	pz := pt * math.Sinh(eta)
	e := math.Sqrt(px*px + py*py + pz*pz)
	return reader.GenParticle{
		PID: 211, Status: 1, M1: -1, M2: -1, D1: -1, D2: -1,
		Charge: 1, Px: px, Py: py, Pz: pz, E: e,
	}
}

func TestMalformedEventIsSkippedAndRunContinues(t *testing.T) {
	eng := newTestEngine(t, fullSpec(t, t.TempDir()))
	bad := reader.GenEvent{Number: 1, Particles: []reader.GenParticle{{
		PID: 22, Status: 1, M1: 99, M2: -1, D1: -1, D2: -1, E: 10,
	}}}
	good := reader.GenEvent{Number: 2, Particles: []reader.GenParticle{genPion(50, 0.1, 0.2)}}
	src := reader.NewMemoryReader(pdg.Default(), []reader.GenEvent{bad, good})

	sum, err := eng.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Processed)
	assert.Equal(t, int64(1), sum.Skipped)
}

func TestCancelledContextStopsBeforeNextEvent(t *testing.T) {
	eng := newTestEngine(t, fullSpec(t, t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := reader.NewGunReader(pdg.Default(), reader.GunConfig{Events: 100, PID: 22, Pt: 50, Eta: 0.1})
	sum, err := eng.Run(ctx, src)
	require.NoError(t, err)
	assert.Zero(t, sum.Processed, "cooperative stop before the first event")
}

func TestMaxEventsLimitsTheRun(t *testing.T) {
	spec := fullSpec(t, t.TempDir())
	spec.MaxEvents = 3
	eng := newTestEngine(t, spec)
	src := reader.NewGunReader(pdg.Default(), reader.GunConfig{Events: 10, PID: 22, Pt: 50, Eta: 0.1})
	sum, err := eng.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Processed)
}

func TestNewRejectsEmptyPipeline(t *testing.T) {
	cfg := Defaults()
	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewNamesUnknownModule(t *testing.T) {
	cfg := Defaults()
	cfg.Spec = &configx.RunSpec{Seed: 1, Pipeline: []configx.ModuleSpec{{Module: "Nonexistent"}}}
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nonexistent")
}

func TestInitErrorNamesModuleAndKey(t *testing.T) {
	cfg := Defaults()
	cfg.Spec = &configx.RunSpec{Seed: 1, Pipeline: []configx.ModuleSpec{
		{Module: "PileUpMerger"},
		{Module: "ParticlePropagator"},
		{Module: "Calorimeter"}, // missing the required EtaPhiBins key
	}}
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Calorimeter")
	assert.Contains(t, err.Error(), "EtaPhiBins")
}

func TestImportOfUnknownArrayIsFatal(t *testing.T) {
	cfg := Defaults()
	cfg.Spec = &configx.RunSpec{Seed: 1, Pipeline: []configx.ModuleSpec{
		{Module: "MissingET"}, // default input EFlowMerger/candidates is absent
	}}
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EFlowMerger/candidates")
}

func TestSnapshotCarriesRunIdentity(t *testing.T) {
	eng := newTestEngine(t, fullSpec(t, t.TempDir()))
	snap := eng.Snapshot()
	assert.NotEmpty(t, snap.RunID)
	assert.False(t, snap.StartedAt.IsZero())
}
