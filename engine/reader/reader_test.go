package reader

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perseus/engine/models"
	"perseus/engine/pdg"
)

func TestValidateRejectsBadIndices(t *testing.T) {
	ev := GenEvent{Number: 3, Particles: []GenParticle{
		{PID: 22, Status: 1, M1: 5, M2: -1, D1: -1, D2: -1, E: 10},
	}}
	err := ev.Validate()
	require.Error(t, err)
	var ie *models.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, int64(3), ie.Event)
}

func TestValidateRejectsNaN(t *testing.T) {
	ev := GenEvent{Particles: []GenParticle{
		{PID: 22, Status: 1, M1: -1, M2: -1, D1: -1, D2: -1, E: math.NaN()},
	}}
	var ie *models.InputError
	require.ErrorAs(t, ev.Validate(), &ie)
}

func TestMaterialiseSplitsArrays(t *testing.T) {
	fac := models.NewFactory()
	ev := GenEvent{
		Number: 1,
		Particles: []GenParticle{
			{PID: 2, Status: 23, M1: -1, M2: -1, D1: 2, D2: -1, E: 100, Px: 50},
			{PID: 21, Status: 62, M1: -1, M2: -1, D1: -1, D2: -1, E: 30, Px: 20},
			{PID: 211, Status: 1, M1: 0, M2: -1, D1: -1, D2: -1, E: 5, Px: 3},
		},
		LHEParticles: []GenParticle{
			{PID: 2, Status: 1, M1: -1, M2: -1, D1: -1, D2: -1, E: 100, Px: 50},
		},
	}
	out := ev.Materialise(fac, pdg.Default())
	assert.Len(t, out.AllParticles, 3)
	assert.Len(t, out.StableParticles, 1)
	assert.Len(t, out.Partons, 2, "non-stable quarks and gluons")
	assert.Len(t, out.LHEParticles, 1)
	assert.Equal(t, 4, fac.Size(), "all candidates live in the pool")
}

func TestMaterialiseBackfillsFromPDG(t *testing.T) {
	fac := models.NewFactory()
	ev := GenEvent{Particles: []GenParticle{
		{PID: -211, Status: 1, M1: -1, M2: -1, D1: -1, D2: -1, E: 5},
	}}
	out := ev.Materialise(fac, pdg.Default())
	c := out.AllParticles[0]
	assert.Equal(t, -1, c.Charge)
	assert.InDelta(t, 0.13957, c.Mass, 1e-5)
}

func TestMemoryReaderDrainsAndEOFs(t *testing.T) {
	fac := models.NewFactory()
	r := NewMemoryReader(pdg.Default(), []GenEvent{
		{Number: 1, Particles: []GenParticle{{PID: 22, Status: 1, M1: -1, M2: -1, D1: -1, D2: -1, E: 10}}},
		{Number: 2, Particles: []GenParticle{{PID: 22, Status: 1, M1: -1, M2: -1, D1: -1, D2: -1, E: 20}}},
	})
	ev, err := r.Read(fac)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.Number)
	_, err = r.Read(fac)
	require.NoError(t, err)
	_, err = r.Read(fac)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGunReaderProducesIdenticalEvents(t *testing.T) {
	fac := models.NewFactory()
	r := NewGunReader(pdg.Default(), GunConfig{Events: 3, PID: 22, Pt: 100, Eta: 0.3})
	ev, err := r.Read(fac)
	require.NoError(t, err)
	require.Len(t, ev.StableParticles, 1)
	p := ev.StableParticles[0]
	assert.InDelta(t, 100, p.Momentum.Pt(), 1e-9)
	assert.InDelta(t, 0.3, p.Momentum.Eta(), 1e-9)

	ev2, err := r.Read(fac)
	require.NoError(t, err)
	require.Len(t, ev2.StableParticles, 1)
	assert.Equal(t, p.Momentum, ev2.StableParticles[0].Momentum)
}

func TestSoftSamplerIsChargedPions(t *testing.T) {
	fac := models.NewFactory()
	u := uniformSeq(0.3)
	out := SoftSampler{Multiplicity: 5}.Sample(fac, u)
	require.Len(t, out, 5)
	for _, c := range out {
		assert.NotZero(t, c.Charge)
		assert.Equal(t, 211, abs(c.PID))
		assert.Greater(t, c.Momentum.Pt(), 0.0)
	}
}

func uniformSeq(v float64) func() float64 {
	return func() float64 { return v }
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
