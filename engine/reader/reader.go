// Package reader defines the input-event interface between the external
// generator readers and the engine. A Reader hands the framework three
// pre-populated arrays (allParticles, stableParticles, partons), optionally
// matrix-element LHE particles, and one event header record.
package reader

import (
	"math"

	"perseus/engine/models"
	"perseus/engine/pdg"
)

// Event is one generator-level event materialised in the per-event pool.
type Event struct {
	Number          int64
	Weight          float64
	Header          any // *models.EventHeader, *models.LHEFEvent or *models.HepMCEvent
	AllParticles    []*models.Candidate
	StableParticles []*models.Candidate
	Partons         []*models.Candidate
	LHEParticles    []*models.Candidate
}

// Reader yields events until io.EOF. Candidates must be allocated from the
// supplied factory so they live in the current event pool.
type Reader interface {
	Read(fac *models.Factory) (*Event, error)
}

// PileUpSampler supplies minimum-bias particles for the pile-up merger, one
// interaction per call.
type PileUpSampler interface {
	Sample(fac *models.Factory, uniform func() float64) []*models.Candidate
}

// GenParticle is the plain-value particle record used to describe events
// programmatically (tests, particle guns, adapters for external formats).
type GenParticle struct {
	PID    int
	Status int
	M1, M2 int
	D1, D2 int
	Charge int
	Mass   float64

	Px, Py, Pz, E float64
	X, Y, Z, T    float64
}

// GenEvent is a plain-value event record.
type GenEvent struct {
	Number       int64
	Weight       float64
	Particles    []GenParticle
	LHEParticles []GenParticle
}

// Validate checks mother/daughter index consistency and kinematic sanity.
// Violations are reported as InputError; the engine skips the event.
func (ev *GenEvent) Validate() error {
	n := len(ev.Particles)
	checkIdx := func(i int) bool { return i == -1 || (i >= 0 && i < n) }
	for _, p := range ev.Particles {
		if !checkIdx(p.M1) || !checkIdx(p.M2) || !checkIdx(p.D1) || !checkIdx(p.D2) {
			return &models.InputError{Event: ev.Number, Reason: "mother/daughter index out of range"}
		}
		bad := math.IsNaN(p.Px) || math.IsNaN(p.Py) || math.IsNaN(p.Pz) || math.IsNaN(p.E) ||
			math.IsInf(p.Px, 0) || math.IsInf(p.Py, 0) || math.IsInf(p.Pz, 0) || math.IsInf(p.E, 0)
		if bad {
			return &models.InputError{Event: ev.Number, Reason: "non-finite kinematics"}
		}
	}
	return nil
}

// Materialise builds the candidate arrays for one event inside fac. The PDG
// table backfills charge and mass when the record leaves them zero.
func (ev *GenEvent) Materialise(fac *models.Factory, table *pdg.Table) *Event {
	out := &Event{Number: ev.Number, Weight: ev.Weight}
	out.AllParticles = make([]*models.Candidate, 0, len(ev.Particles))
	for _, gp := range ev.Particles {
		c := newCandidate(fac, table, gp)
		out.AllParticles = append(out.AllParticles, c)
		if gp.Status == 1 {
			out.StableParticles = append(out.StableParticles, c)
		}
		if gp.Status > 1 && isPartonPID(gp.PID) {
			out.Partons = append(out.Partons, c)
		}
	}
	for _, gp := range ev.LHEParticles {
		out.LHEParticles = append(out.LHEParticles, newCandidate(fac, table, gp))
	}
	out.Header = &models.EventHeader{Number: ev.Number}
	return out
}

func newCandidate(fac *models.Factory, table *pdg.Table, gp GenParticle) *models.Candidate {
	c := fac.NewCandidate()
	c.PID = gp.PID
	c.Status = gp.Status
	c.M1, c.M2 = gp.M1, gp.M2
	c.D1, c.D2 = gp.D1, gp.D2
	c.Charge = gp.Charge
	c.Mass = gp.Mass
	if table != nil {
		if p, ok := table.Lookup(gp.PID); ok {
			if gp.Charge == 0 {
				c.Charge = int(p.Charge) // truncates fractional quark charges
			}
			if gp.Mass == 0 {
				c.Mass = p.Mass
			}
		}
	}
	c.Momentum = models.FourVec{Px: gp.Px, Py: gp.Py, Pz: gp.Pz, E: gp.E}
	c.Position = models.FourVec{Px: gp.X, Py: gp.Y, Pz: gp.Z, E: gp.T}
	return c
}

func isPartonPID(pid int) bool {
	a := pid
	if a < 0 {
		a = -a
	}
	return (a >= 1 && a <= 6) || a == 21
}
