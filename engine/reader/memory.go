package reader

import (
	"io"
	"math"

	"perseus/engine/models"
	"perseus/engine/pdg"
)

// MemoryReader serves a fixed slice of GenEvents. It is the reference Reader
// used by tests, benchmarks and the particle-gun smoke runs; file-format
// readers (LHEF, HepMC) adapt their records into GenEvents the same way.
type MemoryReader struct {
	events []GenEvent
	next   int
	table  *pdg.Table
}

func NewMemoryReader(table *pdg.Table, events []GenEvent) *MemoryReader {
	return &MemoryReader{events: events, table: table}
}

func (r *MemoryReader) Read(fac *models.Factory) (*Event, error) {
	if r.next >= len(r.events) {
		return nil, io.EOF
	}
	ev := &r.events[r.next]
	r.next++
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev.Materialise(fac, r.table), nil
}

// GunConfig describes a single-particle gun: one particle per event,
// Events events in total.
type GunConfig struct {
	Events int
	PID    int
	Pt     float64
	Eta    float64
	Phi    float64
}

// NewGunReader builds a MemoryReader emitting identical single-particle
// events; handy for smoke runs from the CLI.
func NewGunReader(table *pdg.Table, cfg GunConfig) *MemoryReader {
	if cfg.Events <= 0 {
		cfg.Events = 1
	}
	mass := 0.0
	if table != nil {
		mass = table.Mass(cfg.PID)
	}
	mom := models.NewPtEtaPhiM(cfg.Pt, cfg.Eta, cfg.Phi, mass)
	events := make([]GenEvent, cfg.Events)
	for i := range events {
		events[i] = GenEvent{
			Number: int64(i + 1),
			Weight: 1,
			Particles: []GenParticle{{
				PID: cfg.PID, Status: 1, M1: -1, M2: -1, D1: -1, D2: -1,
				Mass: mass, Px: mom.Px, Py: mom.Py, Pz: mom.Pz, E: mom.E,
			}},
		}
	}
	return NewMemoryReader(table, events)
}

// SoftSampler is a deterministic toy minimum-bias source for the pile-up
// merger: charged pions with an exponentially falling pt spectrum, flat in
// eta and phi.
type SoftSampler struct {
	MeanPt       float64 // slope of the pt spectrum, default 0.6 GeV
	EtaMax       float64 // default 4
	Multiplicity int     // particles per interaction, default 10
}

func (s SoftSampler) Sample(fac *models.Factory, uniform func() float64) []*models.Candidate {
	meanPt := s.MeanPt
	if meanPt <= 0 {
		meanPt = 0.6
	}
	etaMax := s.EtaMax
	if etaMax <= 0 {
		etaMax = 4
	}
	mult := s.Multiplicity
	if mult <= 0 {
		mult = 10
	}
	out := make([]*models.Candidate, 0, mult)
	for i := 0; i < mult; i++ {
		pt := -meanPt * math.Log(1-uniform())
		eta := etaMax * (2*uniform() - 1)
		phi := math.Pi * (2*uniform() - 1)
		pid := 211
		charge := 1
		if uniform() < 0.5 {
			pid, charge = -211, -1
		}
		c := fac.NewCandidate()
		c.PID = pid
		c.Status = 1
		c.Charge = charge
		c.Mass = 0.13957
		c.Momentum = models.NewPtEtaPhiM(pt, eta, phi, c.Mass)
		out = append(out, c)
	}
	return out
}
