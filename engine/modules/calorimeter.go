package modules

import (
	"math"
	"sort"

	"perseus/engine/internal/arrays"
	"perseus/engine/internal/formula"
	"perseus/engine/internal/pipeline"
	"perseus/engine/models"
)

// Calorimeter bins particles and tracks into a piecewise-irregular η-φ
// grid, smears the per-tower electromagnetic and hadronic sums with a
// log-normal resolution model, and emits towers, photon candidates and the
// energy-flow arrays.
//
// Parameters:
//
//	ParticleInputArray      default "ParticlePropagator/stableParticles"
//	TrackInputArray         default "ParticlePropagator/tracks"
//	EtaPhiBins              list of [ [η edges...], [φ edges...] ] pairs (required)
//	EnergyFractions         list of [pid, fECal, fHCal]; pid 0 is the fallback
//	ECalResolutionFormula   σ_em(eta, e), default "0"
//	HCalResolutionFormula   σ_had(eta, e), default "0"
//	TimingEMin              minimum ecal deposit entering the time list, default 1.0
type Calorimeter struct {
	particles *arrays.Array
	tracks    *arrays.Array

	towers      *arrays.Array
	photons     *arrays.Array
	eflowTracks *arrays.Array
	eflowTowers *arrays.Array

	etaEdges []float64   // sorted distinct η edges
	phiEdges [][]float64 // per η bin, sorted φ edges

	fractions map[int][2]float64 // pid → (fECal, fHCal); key 0 is the fallback

	ecalRes *formula.Formula
	hcalRes *formula.Formula

	timingEMin float64
}

// Hit flag bits. Sorting the packed hits ascending groups a tower together
// with its tracks first, hadronic particles next, EM particles last.
const (
	hitTrack    = 1 << 0
	hitParticle = 1 << 1
	hitEM       = 1 << 2
)

func packHit(etaBin, phiBin, flags, index int) uint64 {
	return uint64(etaBin)<<48 | uint64(phiBin)<<32 | uint64(flags)<<24 | uint64(index&0xFFFFFF)
}

func unpackHit(h uint64) (etaBin, phiBin, flags, index int) {
	return int(h >> 48), int(h >> 32 & 0xFFFF), int(h >> 24 & 0xFF), int(h & 0xFFFFFF)
}

func (m *Calorimeter) Init(ctx *pipeline.Context) error {
	var err error
	if m.particles, err = ctx.ImportArray(ctx.String("ParticleInputArray", "ParticlePropagator/stableParticles")); err != nil {
		return err
	}
	if m.tracks, err = ctx.ImportArray(ctx.String("TrackInputArray", "ParticlePropagator/tracks")); err != nil {
		return err
	}
	for _, exp := range []struct {
		name string
		dst  **arrays.Array
	}{
		{"towers", &m.towers},
		{"photons", &m.photons},
		{"eflowTracks", &m.eflowTracks},
		{"eflowTowers", &m.eflowTowers},
	} {
		a, err := ctx.ExportArray(exp.name)
		if err != nil {
			return err
		}
		*exp.dst = a
	}

	if err := m.buildGrid(ctx); err != nil {
		return err
	}
	if err := m.buildFractions(ctx); err != nil {
		return err
	}
	if m.ecalRes, err = formula.Compile(ctx.String("ECalResolutionFormula", "0")); err != nil {
		return ctx.ConfigErr("ECalResolutionFormula", "%v", err)
	}
	if m.hcalRes, err = formula.Compile(ctx.String("HCalResolutionFormula", "0")); err != nil {
		return ctx.ConfigErr("HCalResolutionFormula", "%v", err)
	}
	m.timingEMin = ctx.Float("TimingEMin", 1.0)
	return nil
}

// buildGrid merges the configured (η-set, φ-set) pairs into one sorted vector
// of distinct η edges; each η bin keeps the φ edges of the pair that
// contributed its lower edge.
func (m *Calorimeter) buildGrid(ctx *pipeline.Context) error {
	pairs := ctx.List("EtaPhiBins")
	if len(pairs) == 0 {
		return ctx.ConfigErr("EtaPhiBins", "missing required key")
	}
	phiByEta := make(map[float64][]float64)
	for i, pair := range pairs {
		inner, ok := pair.List()
		if !ok || len(inner) != 2 {
			return ctx.ConfigErr("EtaPhiBins", "entry %d is not an [η edges, φ edges] pair", i)
		}
		etas, ok := inner[0].Floats()
		if !ok || len(etas) < 2 {
			return ctx.ConfigErr("EtaPhiBins", "entry %d needs at least two η edges", i)
		}
		phis, ok := inner[1].Floats()
		if !ok || len(phis) < 2 {
			return ctx.ConfigErr("EtaPhiBins", "entry %d needs at least two φ edges", i)
		}
		sorted := append([]float64(nil), phis...)
		sort.Float64s(sorted)
		for _, eta := range etas {
			phiByEta[eta] = sorted
		}
	}
	m.etaEdges = m.etaEdges[:0]
	for eta := range phiByEta {
		m.etaEdges = append(m.etaEdges, eta)
	}
	sort.Float64s(m.etaEdges)
	m.phiEdges = make([][]float64, len(m.etaEdges)-1)
	for i := 0; i < len(m.etaEdges)-1; i++ {
		m.phiEdges[i] = phiByEta[m.etaEdges[i]]
	}
	return nil
}

func (m *Calorimeter) buildFractions(ctx *pipeline.Context) error {
	m.fractions = map[int][2]float64{0: {0, 1}}
	for i, entry := range ctx.List("EnergyFractions") {
		vals, ok := entry.Floats()
		if !ok || len(vals) != 3 {
			return ctx.ConfigErr("EnergyFractions", "entry %d is not [pid, fECal, fHCal]", i)
		}
		m.fractions[int(vals[0])] = [2]float64{vals[1], vals[2]}
	}
	return nil
}

func (m *Calorimeter) fraction(pid int) (fecal, fhcal float64) {
	if pid < 0 {
		pid = -pid
	}
	f, ok := m.fractions[pid]
	if !ok {
		f = m.fractions[0]
	}
	return f[0], f[1]
}

// findBin locates x with lower-inclusive, upper-exclusive semantics and
// returns −1 outside the covered range.
func findBin(edges []float64, x float64) int {
	if x < edges[0] || x >= edges[len(edges)-1] {
		return -1
	}
	// SearchFloat64s returns the first index with edges[i] >= x.
	i := sort.SearchFloat64s(edges, x)
	if i < len(edges) && edges[i] == x {
		return i
	}
	return i - 1
}

// direction returns the η-φ the object is binned by: the propagated position
// where available, the momentum otherwise.
func direction(c *models.Candidate) (eta, phi float64) {
	pos := c.Position
	if pos.X() != 0 || pos.Y() != 0 || pos.Z() != 0 {
		v := models.FourVec{Px: pos.X(), Py: pos.Y(), Pz: pos.Z()}
		if v.Pt() > 0 {
			return v.Eta(), v.Phi()
		}
	}
	return c.Momentum.Eta(), c.Momentum.Phi()
}

type towerAccum struct {
	etaBin, phiBin int
	ecal, hcal     float64 // particle sums
	trackEcal      float64
	trackHcal      float64
	times          []models.TimeHit
	tracks         []*models.Candidate
	particles      []*models.Candidate
	hasEM          bool
	hasTrack       bool
}

func (m *Calorimeter) Process(ctx *pipeline.Context) error {
	hits := make([]uint64, 0, m.particles.Len()+m.tracks.Len())
	bin := func(c *models.Candidate) (int, int, bool) {
		eta, phi := direction(c)
		ie := findBin(m.etaEdges, eta)
		if ie < 0 {
			return 0, 0, false
		}
		ip := findBin(m.phiEdges[ie], phi)
		if ip < 0 {
			return 0, 0, false
		}
		return ie, ip, true
	}
	for i, c := range m.tracks.Items() {
		if ie, ip, ok := bin(c); ok {
			hits = append(hits, packHit(ie, ip, hitTrack, i))
		}
	}
	for i, c := range m.particles.Items() {
		if ie, ip, ok := bin(c); ok {
			flags := hitParticle
			if a := abs(c.PID); a == 11 || a == 22 {
				flags |= hitEM
			}
			hits = append(hits, packHit(ie, ip, flags, i))
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i] < hits[j] })

	var acc *towerAccum
	for _, h := range hits {
		ie, ip, flags, idx := unpackHit(h)
		if acc == nil || acc.etaBin != ie || acc.phiBin != ip {
			m.finalizeTower(ctx, acc)
			acc = &towerAccum{etaBin: ie, phiBin: ip}
		}
		if flags&hitTrack != 0 {
			track := m.tracks.At(idx)
			fecal, fhcal := m.fraction(track.PID)
			e := track.Momentum.E
			acc.trackEcal += e * fecal
			acc.trackHcal += e * fhcal
			acc.tracks = append(acc.tracks, track)
			acc.hasTrack = true
		} else {
			p := m.particles.At(idx)
			fecal, fhcal := m.fraction(p.PID)
			e := p.Momentum.E
			ecal := e * fecal
			acc.ecal += ecal
			acc.hcal += e * fhcal
			if ecal > m.timingEMin {
				acc.times = append(acc.times, models.TimeHit{E: ecal, T: p.Position.T()})
			}
			if flags&hitEM != 0 {
				acc.hasEM = true
			}
			acc.particles = append(acc.particles, p)
		}
	}
	m.finalizeTower(ctx, acc)
	return nil
}

func (m *Calorimeter) finalizeTower(ctx *pipeline.Context, acc *towerAccum) {
	if acc == nil {
		return
	}
	etaLow, etaHigh := m.etaEdges[acc.etaBin], m.etaEdges[acc.etaBin+1]
	phiE := m.phiEdges[acc.etaBin]
	phiLow, phiHigh := phiE[acc.phiBin], phiE[acc.phiBin+1]
	eta := 0.5 * (etaLow + etaHigh)
	phi := 0.5 * (phiLow + phiHigh)

	ecal := ctx.Random.LogNormal(acc.ecal, m.ecalRes.EvalOrZero(0, eta, acc.ecal))
	hcal := ctx.Random.LogNormal(acc.hcal, m.hcalRes.EvalOrZero(0, eta, acc.hcal))
	energy := ecal + hcal

	tower := ctx.Factory.NewCandidate()
	tower.Eem = ecal
	tower.Ehad = hcal
	tower.Momentum = models.NewPtEtaPhiE(energy/math.Cosh(eta), eta, phi, energy)
	tower.Edges = [4]float64{etaLow, etaHigh, phiLow, phiHigh}
	tower.NTimes = len(acc.times)
	tower.Position.E = towerTime(acc.times)
	if len(acc.times) > 0 {
		tower.TimeEnergy = acc.times
	}
	for _, p := range acc.particles {
		tower.AddCandidate(p)
	}
	m.towers.Append(tower)

	if acc.hasEM && !acc.hasTrack {
		tower.IsEMCand = true
		m.photons.Append(tower)
	}
	for _, track := range acc.tracks {
		m.eflowTracks.Append(track)
	}

	ecalResid := math.Max(0, ecal-acc.trackEcal)
	hcalResid := math.Max(0, hcal-acc.trackHcal)
	if resid := ecalResid + hcalResid; resid > 0 {
		ef := tower.Clone()
		ef.Eem = ecalResid
		ef.Ehad = hcalResid
		ef.Momentum = models.NewPtEtaPhiE(resid/math.Cosh(eta), eta, phi, resid)
		// Share the tower composition so Overlaps-based cross-cleaning
		// (isolation, lepton/jet) recognises the residual as the same object.
		for _, p := range acc.particles {
			ef.AddCandidate(p)
		}
		m.eflowTowers.Append(ef)
	}
}

// towerTime is the energy-sqrt-weighted mean arrival time, or the sentinel
// when no deposit passed the timing gate.
func towerTime(times []models.TimeHit) float64 {
	if len(times) == 0 {
		return 999999
	}
	var num, den float64
	for _, th := range times {
		w := math.Sqrt(th.E)
		num += w * th.T
		den += w
	}
	if den == 0 {
		return 999999
	}
	return num / den
}

func (m *Calorimeter) Finish(ctx *pipeline.Context) error { return nil }
