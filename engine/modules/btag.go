package modules

import (
	"math"

	"perseus/engine/internal/arrays"
	"perseus/engine/internal/formula"
	"perseus/engine/internal/pipeline"
	"perseus/engine/models"
)

// BTagger assigns a progenitor flavour to every jet under seven definition
// variants, then draws one uniform number per jet and sets the configured
// bit of each BTag field against the per-flavour efficiency. Sharing the
// draw across variants preserves their correlation within a jet.
//
// Parameters:
//
//	JetInputArray        default "JetFinder/jets"
//	PartonInputArray     post-shower partons, default "Reader/partons"
//	LHEPartonInputArray  matrix-element partons, default "Reader/LHEParticles"
//	ParticleInputArray   daughter lookups, default "Reader/allParticles"
//	DeltaR               jet-parton cone, default 0.5
//	PartonPTMin          default 1.0
//	PartonEtaMax         default 2.5
//	BitNumber            target bit of the tag bitmask, default 0
//	EfficiencyFormulas   list of [flavour, "expr(pt, eta)"]; flavour 0 is the fallback
type BTagger struct {
	jets      *arrays.Array
	partons   *arrays.Array
	lhe       *arrays.Array
	particles *arrays.Array

	deltaR    float64
	ptMin     float64
	etaMax    float64
	bitNumber uint
	effs      map[int]*formula.Formula
}

func (m *BTagger) Init(ctx *pipeline.Context) error {
	var err error
	if m.jets, err = ctx.ImportArray(ctx.String("JetInputArray", "JetFinder/jets")); err != nil {
		return err
	}
	if m.partons, err = ctx.ImportArray(ctx.String("PartonInputArray", "Reader/partons")); err != nil {
		return err
	}
	if m.lhe, err = ctx.ImportArray(ctx.String("LHEPartonInputArray", "Reader/LHEParticles")); err != nil {
		return err
	}
	if m.particles, err = ctx.ImportArray(ctx.String("ParticleInputArray", "Reader/allParticles")); err != nil {
		return err
	}
	m.deltaR = ctx.Float("DeltaR", 0.5)
	m.ptMin = ctx.Float("PartonPTMin", 1.0)
	m.etaMax = ctx.Float("PartonEtaMax", 2.5)
	m.bitNumber = uint(ctx.Int("BitNumber", 0))
	m.effs = map[int]*formula.Formula{0: formula.MustCompile("0.0")}
	for i, entry := range ctx.List("EfficiencyFormulas") {
		pair, ok := entry.List()
		if !ok || len(pair) != 2 {
			return ctx.ConfigErr("EfficiencyFormulas", "entry %d is not [flavour, formula]", i)
		}
		flav, okF := pair[0].Int()
		src, okS := pair[1].String()
		if !okF || !okS {
			return ctx.ConfigErr("EfficiencyFormulas", "entry %d is not [flavour, formula]", i)
		}
		f, err := formula.Compile(src)
		if err != nil {
			return ctx.ConfigErr("EfficiencyFormulas", "flavour %d: %v", flav, err)
		}
		m.effs[flav] = f
	}
	return nil
}

func isQuarkOrGluon(pid int) bool {
	a := abs(pid)
	return (a >= 1 && a <= 5) || a == 21
}

// selectPartons applies the kinematic and species selection shared by both
// flavour walks.
func (m *BTagger) selectPartons(in *arrays.Array, wantStatus func(int) bool) []*models.Candidate {
	var out []*models.Candidate
	for _, c := range in.Items() {
		if !isQuarkOrGluon(c.PID) {
			continue
		}
		if !wantStatus(c.Status) {
			continue
		}
		if c.Momentum.Pt() <= m.ptMin || math.Abs(c.Momentum.Eta()) >= m.etaMax {
			continue
		}
		out = append(out, c)
	}
	return out
}

// matchesLHE reports whether the post-shower parton duplicates a
// matrix-element parton: four-vector match within ΔR < 0.001 with the same
// PID and charge.
func matchesLHE(p *models.Candidate, lhe []*models.Candidate) bool {
	for _, l := range lhe {
		if l.PID == p.PID && l.Charge == p.Charge && p.Momentum.DeltaR(l.Momentum) < 0.001 {
			return true
		}
	}
	return false
}

// hasPartonDaughter reports whether any daughter of p is itself a parton
// (the parton is non-terminal in the shower).
func (m *BTagger) hasPartonDaughter(p *models.Candidate) bool {
	if p.D1 < 0 {
		return false
	}
	last := p.D2
	if last < p.D1 {
		last = p.D1
	}
	for i := p.D1; i <= last && i < m.particles.Len(); i++ {
		if isQuarkOrGluon(m.particles.At(i).PID) {
			return true
		}
	}
	return false
}

func (m *BTagger) Process(ctx *pipeline.Context) error {
	// The two arrays are filtered independently; aliasing them conflates the
	// shower-level and matrix-element definitions.
	algoPartons := m.selectPartons(m.partons, func(s int) bool { return s != 1 })
	lhePartons := m.selectPartons(m.lhe, func(s int) bool { return s == 1 })

	for _, jet := range m.jets.Items() {
		m.classifyAlgo(jet, algoPartons, lhePartons)
		m.classifyPhysics(jet, lhePartons)
		m.applyTags(ctx, jet)
	}
	return nil
}

// classifyAlgo derives the shower-level variants: Nearest2, HighestPt,
// Heaviest, Algo and Default.
func (m *BTagger) classifyAlgo(jet *models.Candidate, partons, lhePartons []*models.Candidate) {
	var (
		nearest    int
		nearestDR  = math.Inf(1)
		highestPID int
		highestPt  float64
		heaviest   int
		maxPID     int
		sawGluon   bool
	)
	for _, p := range partons {
		if matchesLHE(p, lhePartons) {
			continue // already counted at matrix-element level
		}
		if m.hasPartonDaughter(p) {
			continue // non-terminal
		}
		dr := jet.Momentum.DeltaR(p.Momentum)
		if dr > m.deltaR {
			continue
		}
		a := abs(p.PID)
		if dr < nearestDR {
			nearestDR = dr
			nearest = a
		}
		if pt := p.Momentum.Pt(); pt > highestPt {
			highestPt = pt
			highestPID = a
		}
		if a == 5 {
			heaviest = 5
		} else if a == 4 && heaviest != 5 {
			heaviest = 4
		}
		if a == 21 {
			sawGluon = true
		} else if a > maxPID {
			maxPID = a
		}
	}
	jet.Flavor.Nearest2 = int32(nearest)
	jet.Flavor.HighestPt = int32(highestPID)
	jet.Flavor.Heaviest = int32(heaviest)
	if heaviest != 0 {
		jet.Flavor.Algo = int32(heaviest)
	} else {
		jet.Flavor.Algo = int32(highestPID)
	}
	if maxPID == 0 && sawGluon {
		maxPID = 21
	}
	jet.Flavor.Default = int32(maxPID)
}

// classifyPhysics derives the matrix-element variants: Nearest3 and Physics
// with the contamination veto.
func (m *BTagger) classifyPhysics(jet *models.Candidate, lhePartons []*models.Candidate) {
	var (
		nearest   int
		nearestDR = math.Inf(1)
		inCone    []*models.Candidate
	)
	for _, p := range lhePartons {
		dr := jet.Momentum.DeltaR(p.Momentum)
		if dr > m.deltaR {
			continue
		}
		inCone = append(inCone, p)
		if dr < nearestDR {
			nearestDR = dr
			nearest = abs(p.PID)
		}
	}
	jet.Flavor.Nearest3 = int32(nearest)
	jet.Flavor.Physics = 0
	if len(inCone) != 1 {
		return
	}
	initial := inCone[0]
	flavour := abs(initial.PID)
	for _, cont := range m.contaminants(jet) {
		if abs(cont.PID) == flavour {
			continue // same flavour never resets
		}
		if m.motherIs(cont, initial) {
			continue
		}
		flavour = 0
		break
	}
	jet.Flavor.Physics = int32(flavour)
}

// contaminants are decaying heavy post-shower partons within 0.7 of the jet.
func (m *BTagger) contaminants(jet *models.Candidate) []*models.Candidate {
	var out []*models.Candidate
	for _, c := range m.partons.Items() {
		a := abs(c.PID)
		if a < 4 || a == 21 {
			continue
		}
		if c.D1 < 0 {
			continue // not decaying
		}
		if jet.Momentum.DeltaR(c.Momentum) < 0.7 {
			out = append(out, c)
		}
	}
	return out
}

// motherIs matches the contaminant's mother against the initial
// matrix-element parton by species and direction: the two arrays have no
// shared indices, so identity is established kinematically.
func (m *BTagger) motherIs(cont, initial *models.Candidate) bool {
	if cont.M1 < 0 || cont.M1 >= m.particles.Len() {
		return false
	}
	mother := m.particles.At(cont.M1)
	return mother.PID == initial.PID && mother.Momentum.DeltaR(initial.Momentum) < 0.001
}

// applyTags draws the shared uniform number and sets bit BitNumber of each
// variant's mask iff the draw passes that flavour's efficiency. No other bit
// is touched.
func (m *BTagger) applyTags(ctx *pipeline.Context, jet *models.Candidate) {
	pt := jet.Momentum.Pt()
	eta := jet.Momentum.Eta()
	r := ctx.Random.Uniform()
	set := func(mask *uint32, flavour int32) {
		f, ok := m.effs[int(flavour)]
		if !ok {
			f = m.effs[0]
		}
		if r <= f.EvalOrZero(pt, eta, jet.Momentum.E) {
			*mask |= 1 << m.bitNumber
		}
	}
	set(&jet.BTag.Algo, jet.Flavor.Algo)
	set(&jet.BTag.Default, jet.Flavor.Default)
	set(&jet.BTag.Physics, jet.Flavor.Physics)
	set(&jet.BTag.Nearest2, jet.Flavor.Nearest2)
	set(&jet.BTag.Nearest3, jet.Flavor.Nearest3)
	set(&jet.BTag.Heaviest, jet.Flavor.Heaviest)
	set(&jet.BTag.HighestPt, jet.Flavor.HighestPt)
}

func (m *BTagger) Finish(ctx *pipeline.Context) error { return nil }
