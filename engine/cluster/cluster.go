// Package cluster provides sequential-recombination jet clustering behind a
// small capability interface. The in-tree engine implements the kt family
// (kt, Cambridge/Aachen, anti-kt) with optional ghost-based area estimation;
// any equivalent implementation may be substituted for it.
package cluster

import "perseus/engine/models"

// Algorithm identifies the clustering measure. The cone ids are accepted for
// configuration compatibility and mapped to anti-kt by the native engine.
type Algorithm int

const (
	JetClu Algorithm = iota + 1
	MidPoint
	SISCone
	Kt
	CambridgeAachen
	AntiKt
)

// AlgorithmByID maps the configured integer id, defaulting to anti-kt.
func AlgorithmByID(id int) Algorithm {
	if id >= int(JetClu) && id <= int(AntiKt) {
		return Algorithm(id)
	}
	return AntiKt
}

// power returns the kt-exponent p of the generalised-kt measure.
func (a Algorithm) power() float64 {
	switch a {
	case Kt:
		return 1
	case CambridgeAachen:
		return 0
	default: // anti-kt and the cone ids
		return -1
	}
}

// AreaDefinition selects the area estimation scheme. The native engine
// realises every non-none scheme with explicit ghosts.
type AreaDefinition int

const (
	AreaNone AreaDefinition = iota
	AreaActiveExplicitGhosts
	AreaOneGhostPassive
	AreaPassive
	AreaVoronoi
	AreaActive
)

// GhostSpec configures the ghost lattice used for area estimation.
type GhostSpec struct {
	EtaMax      float64 // ghosts cover |eta| < EtaMax
	Repeat      int     // ghost sets overlaid per event
	Area        float64 // area per ghost cell
	GridScatter float64 // positional scatter as a fraction of the cell size
	PtScatter   float64 // relative scatter of the ghost pt
	MeanPt      float64 // mean ghost pt
}

// defaults fills unset fields with the conventional values.
func (g GhostSpec) defaults() GhostSpec {
	if g.EtaMax <= 0 {
		g.EtaMax = 5
	}
	if g.Repeat <= 0 {
		g.Repeat = 1
	}
	if g.Area <= 0 {
		g.Area = 0.01
	}
	if g.GridScatter == 0 {
		g.GridScatter = 1
	}
	if g.PtScatter == 0 {
		g.PtScatter = 0.1
	}
	if g.MeanPt <= 0 {
		g.MeanPt = 1e-100
	}
	return g
}

// Definition is a complete clustering specification.
type Definition struct {
	Algo   Algorithm
	R      float64
	Area   AreaDefinition
	Ghosts GhostSpec
}

// PseudoJet is one clustering input: a four-momentum plus the index of the
// originating candidate in the input array (−1 for ghosts).
type PseudoJet struct {
	P         models.FourVec
	UserIndex int
}

// Jet is one clustering outcome with its real constituents and, when area
// estimation ran, the four-vector and scalar areas.
type Jet struct {
	P            models.FourVec
	Area         models.FourVec
	AreaScalar   float64
	Constituents []PseudoJet
}

// UniformSource supplies the uniform draws used to scatter ghosts. The
// process random engine satisfies it.
type UniformSource interface {
	Uniform() float64
}

// Clusterer is the capability interface consumed by the jet finder and the
// substructure helpers.
type Clusterer interface {
	Cluster(inputs []PseudoJet, def Definition, rnd UniformSource) (*Sequence, error)
	ExclusiveJets(inputs []PseudoJet, algo Algorithm, r float64, n int) []Jet
}

// Sequence holds the outcome of one clustering pass.
type Sequence struct {
	jets    []Jet
	hasArea bool
}

// InclusiveJets returns all jets above ptMin, ordered by descending pt.
func (s *Sequence) InclusiveJets(ptMin float64) []Jet {
	out := make([]Jet, 0, len(s.jets))
	for _, j := range s.jets {
		if j.P.Pt() >= ptMin {
			out = append(out, j)
		}
	}
	return out
}

// AllJets returns every jet of the pass, ordered by descending pt.
func (s *Sequence) AllJets() []Jet { return s.jets }

// HasArea reports whether area estimation ran for this pass.
func (s *Sequence) HasArea() bool { return s.hasArea }
