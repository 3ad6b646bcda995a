package cluster

import (
	"math"
	"sort"

	"perseus/engine/models"
)

// Engine is the native N² sequential-recombination implementation of
// Clusterer. E-scheme recombination throughout.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// protojet is one active cluster during recombination.
type protojet struct {
	p       models.FourVec
	pt, eta float64
	phi     float64
	area    models.FourVec
	scalar  float64
	real    []PseudoJet // original non-ghost inputs
	nGhost  int
}

func newProtojet(pj PseudoJet, ghostArea float64) protojet {
	pr := protojet{p: pj.P}
	pr.pt = pj.P.Pt()
	pr.eta = pj.P.Eta()
	pr.phi = pj.P.Phi()
	if pj.UserIndex < 0 {
		pr.nGhost = 1
		pr.scalar = ghostArea
		pt := pr.pt
		if pt > 0 {
			// unit-direction area vector scaled to the cell area
			pr.area = pj.P.Scale(ghostArea / pt)
		}
	} else {
		pr.real = []PseudoJet{pj}
	}
	return pr
}

func (a *protojet) merge(b *protojet) {
	a.p = a.p.Add(b.p)
	a.pt = a.p.Pt()
	a.eta = a.p.Eta()
	a.phi = a.p.Phi()
	a.area = a.area.Add(b.area)
	a.scalar += b.scalar
	a.real = append(a.real, b.real...)
	a.nGhost += b.nGhost
}

func plainDist(a, b *protojet) float64 {
	deta := a.eta - b.eta
	dphi := models.DeltaPhi(a.phi, b.phi)
	return deta*deta + dphi*dphi
}

// Cluster runs the configured pass. The rnd source is only consulted when an
// area definition requires ghosts; it may be nil otherwise.
func (e *Engine) Cluster(inputs []PseudoJet, def Definition, rnd UniformSource) (*Sequence, error) {
	if def.R <= 0 {
		def.R = 0.5
	}
	ghostArea := 0.0
	work := make([]PseudoJet, len(inputs))
	copy(work, inputs)
	if def.Area != AreaNone {
		ghosts, cell := makeGhosts(def.Ghosts, rnd)
		ghostArea = cell
		work = append(work, ghosts...)
	}

	jets := e.run(work, def.Algo.power(), def.R, ghostArea, -1)

	// Ghost-only clusters are scaffolding, not jets.
	out := jets[:0]
	for _, j := range jets {
		if len(j.real) > 0 {
			out = append(out, j)
		}
	}
	seq := &Sequence{hasArea: def.Area != AreaNone}
	for _, pj := range out {
		seq.jets = append(seq.jets, finishJet(pj, def.Ghosts))
	}
	sort.SliceStable(seq.jets, func(i, k int) bool {
		return seq.jets[i].P.Pt() > seq.jets[k].P.Pt()
	})
	return seq, nil
}

// ExclusiveJets reclusters the given inputs with the generalised-kt measure
// until exactly n clusters remain, never promoting to a final jet via the
// beam distance. Used for subjet axes.
func (e *Engine) ExclusiveJets(inputs []PseudoJet, algo Algorithm, r float64, n int) []Jet {
	if n <= 0 || len(inputs) == 0 {
		return nil
	}
	if n >= len(inputs) {
		out := make([]Jet, 0, len(inputs))
		for _, pj := range inputs {
			out = append(out, Jet{P: pj.P, Constituents: []PseudoJet{pj}})
		}
		return out
	}
	jets := e.run(inputs, algo.power(), r, 0, n)
	out := make([]Jet, 0, len(jets))
	for _, pj := range jets {
		out = append(out, finishJet(pj, GhostSpec{}))
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].P.Pt() > out[k].P.Pt() })
	return out
}

// run performs the recombination loop with per-cluster nearest-neighbour
// bookkeeping (init N², O(N) updates per merge). stopAt < 0 runs the
// inclusive algorithm (beam promotion via diB); stopAt >= 0 merges until
// that many clusters remain.
func (e *Engine) run(inputs []PseudoJet, power, r, ghostArea float64, stopAt int) []protojet {
	n := len(inputs)
	active := make([]*protojet, 0, n)
	for _, pj := range inputs {
		pr := newProtojet(pj, ghostArea)
		active = append(active, &pr)
	}
	var final []protojet
	r2 := r * r

	ktPow := func(pt float64) float64 {
		if power == 0 {
			return 1
		}
		return math.Pow(pt*pt, power)
	}
	dij := func(a, b *protojet) float64 {
		return math.Min(ktPow(a.pt), ktPow(b.pt)) * plainDist(a, b) / r2
	}

	// nn[i] is the index minimising dij(i, ·); nnDist[i] the distance itself.
	nn := make([]int, n)
	nnDist := make([]float64, n)
	scan := func(i int) {
		nn[i] = -1
		nnDist[i] = math.Inf(1)
		a := active[i]
		for j, b := range active {
			if j == i || b == nil {
				continue
			}
			if d := dij(a, b); d < nnDist[i] {
				nnDist[i] = d
				nn[i] = j
			}
		}
	}
	for i := range active {
		scan(i)
	}

	remaining := n
	for remaining > 0 {
		if stopAt >= 0 && remaining <= stopAt {
			break
		}
		minD := math.Inf(1)
		bi, bj := -1, -1
		for i, a := range active {
			if a == nil {
				continue
			}
			if stopAt < 0 {
				if diB := ktPow(a.pt); diB < minD {
					minD = diB
					bi, bj = i, -1
				}
			}
			if nn[i] >= 0 && nnDist[i] < minD {
				minD = nnDist[i]
				bi, bj = i, nn[i]
			}
		}
		if bi < 0 {
			break
		}
		if bj < 0 {
			final = append(final, *active[bi])
			active[bi] = nil
			remaining--
		} else {
			active[bi].merge(active[bj])
			active[bj] = nil
			remaining--
			scan(bi)
		}
		// Anyone whose neighbour was consumed rescans; the merged cluster may
		// also have become someone's new neighbour.
		for k, a := range active {
			if a == nil || k == bi {
				continue
			}
			if nn[k] == bi || nn[k] == bj {
				scan(k)
			} else if bj >= 0 {
				if d := dij(a, active[bi]); d < nnDist[k] {
					nnDist[k] = d
					nn[k] = bi
				}
			}
		}
	}
	for _, a := range active {
		if a != nil {
			final = append(final, *a)
		}
	}
	return final
}

func finishJet(pj protojet, ghosts GhostSpec) Jet {
	j := Jet{P: pj.p, Constituents: pj.real, AreaScalar: pj.scalar}
	j.Area = pj.area
	if rep := ghosts.Repeat; rep > 1 {
		j.Area = pj.area.Scale(1 / float64(rep))
		j.AreaScalar = pj.scalar / float64(rep)
	}
	return j
}

// makeGhosts lays a lattice of infinitesimal particles over |eta| < EtaMax,
// returning the ghosts and the effective area per ghost cell.
func makeGhosts(spec GhostSpec, rnd UniformSource) ([]PseudoJet, float64) {
	spec = spec.defaults()
	ds := math.Sqrt(spec.Area)
	nEta := int(math.Ceil(2 * spec.EtaMax / ds))
	nPhi := int(math.Ceil(2 * math.Pi / ds))
	if nEta < 1 {
		nEta = 1
	}
	if nPhi < 1 {
		nPhi = 1
	}
	dEta := 2 * spec.EtaMax / float64(nEta)
	dPhi := 2 * math.Pi / float64(nPhi)
	cell := dEta * dPhi

	uniform := func() float64 {
		if rnd == nil {
			return 0.5
		}
		return rnd.Uniform()
	}

	ghosts := make([]PseudoJet, 0, nEta*nPhi*spec.Repeat)
	for rep := 0; rep < spec.Repeat; rep++ {
		for ie := 0; ie < nEta; ie++ {
			for ip := 0; ip < nPhi; ip++ {
				eta := -spec.EtaMax + (float64(ie)+0.5)*dEta + spec.GridScatter*(uniform()-0.5)*dEta
				phi := -math.Pi + (float64(ip)+0.5)*dPhi + spec.GridScatter*(uniform()-0.5)*dPhi
				pt := spec.MeanPt * (1 + spec.PtScatter*(uniform()-0.5))
				ghosts = append(ghosts, PseudoJet{
					P:         models.NewPtEtaPhiE(pt, eta, phi, pt*math.Cosh(eta)),
					UserIndex: -1,
				})
			}
		}
	}
	return ghosts, cell
}
