package modules

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"perseus/engine/cluster"
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/models"
)

// JetFinder clusters its input candidates with the configured sequential
// recombination algorithm, estimates the median background density per η
// range, and derives substructure observables for high-pt jets.
//
// Parameters:
//
//	InputArray          default "EFlowMerger/candidates"
//	JetAlgorithm        1 JetClu, 2 MidPoint, 3 SISCone, 4 kt, 5 C/A, 6 anti-kt (default 6)
//	ParameterR          clustering radius, default 0.5
//	JetPTMin            inclusive jet threshold in GeV, default 20
//	KeepPileUp          include IsPU candidates, default true
//	AreaDefinition      0 none … 5 active, default 0
//	GhostEtaMax, GhostRepeat, GhostArea, GhostGridScatter, GhostPtScatter, GhostMeanPt
//	RhoEtaRanges        list of [η1, η2] pairs; requires an area definition
//	SubstructurePTMin   trimming / N-subjettiness gate in GeV, default 200
type JetFinder struct {
	in   *arrays.Array
	jets *arrays.Array
	rho  *arrays.Array

	def       cluster.Definition
	ptMin     float64
	keepPU    bool
	rhoRanges [][2]float64
	substrPt  float64
	clusterer cluster.Clusterer
}

func (m *JetFinder) Init(ctx *pipeline.Context) error {
	var err error
	if m.in, err = ctx.ImportArray(ctx.String("InputArray", "EFlowMerger/candidates")); err != nil {
		return err
	}
	if m.jets, err = ctx.ExportArray("jets"); err != nil {
		return err
	}
	if m.rho, err = ctx.ExportArray("rho"); err != nil {
		return err
	}
	eng, ok := ctx.Cluster.(cluster.Clusterer)
	if !ok || eng == nil {
		return ctx.ConfigErr("JetAlgorithm", "no clustering engine is wired")
	}
	m.clusterer = eng

	m.def = cluster.Definition{
		Algo: cluster.AlgorithmByID(ctx.Int("JetAlgorithm", int(cluster.AntiKt))),
		R:    ctx.Float("ParameterR", 0.5),
		Area: cluster.AreaDefinition(ctx.Int("AreaDefinition", 0)),
		Ghosts: cluster.GhostSpec{
			EtaMax:      ctx.Float("GhostEtaMax", 5),
			Repeat:      ctx.Int("GhostRepeat", 1),
			Area:        ctx.Float("GhostArea", 0.01),
			GridScatter: ctx.Float("GhostGridScatter", 1),
			PtScatter:   ctx.Float("GhostPtScatter", 0.1),
			MeanPt:      ctx.Float("GhostMeanPt", 1e-100),
		},
	}
	m.ptMin = ctx.Float("JetPTMin", 20)
	m.keepPU = ctx.Bool("KeepPileUp", true)
	m.substrPt = ctx.Float("SubstructurePTMin", 200)

	for i, entry := range ctx.List("RhoEtaRanges") {
		pair, ok := entry.Floats()
		if !ok || len(pair) != 2 {
			return ctx.ConfigErr("RhoEtaRanges", "entry %d is not an [η1, η2] pair", i)
		}
		m.rhoRanges = append(m.rhoRanges, [2]float64{pair[0], pair[1]})
	}
	if len(m.rhoRanges) > 0 && m.def.Area == cluster.AreaNone {
		return ctx.ConfigErr("RhoEtaRanges", "rho estimation requires an area definition")
	}
	return nil
}

func (m *JetFinder) Process(ctx *pipeline.Context) error {
	inputs := make([]cluster.PseudoJet, 0, m.in.Len())
	for i, c := range m.in.Items() {
		if !m.keepPU && c.IsPU > 0 {
			continue
		}
		inputs = append(inputs, cluster.PseudoJet{P: c.Momentum, UserIndex: i})
	}

	seq, err := m.clusterer.Cluster(inputs, m.def, ctx.Random)
	if err != nil {
		return &models.ExternalError{Op: "jet clustering", Err: err}
	}

	m.estimateRho(ctx, seq)

	for _, jet := range seq.InclusiveJets(m.ptMin) {
		c := ctx.Factory.NewCandidate()
		c.Momentum = jet.P
		if seq.HasArea() {
			c.Area = jet.Area
		}
		jetEta, jetPhi := jet.P.Eta(), jet.P.Phi()
		for _, pj := range jet.Constituents {
			in := m.in.At(pj.UserIndex)
			c.AddCandidate(in)
			if d := math.Abs(pj.P.Eta() - jetEta); d > c.DeltaEta {
				c.DeltaEta = d
			}
			if d := math.Abs(models.DeltaPhi(pj.P.Phi(), jetPhi)); d > c.DeltaPhi {
				c.DeltaPhi = d
			}
		}
		if jet.P.Pt() > m.substrPt {
			m.substructure(c, jet)
		}
		m.jets.Append(c)
	}
	return nil
}

// estimateRho computes the jet-median background density per configured η
// range, excluding the two hardest jets of the event.
func (m *JetFinder) estimateRho(ctx *pipeline.Context, seq *cluster.Sequence) {
	if len(m.rhoRanges) == 0 {
		return
	}
	all := seq.AllJets() // descending pt; [0] and [1] are the hard jets
	for _, rng := range m.rhoRanges {
		densities := make([]float64, 0, len(all))
		for i, jet := range all {
			if i < 2 || jet.AreaScalar <= 0 {
				continue
			}
			eta := jet.P.Eta()
			if eta < rng[0] || eta >= rng[1] {
				continue
			}
			densities = append(densities, jet.P.Pt()/jet.AreaScalar)
		}
		rho := 0.0
		if len(densities) > 0 {
			sort.Float64s(densities)
			rho = stat.Quantile(0.5, stat.Empirical, densities, nil)
		}
		c := ctx.Factory.NewCandidate()
		c.Momentum = models.FourVec{E: rho}
		c.Edges[0], c.Edges[1] = rng[0], rng[1]
		m.rho.Append(c)
	}
}

// substructure fills trimming, N-subjettiness and the derived boson/top tags.
func (m *JetFinder) substructure(c *models.Candidate, jet cluster.Jet) {
	trim := cluster.Trim(m.clusterer, jet, 0.2, 0.05)
	trimmedMass := trim.P.M()
	if trimmedMass < 0 {
		trimmedMass = 0
	}
	c.TrimmedP4[0] = trim.P
	c.NSubJetsTrimmed = len(trim.Subjets)
	for i := 0; i < len(trim.Subjets) && i < 3; i++ {
		c.TrimmedP4[i+1] = trim.Subjets[i].P
	}
	leadingSubjetMass := 0.0
	if len(trim.Subjets) > 0 {
		leadingSubjetMass = trim.Subjets[0].P.M()
	}
	massDrop := 1.0
	if trimmedMass > 0 {
		massDrop = leadingSubjetMass / trimmedMass
	}

	c.Tau[0] = cluster.NSubjettiness(m.clusterer, jet, 1, 1.0, 0.8)
	c.Tau[1] = cluster.NSubjettiness(m.clusterer, jet, 2, 1.0, 0.8)
	c.Tau[2] = cluster.NSubjettiness(m.clusterer, jet, 3, 1.0, 0.8)

	c.WTag = massDrop < 0.4 && trimmedMass > 60 && trimmedMass < 120
	c.TopTag = c.NSubJetsTrimmed >= 3 && trimmedMass > 140 && trimmedMass < 230
	c.HTag = massDrop < 0.4 && trimmedMass > 100 && trimmedMass < 140
}

func (m *JetFinder) Finish(ctx *pipeline.Context) error { return nil }
