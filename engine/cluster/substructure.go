package cluster

import (
	"math"
	"sort"

	"perseus/engine/models"
)

// TrimResult is the outcome of jet trimming: the groomed four-momentum and
// the surviving subjets in descending pt.
type TrimResult struct {
	P       models.FourVec
	Subjets []Jet
}

// Trim reclusters the jet's constituents with Cambridge/Aachen at rsub and
// discards subjets below frac of the original jet pt.
func Trim(e Clusterer, jet Jet, rsub, frac float64) TrimResult {
	seq, err := e.Cluster(jet.Constituents, Definition{Algo: CambridgeAachen, R: rsub}, nil)
	if err != nil || seq == nil {
		return TrimResult{}
	}
	cut := frac * jet.P.Pt()
	var res TrimResult
	for _, sj := range seq.AllJets() {
		if sj.P.Pt() < cut {
			continue
		}
		res.Subjets = append(res.Subjets, sj)
		res.P = res.P.Add(sj.P)
	}
	sort.SliceStable(res.Subjets, func(i, j int) bool {
		return res.Subjets[i].P.Pt() > res.Subjets[j].P.Pt()
	})
	return res
}

// NSubjettiness computes τ_n with exclusive-kt axes:
// τ_n = Σ_i pt_i · min_k ΔR(i, axis_k)^β / (R0^β · Σ_i pt_i).
// Returns 0 when the jet has fewer than n constituents.
func NSubjettiness(e Clusterer, jet Jet, n int, beta, r0 float64) float64 {
	if n <= 0 || len(jet.Constituents) < n {
		return 0
	}
	axes := e.ExclusiveJets(jet.Constituents, Kt, r0, n)
	if len(axes) == 0 {
		return 0
	}
	var num, den float64
	for _, c := range jet.Constituents {
		pt := c.P.Pt()
		den += pt
		minDR := math.Inf(1)
		for _, ax := range axes {
			if dr := c.P.DeltaR(ax.P); dr < minDR {
				minDR = dr
			}
		}
		num += pt * math.Pow(minDR, beta)
	}
	if den == 0 {
		return 0
	}
	return num / (den * math.Pow(r0, beta))
}
