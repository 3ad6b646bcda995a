package modules

import (
	"math"

	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/models"
)

// Isolation accumulates the cone activity around each candidate and fills
// the isolation fields: raw charged / neutral / charged-pile-up / total
// sums, the dβ- and ρ-corrected relative isolations, and the track-only
// variant. Candidates below PTRatioMax are re-exported as the isolated
// selection.
//
// Parameters:
//
//	CandidateInputArray  objects to isolate (required)
//	IsolationInputArray  cone contributors, default "EFlowMerger/candidates"
//	RhoInputArray        optional density estimates, e.g. "JetFinder/rho"
//	DeltaRMax            cone size, default 0.5
//	PTMin                minimum contributor pt, default 0.5
//	PTRatioMax           selection cut on IsolationVar, default 1e9 (keep all)
type Isolation struct {
	candidates *arrays.Array
	eflow      *arrays.Array
	rho        *arrays.Array
	out        *arrays.Array

	deltaRMax  float64
	ptMin      float64
	ptRatioMax float64
}

func (m *Isolation) Init(ctx *pipeline.Context) error {
	path, err := ctx.RequireString("CandidateInputArray")
	if err != nil {
		return err
	}
	if m.candidates, err = ctx.ImportArray(path); err != nil {
		return err
	}
	if m.eflow, err = ctx.ImportArray(ctx.String("IsolationInputArray", "EFlowMerger/candidates")); err != nil {
		return err
	}
	if rhoPath := ctx.String("RhoInputArray", ""); rhoPath != "" {
		if m.rho, err = ctx.ImportArray(rhoPath); err != nil {
			return err
		}
	}
	if m.out, err = ctx.ExportArray("candidates"); err != nil {
		return err
	}
	m.deltaRMax = ctx.Float("DeltaRMax", 0.5)
	m.ptMin = ctx.Float("PTMin", 0.5)
	m.ptRatioMax = ctx.Float("PTRatioMax", 1e9)
	return nil
}

func (m *Isolation) Process(ctx *pipeline.Context) error {
	for _, c := range m.candidates.Items() {
		pt := c.Momentum.Pt()
		if pt <= 0 {
			continue
		}
		var sumCharged, sumNeutral, sumChargedPU, sumAll float64
		for _, e := range m.eflow.Items() {
			ept := e.Momentum.Pt()
			if ept < m.ptMin {
				continue
			}
			if e == c || c.Overlaps(e) {
				continue
			}
			if c.Momentum.DeltaR(e.Momentum) > m.deltaRMax {
				continue
			}
			sumAll += ept
			switch {
			case e.Charge != 0 && e.IsPU > 0:
				sumChargedPU += ept
			case e.Charge != 0:
				sumCharged += ept
			default:
				sumNeutral += ept
			}
		}
		c.SumPtCharged = sumCharged
		c.SumPtNeutral = sumNeutral
		c.SumPtChargedPU = sumChargedPU
		c.SumPt = sumAll

		c.IsolationVar = (sumCharged + math.Max(0, sumNeutral-0.5*sumChargedPU)) / pt
		c.TrackIsolationVar = (sumCharged + sumChargedPU) / pt
		c.IsolationVarRhoCorr = c.IsolationVar
		if rho := m.rhoFor(c); rho > 0 {
			corr := rho * math.Pi * m.deltaRMax * m.deltaRMax
			c.IsolationVarRhoCorr = (sumCharged + math.Max(0, sumNeutral-corr)) / pt
		}

		if c.IsolationVar <= m.ptRatioMax {
			m.out.Append(c)
		}
	}
	return nil
}

// rhoFor picks the density estimate whose η range covers the candidate.
func (m *Isolation) rhoFor(c *models.Candidate) float64 {
	if m.rho == nil {
		return 0
	}
	eta := c.Momentum.Eta()
	for _, r := range m.rho.Items() {
		if eta >= r.Edges[0] && eta < r.Edges[1] {
			return r.Momentum.E
		}
	}
	return 0
}

func (m *Isolation) Finish(ctx *pipeline.Context) error { return nil }
