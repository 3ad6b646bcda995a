package modules

import (
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/models"
)

// MissingET computes the missing transverse energy (the negated vector sum
// of its input) and the scalar HT, each exported as a one-candidate array.
//
// Parameters:
//
//	InputArray  array to sum, default "EFlowMerger/candidates"
type MissingET struct {
	in  *arrays.Array
	met *arrays.Array
	ht  *arrays.Array
}

func (m *MissingET) Init(ctx *pipeline.Context) error {
	in, err := ctx.ImportArray(ctx.String("InputArray", "EFlowMerger/candidates"))
	if err != nil {
		return err
	}
	m.in = in
	if m.met, err = ctx.ExportArray("momentum"); err != nil {
		return err
	}
	if m.ht, err = ctx.ExportArray("scalarHT"); err != nil {
		return err
	}
	return nil
}

func (m *MissingET) Process(ctx *pipeline.Context) error {
	var sum models.FourVec
	ht := 0.0
	for _, c := range m.in.Items() {
		sum = sum.Add(c.Momentum)
		ht += c.Momentum.Pt()
	}
	met := ctx.Factory.NewCandidate()
	met.Momentum = models.FourVec{Px: -sum.Px, Py: -sum.Py}
	met.Momentum.E = met.Momentum.Pt()
	m.met.Append(met)

	sc := ctx.Factory.NewCandidate()
	sc.Momentum = models.FourVec{E: ht}
	m.ht.Append(sc)
	return nil
}

func (m *MissingET) Finish(ctx *pipeline.Context) error { return nil }
