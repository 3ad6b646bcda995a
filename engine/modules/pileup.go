package modules

import (
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
	"perseus/engine/reader"
)

// PileUpMerger overlays minimum-bias interactions onto the hard event. The
// number of interactions is Poisson-distributed; overlaid particles carry
// their interaction index in IsPU and a spread production vertex.
//
// Parameters:
//
//	InputArray     hard-scatter particles, default "Reader/stableParticles"
//	MeanPileUp     average interactions per event, default 0 (pass-through)
//	ZVertexSpread  gaussian sigma of the vertex z in mm, default 53
//	TVertexSpread  gaussian sigma of the vertex t in mm/c, default 53
type PileUpMerger struct {
	in      *arrays.Array
	out     *arrays.Array
	sampler reader.PileUpSampler

	mean    float64
	zSpread float64
	tSpread float64
}

func (m *PileUpMerger) Init(ctx *pipeline.Context) error {
	in, err := ctx.ImportArray(ctx.String("InputArray", "Reader/stableParticles"))
	if err != nil {
		return err
	}
	m.in = in
	if m.out, err = ctx.ExportArray("stableParticles"); err != nil {
		return err
	}
	m.mean = ctx.Float("MeanPileUp", 0)
	m.zSpread = ctx.Float("ZVertexSpread", 53)
	m.tSpread = ctx.Float("TVertexSpread", 53)
	if s, ok := ctx.PileUp.(reader.PileUpSampler); ok {
		m.sampler = s
	}
	if m.mean > 0 && m.sampler == nil {
		return ctx.ConfigErr("MeanPileUp", "pile-up requested but no sampler is wired")
	}
	return nil
}

func (m *PileUpMerger) Process(ctx *pipeline.Context) error {
	for _, c := range m.in.Items() {
		m.out.Append(c)
	}
	if m.mean <= 0 {
		return nil
	}
	n := ctx.Random.Poisson(m.mean)
	for i := 0; i < n; i++ {
		z := ctx.Random.Gauss(0, m.zSpread)
		t := ctx.Random.Gauss(0, m.tSpread)
		for _, c := range m.sampler.Sample(ctx.Factory, ctx.Random.Uniform) {
			c.IsPU = i + 1
			c.Position.Pz += z
			c.Position.E += t
			m.out.Append(c)
		}
	}
	return nil
}

func (m *PileUpMerger) Finish(ctx *pipeline.Context) error { return nil }
