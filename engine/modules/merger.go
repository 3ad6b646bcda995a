package modules

import (
	"perseus/engine/internal/arrays"
	"perseus/engine/internal/pipeline"
)

// Merger concatenates its input arrays into one output array, preserving
// per-array insertion order. Typical use: eflowTracks + eflowTowers → the
// energy-flow jet input.
//
// Parameters:
//
//	InputArrays  list of array paths (required)
//	OutputArray  exported array name, default "candidates"
type Merger struct {
	inputs []*arrays.Array
	out    *arrays.Array
}

func (m *Merger) Init(ctx *pipeline.Context) error {
	list := ctx.List("InputArrays")
	if len(list) == 0 {
		return ctx.ConfigErr("InputArrays", "missing required key")
	}
	for i, p := range list {
		path, ok := p.String()
		if !ok {
			return ctx.ConfigErr("InputArrays", "entry %d is not a string", i)
		}
		in, err := ctx.ImportArray(path)
		if err != nil {
			return err
		}
		m.inputs = append(m.inputs, in)
	}
	out, err := ctx.ExportArray(ctx.String("OutputArray", "candidates"))
	if err != nil {
		return err
	}
	m.out = out
	return nil
}

func (m *Merger) Process(ctx *pipeline.Context) error {
	for _, in := range m.inputs {
		for _, c := range in.Items() {
			m.out.Append(c)
		}
	}
	return nil
}

func (m *Merger) Finish(ctx *pipeline.Context) error { return nil }
