package configx

import "gopkg.in/yaml.v3"

// Param is one configuration value: an int, float, bool, string, or a ragged
// nested list of Params. Structured module parameters (calorimeter bin pairs,
// efficiency formula tables, writer branch lists) arrive as lists of lists of
// primitives; Param preserves the nesting without a fixed schema.
type Param struct {
	value any
}

// NewParam wraps a raw value; used by tests and programmatic specs.
func NewParam(v any) Param { return Param{value: v} }

// UnmarshalYAML decodes scalars to int64/float64/bool/string and sequences to
// nested []Param.
func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		list := make([]Param, 0, len(node.Content))
		for _, child := range node.Content {
			var q Param
			if err := q.UnmarshalYAML(child); err != nil {
				return err
			}
			list = append(list, q)
		}
		p.value = list
		return nil
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		p.value = v
		return nil
	}
}

// Raw returns the decoded value as-is.
func (p Param) Raw() any { return p.value }

// IsList reports whether the param is a (possibly nested) list.
func (p Param) IsList() bool {
	_, ok := p.value.([]Param)
	return ok
}

func (p Param) List() ([]Param, bool) {
	l, ok := p.value.([]Param)
	return l, ok
}

func (p Param) Int() (int, bool) {
	switch v := p.value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	}
	return 0, false
}

func (p Param) Float() (float64, bool) {
	switch v := p.value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func (p Param) Bool() (bool, bool) {
	v, ok := p.value.(bool)
	return v, ok
}

func (p Param) String() (string, bool) {
	v, ok := p.value.(string)
	return v, ok
}

// Floats flattens a one-level list of numbers. The second return is false if
// the param is not a list or any entry is non-numeric.
func (p Param) Floats() ([]float64, bool) {
	list, ok := p.List()
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(list))
	for _, q := range list {
		f, ok := q.Float()
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}
