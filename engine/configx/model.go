package configx

// RunSpec is the canonical hierarchical configuration payload for one
// simulation run: run-level keys plus the ordered pipeline of module blocks.
// Module execution order is the order of declaration in Pipeline.
type RunSpec struct {
	Seed      int64        `yaml:"seed"`
	MaxEvents int          `yaml:"max_events"`
	Pipeline  []ModuleSpec `yaml:"pipeline"`
}

// ModuleSpec is one configured processing stage. Module names the registered
// module type; Name is the instance name used as the exported-array path
// prefix (defaults to Module when empty). Params is the module's recognized
// configuration block; unknown keys are ignored, missing keys yield the
// caller's documented default.
type ModuleSpec struct {
	Module string           `yaml:"module"`
	Name   string           `yaml:"name"`
	Params map[string]Param `yaml:"params"`
}

// InstanceName returns Name, falling back to the module type.
func (m *ModuleSpec) InstanceName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Module
}

// Param returns the raw parameter and whether it was present.
func (m *ModuleSpec) Param(key string) (Param, bool) {
	p, ok := m.Params[key]
	return p, ok
}

// Int returns the integer parameter, or def when absent or untyped.
func (m *ModuleSpec) Int(key string, def int) int {
	if p, ok := m.Params[key]; ok {
		if v, ok := p.Int(); ok {
			return v
		}
	}
	return def
}

// Float returns the floating-point parameter, or def. Integer values widen.
func (m *ModuleSpec) Float(key string, def float64) float64 {
	if p, ok := m.Params[key]; ok {
		if v, ok := p.Float(); ok {
			return v
		}
	}
	return def
}

// Bool returns the boolean parameter, or def.
func (m *ModuleSpec) Bool(key string, def bool) bool {
	if p, ok := m.Params[key]; ok {
		if v, ok := p.Bool(); ok {
			return v
		}
	}
	return def
}

// String returns the string parameter, or def.
func (m *ModuleSpec) String(key string, def string) string {
	if p, ok := m.Params[key]; ok {
		if v, ok := p.String(); ok {
			return v
		}
	}
	return def
}

// List returns the parameter as a list, or nil when absent or scalar.
func (m *ModuleSpec) List(key string) []Param {
	if p, ok := m.Params[key]; ok {
		if l, ok := p.List(); ok {
			return l
		}
	}
	return nil
}
