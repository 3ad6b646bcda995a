// Package modules holds the physics processing stages of the reconstruction
// pipeline. Each module is registered under its configuration name and built
// per pipeline entry; instances communicate only through named arrays.
package modules

import (
	"fmt"
	"sort"

	"perseus/engine/internal/pipeline"
)

// Builder constructs a fresh module instance.
type Builder func() pipeline.Module

var registry = map[string]Builder{
	"PileUpMerger":       func() pipeline.Module { return &PileUpMerger{} },
	"ParticlePropagator": func() pipeline.Module { return &ParticlePropagator{} },
	"Calorimeter":        func() pipeline.Module { return &Calorimeter{} },
	"Merger":             func() pipeline.Module { return &Merger{} },
	"JetFinder":          func() pipeline.Module { return &JetFinder{} },
	"BTagger":            func() pipeline.Module { return &BTagger{} },
	"Isolation":          func() pipeline.Module { return &Isolation{} },
	"MissingET":          func() pipeline.Module { return &MissingET{} },
	"TreeWriter":         func() pipeline.Module { return &TreeWriter{} },
}

// Register adds (or overrides) a module type; embedding applications extend
// the pipeline this way.
func Register(name string, b Builder) { registry[name] = b }

// Build instantiates the named module type.
func Build(name string) (pipeline.Module, error) {
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown module type %q (known: %v)", name, Known())
	}
	return b(), nil
}

// Known lists the registered module types, sorted.
func Known() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
