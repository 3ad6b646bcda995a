package arrays

import (
	"sort"

	"perseus/engine/models"
)

// Array is an ordered sequence of candidates referenced by name. Element
// order is the producer's insertion order and is semantically meaningful.
type Array struct {
	path  string
	items []*models.Candidate
}

func (a *Array) Path() string { return a.path }

func (a *Array) Append(c *models.Candidate) { a.items = append(a.items, c) }

func (a *Array) Len() int { return len(a.items) }

func (a *Array) At(i int) *models.Candidate { return a.items[i] }

// Items exposes the backing slice for read-only iteration.
func (a *Array) Items() []*models.Candidate { return a.items }

// Clear empties the array for the next event.
func (a *Array) Clear() { a.items = a.items[:0] }

// SortDescPt orders the array by descending transverse momentum.
func (a *Array) SortDescPt() {
	sort.SliceStable(a.items, func(i, j int) bool {
		return a.items[i].Momentum.Pt() > a.items[j].Momentum.Pt()
	})
}

// Registry is the process-wide directory of named candidate arrays. An array
// is exported exactly once by its producing module; imports may repeat and
// resolve at Init time.
type Registry struct {
	arrays map[string]*Array
	owners map[string]string
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{
		arrays: make(map[string]*Array),
		owners: make(map[string]string),
	}
}

// Export claims ownership of a fresh output array at path. A second export of
// the same path is a configuration error naming both owners.
func (r *Registry) Export(owner, path string) (*Array, error) {
	if prev, ok := r.owners[path]; ok {
		return nil, &models.ConfigError{
			Module: owner,
			Key:    path,
			Reason: "array already exported by module " + prev,
		}
	}
	a := &Array{path: path}
	r.arrays[path] = a
	r.owners[path] = owner
	r.order = append(r.order, path)
	return a, nil
}

// Import borrows the named array for read-only iteration. Missing paths are
// a resolve error attributed to the importing module.
func (r *Registry) Import(module, path string) (*Array, error) {
	a, ok := r.arrays[path]
	if !ok {
		return nil, &models.ResolveError{Module: module, Path: path}
	}
	return a, nil
}

// Paths returns every exported path in export order.
func (r *Registry) Paths() []string { return r.order }

// ClearAll empties every array at the event boundary. Producers refill their
// own arrays during Process.
func (r *Registry) ClearAll() {
	for _, a := range r.arrays {
		a.Clear()
	}
}
