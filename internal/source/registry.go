package source

import (
	"fmt"
	"maps"
	"slices"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/ports"
)

// Registry keeps a mapping from source names to their adapters.
type Registry struct {
	adapters map[string]ports.SourceAdapter
}

// NewRegistry builds a registry holding the given adapters.
func NewRegistry(adapters ...ports.SourceAdapter) *Registry {
	r := &Registry{adapters: map[string]ports.SourceAdapter{}}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(adapter ports.SourceAdapter) {
	if r.adapters == nil {
		r.adapters = map[string]ports.SourceAdapter{}
	}
	r.adapters[adapter.Name()] = adapter
}

// Resolve returns an adapter by name. Unknown names wrap domain.ErrUnknownSource.
func (r *Registry) Resolve(name string) (ports.SourceAdapter, error) {
	if adapter, ok := r.adapters[name]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("source %s: %w", name, domain.ErrUnknownSource)
}

// Names lists registered sources in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.adapters))
}

// Adapters returns every registered adapter ordered by name.
func (r *Registry) Adapters() []ports.SourceAdapter {
	out := make([]ports.SourceAdapter, 0, len(r.adapters))
	for _, name := range r.Names() {
		out = append(out, r.adapters[name])
	}
	return out
}
