package normalisers

import (
	"sync"

	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/normalisers/content"
	"github.com/custodia-labs/propfeed/internal/normalisers/property"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps record kinds to normalisers.
type Registry struct {
	mu       sync.RWMutex
	byKind   map[domain.RecordKind]driven.Normaliser
	fallback driven.Normaliser
}

// NewRegistry creates a registry that falls back to fallback for
// unregistered kinds. The fallback is registered under its own kind.
func NewRegistry(fallback driven.Normaliser) *Registry {
	r := &Registry{
		byKind:   make(map[domain.RecordKind]driven.Normaliser),
		fallback: fallback,
	}
	if fallback != nil {
		r.byKind[fallback.Kind()] = fallback
	}
	return r
}

// NewDefaultRegistry returns a registry with the property and content
// normalisers, falling back to property.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(property.New())
	r.Register(content.New())
	return r
}

// Register adds a normaliser, replacing any for the same kind.
func (r *Registry) Register(n driven.Normaliser) {
	if n == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[n.Kind()] = n
}

// Kinds returns the registered record kinds.
func (r *Registry) Kinds() []domain.RecordKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]domain.RecordKind, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	return kinds
}

// Normalise dispatches on raw.Kind.
func (r *Registry) Normalise(raw domain.RawItem, images []domain.ResolvedImage) domain.CanonicalRecord {
	r.mu.RLock()
	n, ok := r.byKind[raw.Kind]
	if !ok {
		n = r.fallback
	}
	r.mu.RUnlock()

	if n == nil {
		n = property.New()
	}
	return n.Normalise(raw, images)
}
