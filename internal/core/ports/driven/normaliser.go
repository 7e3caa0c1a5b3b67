package driven

import "github.com/custodia-labs/propfeed/internal/core/domain"

// Normaliser maps a decoded upstream record and its resolved images
// into the canonical output shape. Implementations are pure.
type Normaliser interface {
	// Kind returns the record kind this normaliser handles.
	Kind() domain.RecordKind

	// Normalise produces a fully defaulted canonical record.
	Normalise(raw domain.RawItem, images []domain.ResolvedImage) domain.CanonicalRecord
}

// NormaliserRegistry selects the normaliser for a record.
type NormaliserRegistry interface {
	// Register adds a normaliser, replacing any for the same kind.
	Register(n Normaliser)

	// Normalise dispatches on raw.Kind, falling back to the default
	// normaliser for unknown kinds.
	Normalise(raw domain.RawItem, images []domain.ResolvedImage) domain.CanonicalRecord
}
