// Package property normalises real-estate listings.
package property

import (
	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/logger"
	"github.com/custodia-labs/propfeed/internal/normalisers/rules"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles property listings.
type Normaliser struct{}

// New creates a new property normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Kind returns the record kind this normaliser handles.
func (n *Normaliser) Kind() domain.RecordKind {
	return domain.KindProperty
}

// Normalise maps a listing into a canonical record.
// Listings without a description fall back to their body text.
func (n *Normaliser) Normalise(raw domain.RawItem, images []domain.ResolvedImage) domain.CanonicalRecord {
	rec := rules.Base(domain.KindProperty, raw, images)
	if rec.Description == "" {
		rec.Description = rules.Text(raw.Body, "")
	}

	if raw.OperationType != nil && !rules.KnownOperation(raw.OperationType) {
		logger.Debug("property %s: unknown operation %q, defaulting to %s",
			rec.ID, *raw.OperationType, rec.Operation.Type)
	}
	return rec
}
