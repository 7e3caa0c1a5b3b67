// Package content normalises editorial content items from the provider's CMS.
package content

import (
	"github.com/custodia-labs/propfeed/internal/core/domain"
	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/normalisers/rules"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles content items.
type Normaliser struct{}

// New creates a new content normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Kind returns the record kind this normaliser handles.
func (n *Normaliser) Kind() domain.RecordKind {
	return domain.KindContent
}

// Normalise maps a content item into a canonical record. The item body
// is the description; an explicit description is used only without a body.
func (n *Normaliser) Normalise(raw domain.RawItem, images []domain.ResolvedImage) domain.CanonicalRecord {
	rec := rules.Base(domain.KindContent, raw, images)
	if body := rules.Text(raw.Body, ""); body != "" {
		rec.Description = body
	}
	return rec
}
