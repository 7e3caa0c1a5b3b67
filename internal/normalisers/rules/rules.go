// Package rules holds the field mapping rules shared by every normaliser.
// All functions are pure and total: absent input yields the documented default.
package rules

import (
	"strings"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// Defaults for absent upstream fields.
const (
	DefaultTitle        = "Untitled"
	DefaultCurrency     = "EUR"
	DefaultEnergyRating = "unknown"
	DefaultPropertyType = "other"
	ReferencePrefix     = "REF-"
)

var sellWords = map[string]struct{}{
	"venta": {}, "sale": {}, "sell": {}, "for sale": {}, "compra": {}, "comprar": {},
}

var rentWords = map[string]struct{}{
	"alquiler": {}, "rent": {}, "rental": {}, "for rent": {}, "lease": {}, "arriendo": {}, "alquilar": {},
}

// ID returns the business id when present, else the system id.
func ID(raw domain.RawItem) string {
	if id := strings.TrimSpace(raw.BusinessID); id != "" {
		return id
	}
	return strings.TrimSpace(raw.SystemID)
}

// Reference derives the display reference from the last four characters
// of the system id. Ids shorter than four characters yield "".
func Reference(systemID string) string {
	r := []rune(strings.TrimSpace(systemID))
	if len(r) < 4 {
		return ""
	}
	return ReferencePrefix + string(r[len(r)-4:])
}

// Operation maps an upstream operation word to the closed operation set.
// Unknown or missing values map to sell.
func Operation(v *string) domain.OperationType {
	if v == nil {
		return domain.OperationSell
	}
	if _, ok := rentWords[operationWord(*v)]; ok {
		return domain.OperationRent
	}
	return domain.OperationSell
}

// KnownOperation reports whether v is one of the recognised operation words.
func KnownOperation(v *string) bool {
	if v == nil {
		return false
	}
	word := operationWord(*v)
	_, sell := sellWords[word]
	_, rent := rentWords[word]
	return sell || rent
}

// operationWord lower-cases v and collapses inner whitespace.
func operationWord(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

// Text returns the trimmed value or fallback when absent or blank.
func Text(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	if s := strings.TrimSpace(*v); s != "" {
		return s
	}
	return fallback
}

// Float returns the value or 0.
func Float(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Int returns the value or 0.
func Int(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Currency returns the upper-cased currency code or DefaultCurrency.
func Currency(v *string) string {
	return strings.ToUpper(Text(v, DefaultCurrency))
}

// Address copies a structured address, deriving Formatted from the parts
// when the upstream did not send one.
func Address(a *domain.RawAddress) domain.Address {
	if a == nil {
		return domain.Address{}
	}
	out := domain.Address{
		Street:     Text(a.Street, ""),
		City:       Text(a.City, ""),
		Province:   Text(a.Province, ""),
		PostalCode: Text(a.PostalCode, ""),
		Country:    Text(a.Country, ""),
		Formatted:  Text(a.Formatted, ""),
	}
	if out.Formatted == "" {
		out.Formatted = formatAddress(out)
	}
	return out
}

func formatAddress(a domain.Address) string {
	locality := strings.TrimSpace(a.PostalCode + " " + a.City)
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, locality, a.Province, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Timestamps returns createdAt and updatedAt. createdAt falls back to
// updatedAt; both are zero when absent.
func Timestamps(created, updated *time.Time) (time.Time, time.Time) {
	var c, u time.Time
	if updated != nil {
		u = *updated
	}
	if created != nil {
		c = *created
	} else {
		c = u
	}
	return c, u
}

// Active is true unless the upstream explicitly sent false.
func Active(v *bool) bool {
	return v == nil || *v
}

// Images returns the resolver output, never nil.
func Images(images []domain.ResolvedImage) []domain.ResolvedImage {
	if images == nil {
		return []domain.ResolvedImage{}
	}
	return images
}

// Base applies every shared rule and returns a record of the given kind.
// Kind-specific normalisers adjust the result.
func Base(kind domain.RecordKind, raw domain.RawItem, images []domain.ResolvedImage) domain.CanonicalRecord {
	created, updated := Timestamps(raw.CreatedAt, raw.UpdatedAt)
	return domain.CanonicalRecord{
		ID:               ID(raw),
		Reference:        Reference(raw.SystemID),
		Kind:             kind,
		Title:            Text(raw.Title, DefaultTitle),
		Description:      Text(raw.Description, ""),
		ShortDescription: Text(raw.ShortDescription, ""),
		Slug:             Text(raw.Slug, ""),
		Price:            Float(raw.Price),
		Currency:         Currency(raw.Currency),
		Address:          Address(raw.Address),
		Features: domain.Features{
			Area:         Float(raw.Area),
			EnergyRating: Text(raw.EnergyRating, DefaultEnergyRating),
			Rooms:        Int(raw.Rooms),
			Bathrooms:    Int(raw.Bathrooms),
		},
		Images:    Images(images),
		Operation: domain.Operation{Type: Operation(raw.OperationType)},
		Classification: domain.Classification{
			PropertyType: Text(raw.PropertyType, DefaultPropertyType),
			Zone:         Text(raw.Zone, ""),
		},
		CreatedAt: created,
		UpdatedAt: updated,
		IsActive:  Active(raw.IsActive),
	}
}
