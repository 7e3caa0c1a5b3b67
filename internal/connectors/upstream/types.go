package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

// flexString accepts JSON strings and numbers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	*s = flexString(n.String())
	return nil
}

// flexText accepts JSON strings and numbers for free-text fields.
// Other JSON types decode as absent.
type flexText struct {
	value string
	ok    bool
}

func (t *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		if err := json.Unmarshal(data, &t.value); err != nil {
			return nil
		}
		t.ok = true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		t.value, t.ok = n.String(), true
	}
	return nil
}

func (t *flexText) ptr() *string {
	if t == nil || !t.ok {
		return nil
	}
	v := t.value
	return &v
}

func (t *flexText) String() string {
	if t == nil {
		return ""
	}
	return t.value
}

// flexFloat accepts JSON numbers and numeric strings. Unparseable
// values decode as absent.
type flexFloat struct {
	value float64
	ok    bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			f.value, f.ok = v, true
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		f.value, f.ok = v, true
	}
	return nil
}

func (f *flexFloat) ptr() *float64 {
	if f == nil || !f.ok {
		return nil
	}
	v := f.value
	return &v
}

func (f *flexFloat) intValue() int {
	if p := f.intPtr(); p != nil {
		return *p
	}
	return 0
}

func (f *flexFloat) intPtr() *int {
	p := f.ptr()
	if p == nil {
		return nil
	}
	v := int(*p)
	return &v
}

// wireSys is the CMS-style system block.
type wireSys struct {
	ID          flexString `json:"id"`
	CreatedAt   flexText   `json:"createdAt"`
	UpdatedAt   flexText   `json:"updatedAt"`
	ContentType *struct {
		Sys struct {
			ID flexString `json:"id"`
		} `json:"sys"`
	} `json:"contentType"`
}

// wireFields covers both flat items and the fields block of CMS items.
type wireFields struct {
	ID               flexString      `json:"id"`
	BusinessID       flexString      `json:"businessId"`
	Kind             flexText        `json:"kind"`
	Title            *flexText       `json:"title"`
	Description      *flexText       `json:"description"`
	Body             *flexText       `json:"body"`
	ShortDescription *flexText       `json:"shortDescription"`
	Slug             *flexText       `json:"slug"`
	Price            *flexFloat      `json:"price"`
	Currency         *flexText       `json:"currency"`
	Address          json.RawMessage `json:"address"`
	Area             *flexFloat      `json:"area"`
	EnergyRating     *flexText       `json:"energyRating"`
	Rooms            *flexFloat      `json:"rooms"`
	Bathrooms        *flexFloat      `json:"bathrooms"`
	OperationType    *flexText       `json:"operationType"`
	Operation        *flexText       `json:"operation"`
	PropertyType     *flexText       `json:"propertyType"`
	Zone             *flexText       `json:"zone"`
	CreatedAt        *flexText       `json:"createdAt"`
	UpdatedAt        *flexText       `json:"updatedAt"`
	IsActive         json.RawMessage `json:"isActive"`
	Images           json.RawMessage `json:"images"`
}

// wireItem is one listing item in either shape.
type wireItem struct {
	sys    *wireSys
	fields wireFields
}

func (w *wireItem) UnmarshalJSON(data []byte) error {
	var shape struct {
		Sys    *wireSys        `json:"sys"`
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	if shape.Sys != nil && len(shape.Fields) > 0 {
		w.sys = shape.Sys
		return json.Unmarshal(shape.Fields, &w.fields)
	}
	return json.Unmarshal(data, &w.fields)
}

// toRaw converts the wire item to the domain representation.
func (w wireItem) toRaw() domain.RawItem {
	f := w.fields
	raw := domain.RawItem{
		Kind:             domain.KindProperty,
		SystemID:         strings.TrimSpace(string(f.ID)),
		BusinessID:       strings.TrimSpace(string(f.BusinessID)),
		Title:            f.Title.ptr(),
		Description:      f.Description.ptr(),
		ShortDescription: f.ShortDescription.ptr(),
		Body:             f.Body.ptr(),
		Slug:             f.Slug.ptr(),
		Price:            f.Price.ptr(),
		Currency:         f.Currency.ptr(),
		Address:          decodeAddress(f.Address),
		Area:             f.Area.ptr(),
		EnergyRating:     f.EnergyRating.ptr(),
		Rooms:            f.Rooms.intPtr(),
		Bathrooms:        f.Bathrooms.intPtr(),
		OperationType:    f.OperationType.ptr(),
		PropertyType:     f.PropertyType.ptr(),
		Zone:             f.Zone.ptr(),
		CreatedAt:        parseTime(f.CreatedAt.ptr()),
		UpdatedAt:        parseTime(f.UpdatedAt.ptr()),
		IsActive:         decodeActive(f.IsActive),
		ImageRefs:        decodeImageRefs(f.Images),
	}
	if raw.OperationType == nil {
		raw.OperationType = f.Operation.ptr()
	}

	kind := f.Kind.String()
	if w.sys != nil {
		if id := strings.TrimSpace(string(w.sys.ID)); id != "" {
			raw.SystemID = id
		}
		if raw.CreatedAt == nil {
			raw.CreatedAt = parseTime(w.sys.CreatedAt.ptr())
		}
		if raw.UpdatedAt == nil {
			raw.UpdatedAt = parseTime(w.sys.UpdatedAt.ptr())
		}
		if kind == "" && w.sys.ContentType != nil {
			kind = string(w.sys.ContentType.Sys.ID)
		}
	}
	if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
		raw.Kind = domain.RecordKind(kind)
	}
	return raw
}

// wireAsset is an asset in CMS shape.
type wireAsset struct {
	ID  flexString `json:"id"`
	Sys *struct {
		ID flexString `json:"id"`
	} `json:"sys"`
	Fields struct {
		Title       flexText `json:"title"`
		Description flexText `json:"description"`
		File        struct {
			URL     flexText `json:"url"`
			Details struct {
				Size  *flexFloat `json:"size"`
				Image struct {
					Width  *flexFloat `json:"width"`
					Height *flexFloat `json:"height"`
				} `json:"image"`
			} `json:"details"`
		} `json:"file"`
	} `json:"fields"`
}

func (w wireAsset) toAsset() domain.Asset {
	id := string(w.ID)
	if w.Sys != nil && w.Sys.ID != "" {
		id = string(w.Sys.ID)
	}
	a := domain.Asset{
		ID:          strings.TrimSpace(id),
		Title:       w.Fields.Title.String(),
		Description: w.Fields.Description.String(),
		FileURL:     strings.TrimSpace(w.Fields.File.URL.String()),
	}
	if p := w.Fields.File.Details.Size.ptr(); p != nil {
		a.SizeBytes = int64(*p)
	}
	if p := w.Fields.File.Details.Image.Width.intPtr(); p != nil {
		a.Width = *p
	}
	if p := w.Fields.File.Details.Image.Height.intPtr(); p != nil {
		a.Height = *p
	}
	return a
}

// listingResponse is the listing endpoint body.
type listingResponse struct {
	Items      []wireItem `json:"items"`
	Total      *flexFloat `json:"total"`
	Page       *flexFloat `json:"page"`
	PageSize   *flexFloat `json:"pageSize"`
	TotalPages *flexFloat `json:"totalPages"`
	Includes   *struct {
		Assets   []wireAsset `json:"assets"`
		CMSAsset []wireAsset `json:"Asset"`
	} `json:"includes"`
}

func (r listingResponse) toPage() *domain.ListingPage {
	page := &domain.ListingPage{
		Items:      make([]domain.RawItem, 0, len(r.Items)),
		Total:      r.Total.intValue(),
		Page:       r.Page.intValue(),
		PageSize:   r.PageSize.intValue(),
		TotalPages: r.TotalPages.intValue(),
	}
	for _, it := range r.Items {
		page.Items = append(page.Items, it.toRaw())
	}
	if r.Includes != nil {
		assets := make([]domain.Asset, 0, len(r.Includes.Assets)+len(r.Includes.CMSAsset))
		for _, a := range r.Includes.Assets {
			assets = append(assets, a.toAsset())
		}
		for _, a := range r.Includes.CMSAsset {
			assets = append(assets, a.toAsset())
		}
		page.Includes = domain.NewAssetBundle(assets)
	}
	return page
}

// itemImagesResponse is the per-item image endpoint body.
type itemImagesResponse struct {
	Images json.RawMessage `json:"images"`
}

// decodeActive returns false only for the JSON literal false.
func decodeActive(data json.RawMessage) *bool {
	switch string(bytes.TrimSpace(data)) {
	case "false":
		v := false
		return &v
	case "true":
		v := true
		return &v
	}
	return nil
}

// decodeAddress accepts a structured object or a plain string.
func decodeAddress(data json.RawMessage) *domain.RawAddress {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil
		}
		s = strings.TrimSpace(s)
		return &domain.RawAddress{Formatted: &s}
	}
	var obj struct {
		Street     *flexText `json:"street"`
		City       *flexText `json:"city"`
		Province   *flexText `json:"province"`
		PostalCode *flexText `json:"postalCode"`
		Country    *flexText `json:"country"`
		Formatted  *flexText `json:"formatted"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return &domain.RawAddress{
		Street:     obj.Street.ptr(),
		City:       obj.City.ptr(),
		Province:   obj.Province.ptr(),
		PostalCode: obj.PostalCode.ptr(),
		Country:    obj.Country.ptr(),
		Formatted:  obj.Formatted.ptr(),
	}
}

// decodeImageRefs accepts ["id", ...], [{"assetId": "id"}, ...] and
// CMS links [{"sys": {"id": "id"}}, ...]. Entries without an ID are dropped.
func decodeImageRefs(data json.RawMessage) []domain.ImageRef {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil
	}

	refs := make([]domain.ImageRef, 0, len(elems))
	for _, e := range elems {
		if id := imageRefID(e); id != "" {
			refs = append(refs, domain.ImageRef{AssetID: id})
		}
	}
	return refs
}

func imageRefID(data json.RawMessage) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	if data[0] == '"' {
		var s string
		_ = json.Unmarshal(data, &s)
		return strings.TrimSpace(s)
	}
	var obj struct {
		AssetID flexString `json:"assetId"`
		ID      flexString `json:"id"`
		Sys     *struct {
			ID flexString `json:"id"`
		} `json:"sys"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return ""
	}
	switch {
	case obj.AssetID != "":
		return strings.TrimSpace(string(obj.AssetID))
	case obj.Sys != nil && obj.Sys.ID != "":
		return strings.TrimSpace(string(obj.Sys.ID))
	}
	return strings.TrimSpace(string(obj.ID))
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
