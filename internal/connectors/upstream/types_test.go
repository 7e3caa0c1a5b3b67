package upstream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/propfeed/internal/core/domain"
)

func decodeItem(t *testing.T, s string) domain.RawItem {
	t.Helper()
	var w wireItem
	require.NoError(t, json.Unmarshal([]byte(s), &w))
	return w.toRaw()
}

func TestWireItem_CMSShape(t *testing.T) {
	raw := decodeItem(t, `{
		"sys": {"id": "sys-9876", "createdAt": "2024-03-01T10:00:00Z", "updatedAt": "2024-03-02T10:00:00Z",
		        "contentType": {"sys": {"id": "Content"}}},
		"fields": {"title": "Buying guide", "body": "Long text", "slug": "buying-guide",
		           "address": {"city": "Valencia", "country": "ES"},
		           "images": [{"sys": {"id": "a1"}}]}
	}`)

	assert.Equal(t, "sys-9876", raw.SystemID)
	assert.Equal(t, domain.KindContent, raw.Kind)
	assert.Nil(t, raw.Description)
	require.NotNil(t, raw.Body)
	assert.Equal(t, "Long text", *raw.Body)
	require.NotNil(t, raw.CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *raw.CreatedAt)
	require.NotNil(t, raw.Address)
	assert.Equal(t, "Valencia", *raw.Address.City)
	assert.Nil(t, raw.Address.Street)
	assert.Equal(t, []domain.ImageRef{{AssetID: "a1"}}, raw.ImageRefs)
}

func TestWireItem_FlatOperationAlias(t *testing.T) {
	raw := decodeItem(t, `{"id": "x1", "operation": "rent"}`)
	require.NotNil(t, raw.OperationType)
	assert.Equal(t, "rent", *raw.OperationType)

	raw = decodeItem(t, `{"id": "x1", "operationType": "sale", "operation": "rent"}`)
	assert.Equal(t, "sale", *raw.OperationType)
}

func TestWireItem_FieldsTakePrecedenceOverSys(t *testing.T) {
	raw := decodeItem(t, `{
		"sys": {"id": "s1", "updatedAt": "2024-01-01T00:00:00Z"},
		"fields": {"updatedAt": "2024-06-01", "kind": "property"}
	}`)
	require.NotNil(t, raw.UpdatedAt)
	assert.Equal(t, time.June, raw.UpdatedAt.Month())
	assert.Equal(t, domain.KindProperty, raw.Kind)
}

func TestWireItem_TolerantNumbers(t *testing.T) {
	raw := decodeItem(t, `{"id": 1, "price": "12,5", "area": "n/a", "rooms": "4", "bathrooms": null}`)
	require.NotNil(t, raw.Price)
	assert.Equal(t, 12.5, *raw.Price)
	assert.Nil(t, raw.Area)
	require.NotNil(t, raw.Rooms)
	assert.Equal(t, 4, *raw.Rooms)
	assert.Nil(t, raw.Bathrooms)
}

func TestWireItem_TolerantText(t *testing.T) {
	raw := decodeItem(t, `{"id": "x1", "title": 12345, "zone": 28001, "currency": true,
		"propertyType": {"name": "flat"}, "energyRating": "B",
		"address": {"street": "Gran Via 1", "postalCode": 28013}}`)

	require.NotNil(t, raw.Title)
	assert.Equal(t, "12345", *raw.Title)
	require.NotNil(t, raw.Zone)
	assert.Equal(t, "28001", *raw.Zone)
	assert.Nil(t, raw.Currency)
	assert.Nil(t, raw.PropertyType)
	require.NotNil(t, raw.EnergyRating)
	assert.Equal(t, "B", *raw.EnergyRating)

	require.NotNil(t, raw.Address)
	assert.Equal(t, "Gran Via 1", *raw.Address.Street)
	require.NotNil(t, raw.Address.PostalCode)
	assert.Equal(t, "28013", *raw.Address.PostalCode)
}

func TestListingResponse_OneOddItemKeepsPage(t *testing.T) {
	var resp listingResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [{"id": "good-1", "title": "ok"}, {"id": "bad-2", "title": 12345}],
		"total": "2", "page": 1, "pageSize": "20", "totalPages": null
	}`), &resp))

	page := resp.toPage()
	require.Len(t, page.Items, 2)
	assert.Equal(t, "ok", *page.Items[0].Title)
	assert.Equal(t, "12345", *page.Items[1].Title)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Zero(t, page.TotalPages)
}

func TestDecodeActive(t *testing.T) {
	tests := []struct {
		in   string
		want *bool
	}{
		{`false`, boolPtr(false)},
		{`true`, boolPtr(true)},
		{` false `, boolPtr(false)},
		{`"false"`, nil},
		{`0`, nil},
		{`null`, nil},
		{``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeActive(json.RawMessage(tt.in)))
		})
	}
}

func TestDecodeAddress(t *testing.T) {
	assert.Nil(t, decodeAddress(nil))
	assert.Nil(t, decodeAddress(json.RawMessage(`null`)))
	assert.Nil(t, decodeAddress(json.RawMessage(`"  "`)))
	assert.Nil(t, decodeAddress(json.RawMessage(`42`)))

	a := decodeAddress(json.RawMessage(`" Gran Via 1 "`))
	require.NotNil(t, a)
	assert.Equal(t, "Gran Via 1", *a.Formatted)
}

func TestParseTime(t *testing.T) {
	assert.Nil(t, parseTime(nil))
	assert.Nil(t, parseTime(strPtr("")))
	assert.Nil(t, parseTime(strPtr("yesterday")))

	got := parseTime(strPtr("2024-05-06T07:08:09+02:00"))
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 5, 6, 5, 8, 9, 0, time.UTC), *got)

	got = parseTime(strPtr("2024-05-06"))
	require.NotNil(t, got)
	assert.Equal(t, 6, got.Day())
}

func TestListingResponse_CMSIncludes(t *testing.T) {
	var resp listingResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [],
		"includes": {"Asset": [{"sys": {"id": "a9"}, "fields": {"file": {"url": "//x/a9.png"}}}]}
	}`), &resp))

	page := resp.toPage()
	_, ok := page.Includes.Lookup("a9")
	assert.True(t, ok)
}

func TestListingResponse_NoIncludes(t *testing.T) {
	var resp listingResponse
	require.NoError(t, json.Unmarshal([]byte(`{"items": [{"id": "1"}]}`), &resp))

	page := resp.toPage()
	assert.Nil(t, page.Includes)
	assert.Len(t, page.Items, 1)
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
