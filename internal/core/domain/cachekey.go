package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SnapshotOperation is the cache operation name for published snapshots.
const SnapshotOperation = "listings.snapshot"

// BuildCacheKey derives a cache key from an operation name and a parameter set.
//
// The operation is Go-quoted and the parameters are serialised as a JSON
// object with sorted keys, joined by ':'. A quoted operation never contains
// an unescaped '"', so the boundary between the two parts is unambiguous
// and distinct operations cannot collide.
//
// Parameters are keyed by their JSON value, not their Go type: int(1) and
// float64(1) serialise alike and give the same key. Callers that need the
// type to matter must encode it in the value.
func BuildCacheKey(operation string, params map[string]any) string {
	return strconv.Quote(operation) + ":" + serialiseParams(params)
}

// SnapshotKey returns the well-known aggregate key for a listing query.
func SnapshotKey(q ListingQuery) string {
	return BuildCacheKey(SnapshotOperation, map[string]any{
		"feed":     q.Feed,
		"status":   q.Status,
		"page":     q.Page,
		"pageSize": q.PageSize,
	})
}

// serialiseParams encodes params canonically. encoding/json sorts map keys.
func serialiseParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	if data, err := json.Marshal(params); err == nil {
		return string(data)
	}

	// Values json cannot encode (channels, funcs, NaN) fall back to %v.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.Quote(k))
		sb.WriteString("=")
		sb.WriteString(strconv.Quote(fmt.Sprintf("%v", params[k])))
	}
	sb.WriteString("}")
	return sb.String()
}
