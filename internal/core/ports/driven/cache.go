package driven

import "time"

// CacheStore is a volatile key/value store with per-entry expiry and
// bounded capacity. Implementations must be safe for concurrent use.
type CacheStore interface {
	// Get returns the value for key. Expired entries are never returned.
	Get(key string) (any, bool)

	// Set stores value under key for ttl. Returns false if the entry
	// was rejected (empty key, nil value, non-positive ttl).
	Set(key string, value any, ttl time.Duration) bool

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key string)

	// Clear removes every entry.
	Clear()

	// Stats returns a point-in-time snapshot of the store.
	Stats() CacheStats
}

// CacheStats is a snapshot of cache occupancy.
type CacheStats struct {
	Size     int      `json:"size"`
	Capacity int      `json:"capacity"`
	Keys     []string `json:"keys"`
}
