// Package memory provides an in-process implementation of driven.CacheStore.
package memory

import (
	"container/list"
	"math/rand"
	"sync"
	"time"

	"github.com/custodia-labs/propfeed/internal/core/ports/driven"
	"github.com/custodia-labs/propfeed/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.CacheStore = (*Store)(nil)

const (
	// DefaultCapacity is the entry limit when none is configured.
	DefaultCapacity = 100

	// DefaultSweepProbability is the chance a Get also sweeps expired entries.
	DefaultSweepProbability = 0.1
)

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// Store is a bounded TTL cache. When full, inserting a new key evicts
// the oldest inserted entry. Reads do not affect eviction order.
type Store struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element

	sweepProbability float64
	now              func() time.Time
	random           func() float64
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithSweepProbability sets the chance in [0,1] that Get sweeps expired entries.
func WithSweepProbability(p float64) Option {
	return func(s *Store) {
		if p >= 0 && p <= 1 {
			s.sweepProbability = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandom overrides the random source used for sweeps.
// The function must return values in [0,1).
func WithRandom(random func() float64) Option {
	return func(s *Store) {
		if random != nil {
			s.random = random
		}
	}
}

// NewStore creates an empty cache store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		capacity:         DefaultCapacity,
		order:            list.New(),
		items:            make(map[string]*list.Element),
		sweepProbability: DefaultSweepProbability,
		now:              time.Now,
		random:           rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key if present and not expired.
// An expired entry is removed before reporting a miss.
func (s *Store) Get(key string) (val any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("cache get %q recovered: %v", key, r)
			val, ok = nil, false
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.sweepProbability > 0 && s.random() < s.sweepProbability {
		s.sweepLocked(now)
	}

	el, found := s.items[key]
	if !found {
		return nil, false
	}
	e := el.Value.(*entry)
	if now.After(e.expiresAt) {
		s.removeLocked(el)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given ttl.
func (s *Store) Set(key string, value any, ttl time.Duration) (ok bool) {
	if key == "" || value == nil || ttl <= 0 {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("cache set %q recovered: %v", key, r)
			ok = false
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.now().Add(ttl)

	if el, found := s.items[key]; found {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = expiresAt
		s.order.MoveToBack(el)
		return true
	}

	if s.order.Len() >= s.capacity {
		if oldest := s.order.Front(); oldest != nil {
			logger.Debug("cache evicting %q", oldest.Value.(*entry).key)
			s.removeLocked(oldest)
		}
	}

	s.items[key] = s.order.PushBack(&entry{key: key, value: value, expiresAt: expiresAt})
	return true
}

// Delete removes key if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, found := s.items[key]; found {
		s.removeLocked(el)
	}
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.items = make(map[string]*list.Element)
}

// Stats returns the current size, capacity and keys in insertion order.
func (s *Store) Stats() driven.CacheStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return driven.CacheStats{
		Size:     s.order.Len(),
		Capacity: s.capacity,
		Keys:     keys,
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*entry).expiresAt) {
			s.removeLocked(el)
			removed++
		}
		el = next
	}
	return removed
}

func (s *Store) removeLocked(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*entry).key)
}
