// Package cache provides the bounded, TTL-expiring cache used for
// classification results and search responses.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zeebo/xxh3"
)

const (
	// DefaultCapacity is used when a non-positive capacity is requested.
	DefaultCapacity = 1000

	// DefaultTTL is used when a non-positive TTL is requested.
	DefaultTTL = time.Hour
)

// Key is a 128-bit content fingerprint.
type Key = xxh3.Uint128

// Fingerprint hashes parts into a Key. Each part is cut to its first limit
// runes before hashing; a limit of zero keeps parts whole. Parts are
// length-prefixed so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(limit int, parts ...string) Key {
	h := xxh3.New()
	for _, p := range parts {
		p = truncateRunes(p, limit)
		fmt.Fprintf(h, "%d:", len(p))
		h.WriteString(p)
	}
	return h.Sum128()
}

// String renders a key as 32 hex digits.
func String(k Key) string {
	return fmt.Sprintf("%016x%016x", k.Hi, k.Lo)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// Stats is a point-in-time view of a cache.
type Stats struct {
	Size     int           `json:"size"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
	Hits     int64         `json:"hits"`
	Misses   int64         `json:"misses"`
	Inserts  int64         `json:"inserts"`
}

// HitRate returns hits as a percentage of lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cache is a thread-safe LRU with per-entry expiry. Lookups do not refresh
// recency, so capacity overflow evicts the oldest insertion first.
type Cache[V any] struct {
	lru      *expirable.LRU[Key, V]
	capacity int
	ttl      time.Duration

	hits    atomic.Int64
	misses  atomic.Int64
	inserts atomic.Int64
}

// New creates a cache holding at most capacity entries for ttl each.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		lru:      expirable.NewLRU[Key, V](capacity, nil, ttl),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns a live entry. Expired entries are never returned.
func (c *Cache[V]) Get(k Key) (V, bool) {
	v, ok := c.lru.Peek(k)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores v under k, replacing any previous value and restarting its TTL.
func (c *Cache[V]) Put(k Key, v V) {
	c.lru.Add(k, v)
	c.inserts.Add(1)
}

// Remove deletes k.
func (c *Cache[V]) Remove(k Key) {
	c.lru.Remove(k)
}

// Len returns the number of entries, including ones that expired but have
// not been swept yet.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Stats returns current counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Size:     c.lru.Len(),
		Capacity: c.capacity,
		TTL:      c.ttl,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Inserts:  c.inserts.Load(),
	}
}
