package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint(100, "hola", "")
	assert.Equal(t, a, Fingerprint(100, "hola", ""), "stable")
	assert.NotEqual(t, a, Fingerprint(100, "hola", "ctx"))
	assert.NotEqual(t, Fingerprint(0, "ab", "c"), Fingerprint(0, "a", "bc"))

	long := strings.Repeat("á", 100)
	assert.Equal(t,
		Fingerprint(100, long+" tail one"),
		Fingerprint(100, long+" tail two"),
		"only the first 100 runes count")
	assert.NotEqual(t,
		Fingerprint(0, long+" tail one"),
		Fingerprint(0, long+" tail two"))

	assert.Len(t, String(a), 32)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "últ", truncateRunes("últimos", 3))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}

func TestCache_GetPut(t *testing.T) {
	c := New[string](10, time.Minute)
	k := Fingerprint(0, "key")

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Put(k, "value")
	v, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, "value", v)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, time.Minute, stats.TTL)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Inserts)
	assert.InDelta(t, 50, stats.HitRate(), 0.001)

	c.Remove(k)
	_, ok = c.Get(k)
	assert.False(t, ok)
}

func TestCache_EvictsOldestFirst(t *testing.T) {
	c := New[int](3, time.Minute)
	keys := make([]Key, 4)
	for i := range keys {
		keys[i] = Fingerprint(0, fmt.Sprint(i))
	}

	c.Put(keys[0], 0)
	c.Put(keys[1], 1)
	c.Put(keys[2], 2)

	// Reads do not refresh recency.
	_, ok := c.Get(keys[0])
	require.True(t, ok)

	c.Put(keys[3], 3)
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get(keys[0])
	assert.False(t, ok, "oldest insertion is evicted")
	for _, k := range keys[1:] {
		_, ok := c.Get(k)
		assert.True(t, ok)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string](10, 50*time.Millisecond)
	k := Fingerprint(0, "short-lived")
	c.Put(k, "v")

	_, ok := c.Get(k)
	require.True(t, ok)

	time.Sleep(120 * time.Millisecond)
	_, ok = c.Get(k)
	assert.False(t, ok, "expired entries are never returned")
}

func TestCache_Defaults(t *testing.T) {
	c := New[string](0, 0)
	stats := c.Stats()
	assert.Equal(t, DefaultCapacity, stats.Capacity)
	assert.Equal(t, DefaultTTL, stats.TTL)
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := Fingerprint(0, fmt.Sprint(i*1000+j))
				c.Put(k, j)
				c.Get(k)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
