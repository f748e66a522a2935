package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_HitAndMiss(t *testing.T) {
	t.Parallel()
	c := New[string, int](4)
	c.Insert("a", 1)

	v, found := c.Get("a")
	require.True(t, found)
	assert.Equal(t, 1, v)

	_, found = c.Get("b")
	assert.False(t, found)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Insertions)
}

func TestInsert_EvictsLeastRecentlyAccessed(t *testing.T) {
	t.Parallel()
	c := New[string, int](2)
	c.Insert("a", 1)
	c.Insert("b", 2)

	// Touch "a" so "b" becomes the eviction candidate.
	_, _ = c.Get("a")

	c.Insert("c", 3)

	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestCapacityNeverExceeded(t *testing.T) {
	t.Parallel()
	const capacity = 8
	c := New[int, int](capacity)
	for i := 0; i < 100; i++ {
		c.Insert(i, i)
		assert.LessOrEqual(t, c.Len(), capacity)
	}
}

func TestTTL_ExpiredEntryDroppedOnGet(t *testing.T) {
	t.Parallel()
	c := NewWithTTL[string, int](4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Insert("a", 1)

	now = now.Add(2 * time.Minute)
	_, found := c.Get("a")
	assert.False(t, found)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Expirations)
	assert.Equal(t, 0, stats.Size)
}

func TestTTL_ZeroMeansNoExpiry(t *testing.T) {
	t.Parallel()
	c := New[string, int](4)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.InsertTTL("a", 1, 0)
	now = now.Add(24 * time.Hour)

	_, found := c.Get("a")
	assert.True(t, found)
}

func TestStats_Accounting(t *testing.T) {
	t.Parallel()
	c := NewWithTTL[int, int](4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		c.Insert(i, i)
	}
	now = now.Add(2 * time.Minute)
	c.Insert(100, 100)

	// evictions = insertions - (current_size - expirations)? The useful
	// property: every inserted entry is accounted for as live, evicted,
	// or expired.
	stats := c.Stats()
	accounted := uint64(stats.Size) + stats.Evictions + stats.Expirations
	assert.Equal(t, stats.Insertions, accounted,
		"insertions (%d) must equal live (%d) + evicted (%d) + expired (%d)",
		stats.Insertions, stats.Size, stats.Evictions, stats.Expirations)
}

func TestRemoveAndClear(t *testing.T) {
	t.Parallel()
	c := New[string, int](4)
	c.Insert("a", 1)
	c.Insert("b", 2)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Contains("b"))
}

func TestGetOrInsert_FactoryOnMissOnly(t *testing.T) {
	t.Parallel()
	c := New[string, int](4)
	calls := 0
	factory := func() (int, error) {
		calls++
		return 7, nil
	}

	v, err := c.GetOrInsert("k", factory)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = c.GetOrInsert("k", factory)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrInsert_FactoryErrorNotCached(t *testing.T) {
	t.Parallel()
	c := New[string, int](4)
	boom := errors.New("boom")

	_, err := c.GetOrInsert("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Contains("k"))
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := New[int, int](32)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := (seed*31 + i) % 64
				c.Insert(k, i)
				_, _ = c.Get(k)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 32)
}
