package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vecAt returns a 2D unit vector with the given cosine similarity to
// the base vector (1, 0).
func vecAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestSemanticCache_HitAboveThreshold(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "how do I reset my password", "Open settings and choose security.", nil, vecAt(1.0))

	entry, _, ok := c.Get(ctx, vecAt(0.95))
	require.True(t, ok)
	assert.Equal(t, "Open settings and choose security.", entry.Response)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
}

func TestSemanticCache_MissBelowThreshold(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "reset password", "answer", nil, vecAt(1.0))

	_, _, ok := c.Get(ctx, vecAt(0.85))
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Misses)
}

func TestSemanticCache_ThresholdBoundary(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "q", "a", nil, vecAt(1.0))

	// Just above the threshold hits, just below misses.
	_, _, ok := c.Get(ctx, vecAt(0.905))
	assert.True(t, ok)

	_, _, ok = c.Get(ctx, vecAt(0.895))
	assert.False(t, ok)
}

func TestSemanticCache_GetReportsSimilarity(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "q", "a", nil, vecAt(1.0))

	_, sim, ok := c.Get(ctx, vecAt(0.95))
	require.True(t, ok)
	assert.InDelta(t, 0.95, sim, 1e-6)
}

func TestSemanticCache_EntryHitCount(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "q", "a", nil, vecAt(1.0))

	for i := 0; i < 3; i++ {
		entry, _, ok := c.Get(ctx, vecAt(1.0))
		require.True(t, ok)
		assert.Equal(t, uint64(i+1), entry.HitCount())
	}
}

func TestSemanticCache_RefreshKeepsHitCountAndMetadata(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "reset password", "old answer", map[string]string{"intent": "question"}, vecAt(1.0))
	_, _, ok := c.Get(ctx, vecAt(1.0))
	require.True(t, ok)

	c.Put(ctx, "reset my password", "new answer", map[string]string{"intent": "question", "category": "account"}, vecAt(0.99))

	entry, _, ok := c.Get(ctx, vecAt(1.0))
	require.True(t, ok)
	assert.Equal(t, "new answer", entry.Response)
	assert.Equal(t, "account", entry.Metadata["category"])
	// One hit before the refresh, one after.
	assert.Equal(t, uint64(2), entry.HitCount())
}

func TestSemanticCache_TTLExpiry(t *testing.T) {
	t0 := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	now := t0
	c := New(Options{
		TTL: time.Hour,
		Now: func() time.Time { return now },
	})
	ctx := context.Background()

	c.Put(ctx, "q", "a", nil, vecAt(1.0))

	// One second before expiry: still served.
	now = t0.Add(time.Hour - time.Second)
	_, _, ok := c.Get(ctx, vecAt(1.0))
	assert.True(t, ok)

	// One second after expiry: gone.
	now = t0.Add(time.Hour + time.Second)
	_, _, ok = c.Get(ctx, vecAt(1.0))
	assert.False(t, ok)
}

func TestSemanticCache_ExpiredSweptOnPut(t *testing.T) {
	t0 := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	now := t0
	c := New(Options{
		TTL: time.Hour,
		Now: func() time.Time { return now },
	})
	ctx := context.Background()

	c.Put(ctx, "old", "a", nil, vecAt(1.0))
	assert.Equal(t, 1, c.Len())

	now = t0.Add(2 * time.Hour)
	c.Put(ctx, "new", "b", nil, []float32{0, 1})

	// The expired entry was physically removed by the write.
	assert.Equal(t, 1, c.Len())
}

func TestSemanticCache_NearDuplicateRefreshes(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "how to reset password", "old answer", nil, vecAt(1.0))
	c.Put(ctx, "how do i reset password", "new answer", nil, vecAt(0.99))

	assert.Equal(t, 1, c.Len())

	entry, _, ok := c.Get(ctx, vecAt(1.0))
	require.True(t, ok)
	assert.Equal(t, "new answer", entry.Response)
}

func TestSemanticCache_DistinctQueriesBothStored(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "password", "a", nil, []float32{1, 0})
	c.Put(ctx, "shipping", "b", nil, []float32{0, 1})

	assert.Equal(t, 2, c.Len())
}

func TestSemanticCache_BatchEviction(t *testing.T) {
	t0 := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	now := t0
	c := New(Options{
		MaxEntries: 5,
		EvictBatch: 2,
		Now:        func() time.Time { now = now.Add(time.Second); return now },
	})
	ctx := context.Background()

	// Six directions spread 30 degrees apart: pairwise similarity at
	// most cos(30°) ≈ 0.866, below both thresholds.
	for i := 0; i < 6; i++ {
		angle := float64(i) * math.Pi / 6
		vec := []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
		c.Put(ctx, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil, vec)
	}

	// Crossing capacity evicted the two oldest in one batch.
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, uint64(2), c.Stats().Evictions)

	// The first entry is gone.
	_, _, ok := c.Get(ctx, []float32{1, 0})
	assert.False(t, ok)

	// The newest entry is still there.
	angle := 5 * math.Pi / 6
	_, _, ok = c.Get(ctx, []float32{float32(math.Cos(angle)), float32(math.Sin(angle))})
	assert.True(t, ok)
}

func TestSemanticCache_Clear(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Put(ctx, "q", "a", nil, vecAt(1.0))
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, _, ok := c.Get(ctx, vecAt(1.0))
	assert.False(t, ok)
}

func TestSemanticCache_ConcurrentReadsAndWrites(t *testing.T) {
	c := New(Options{MaxEntries: 50, EvictBatch: 10})
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				angle := float64(w*100+i) * 0.1
				vec := []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
				c.Put(ctx, fmt.Sprintf("q-%d-%d", w, i), "a", nil, vec)
				c.Get(ctx, vec)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
