// Package cache implements a semantic response cache: lookups match on
// embedding similarity rather than exact query text, so rephrasings of
// an already-answered question skip the whole pipeline.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caseflow-ai/caseflow/internal/embed"
)

const (
	// DefaultSimilarityThreshold is the cosine similarity at or above
	// which a cached response is served.
	DefaultSimilarityThreshold = 0.90

	// DefaultRefreshThreshold is the similarity at or above which a Put
	// refreshes the existing entry instead of adding a near-duplicate.
	DefaultRefreshThreshold = 0.98

	// DefaultTTL bounds how long a cached response stays servable.
	DefaultTTL = time.Hour

	// DefaultMaxEntries bounds the cache size.
	DefaultMaxEntries = 10000

	// DefaultEvictBatch is how many of the oldest entries one eviction
	// removes, so Put doesn't evict on every call at capacity.
	DefaultEvictBatch = 100
)

// Entry is a cached query/response pair. Entries are immutable once
// published except for the hit counter; refreshes replace the entry in
// a new snapshot.
type Entry struct {
	Query     string
	Response  string
	Metadata  map[string]string
	Embedding []float32 // unit-normalized
	CreatedAt time.Time

	hits atomic.Uint64
}

// HitCount returns how many times this entry has been served.
func (e *Entry) HitCount() uint64 {
	return e.hits.Load()
}

// Options configures the cache. Zero values take the defaults above.
type Options struct {
	SimilarityThreshold float64
	RefreshThreshold    float64
	TTL                 time.Duration
	MaxEntries          int
	EvictBatch          int

	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// SemanticCache matches queries by embedding similarity. Reads scan an
// immutable snapshot behind an atomic pointer and never block on
// writers; writers serialize on a mutex and publish rebuilt snapshots.
type SemanticCache struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex // guards writes and the canonical entries slice
	entries []*Entry

	snapshot atomic.Pointer[[]*Entry]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a semantic cache.
func New(opts Options) *SemanticCache {
	if opts.SimilarityThreshold == 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if opts.RefreshThreshold == 0 {
		opts.RefreshThreshold = DefaultRefreshThreshold
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries == 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.EvictBatch == 0 {
		opts.EvictBatch = DefaultEvictBatch
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &SemanticCache{opts: opts, now: now}
	empty := make([]*Entry, 0)
	c.snapshot.Store(&empty)
	return c
}

// Get returns the cached response most similar to the query embedding
// and the match similarity, if any live entry meets the similarity
// threshold. A hit increments the entry's counter. Expired entries are
// skipped; they are physically removed on the next Put.
func (c *SemanticCache) Get(ctx context.Context, queryEmbedding []float32) (*Entry, float64, bool) {
	query := embed.Normalize(queryEmbedding)
	now := c.now()

	var (
		best    *Entry
		bestSim float64
	)
	for _, e := range *c.snapshot.Load() {
		if now.Sub(e.CreatedAt) >= c.opts.TTL {
			continue
		}
		sim := embed.Cosine(query, e.Embedding)
		if sim > bestSim {
			best = e
			bestSim = sim
		}
	}

	if best == nil || bestSim < c.opts.SimilarityThreshold {
		c.misses.Add(1)
		return nil, 0, false
	}

	best.hits.Add(1)
	c.hits.Add(1)
	return best, bestSim, true
}

// Put stores a response. If an existing live entry is nearly identical
// (similarity at or above the refresh threshold), it is refreshed with
// the new response, metadata, and timestamp instead of adding a
// duplicate; the entry's hit counter survives the refresh. At capacity,
// the oldest entries are evicted in a batch.
func (c *SemanticCache) Put(ctx context.Context, query, response string, metadata map[string]string, queryEmbedding []float32) {
	entry := &Entry{
		Query:     query,
		Response:  response,
		Metadata:  metadata,
		Embedding: embed.Normalize(queryEmbedding),
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropExpiredLocked()

	refreshed := false
	for i, e := range c.entries {
		if embed.Cosine(entry.Embedding, e.Embedding) >= c.opts.RefreshThreshold {
			entry.hits.Store(e.hits.Load())
			c.entries[i] = entry
			refreshed = true
			break
		}
	}
	if !refreshed {
		c.entries = append(c.entries, entry)
		if len(c.entries) > c.opts.MaxEntries {
			c.evictOldestLocked()
		}
	}

	c.publishLocked()
}

// dropExpiredLocked removes entries past their TTL.
func (c *SemanticCache) dropExpiredLocked() {
	now := c.now()
	live := c.entries[:0]
	for _, e := range c.entries {
		if now.Sub(e.CreatedAt) < c.opts.TTL {
			live = append(live, e)
		}
	}
	c.entries = live
}

// evictOldestLocked removes the EvictBatch oldest entries by creation
// time. Entries are appended in time order under the write lock, with
// refreshes as the only out-of-order writes, so a sort keeps this
// simple and rare.
func (c *SemanticCache) evictOldestLocked() {
	sortEntriesByAge(c.entries)
	n := c.opts.EvictBatch
	if n > len(c.entries) {
		n = len(c.entries)
	}
	c.entries = c.entries[n:]
	c.evictions.Add(uint64(n))
}

// publishLocked snapshots the canonical slice for lock-free readers.
func (c *SemanticCache) publishLocked() {
	snap := make([]*Entry, len(c.entries))
	copy(snap, c.entries)
	c.snapshot.Store(&snap)
}

// Len returns the number of entries, including any not yet expired-swept.
func (c *SemanticCache) Len() int {
	return len(*c.snapshot.Load())
}

// Stats returns cache counters.
func (c *SemanticCache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Clear empties the cache. Counters are kept.
func (c *SemanticCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.publishLocked()
}

func sortEntriesByAge(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
