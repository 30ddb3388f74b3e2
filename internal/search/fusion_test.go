package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sparseHit(id string, score float64) *Result {
	return &Result{ChunkID: id, Score: score, Source: SourceSparse, SparseScore: score}
}

func denseHit(id string, score float64) *Result {
	return &Result{ChunkID: id, Score: score, Source: SourceDense, DenseScore: score}
}

func TestRRFFusion_TopRankEverywhere(t *testing.T) {
	// Given a passage ranked first in all three lists
	f := NewRRFFusion(60)
	lists := [][]*Result{
		{sparseHit("winner", 1.0), sparseHit("other1", 0.5)},
		{denseHit("winner", 0.9), denseHit("other2", 0.4)},
		{denseHit("winner", 0.8), denseHit("other3", 0.3)},
	}

	fused := f.Fuse(lists...)

	// Then it scores exactly N/(k+1)
	require.NotEmpty(t, fused)
	assert.Equal(t, "winner", fused[0].ChunkID)
	assert.InEpsilon(t, 3.0/61.0, fused[0].FusedScore, 1e-12)
}

func TestRRFFusion_DeduplicatesAcrossLists(t *testing.T) {
	f := NewRRFFusion(60)

	fused := f.Fuse(
		[]*Result{sparseHit("a", 0.8), sparseHit("b", 0.6)},
		[]*Result{denseHit("b", 0.9), denseHit("c", 0.7)},
	)

	require.Len(t, fused, 3)

	seen := make(map[string]int)
	for _, r := range fused {
		seen[r.ChunkID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "chunk %s appears %d times", id, count)
	}

	// Per-stage scores survive the merge
	for _, r := range fused {
		if r.ChunkID == "b" {
			assert.InDelta(t, 0.6, r.SparseScore, 1e-9)
			assert.InDelta(t, 0.9, r.DenseScore, 1e-9)
		}
	}
}

func TestRRFFusion_SharedRankSumsContributions(t *testing.T) {
	f := NewRRFFusion(60)

	fused := f.Fuse(
		[]*Result{sparseHit("both", 1.0)},
		[]*Result{denseHit("both", 1.0), denseHit("solo", 0.5)},
	)

	require.Len(t, fused, 2)
	assert.Equal(t, "both", fused[0].ChunkID)
	assert.InEpsilon(t, 2.0/61.0, fused[0].FusedScore, 1e-12)
	assert.InEpsilon(t, 1.0/62.0, fused[1].FusedScore, 1e-12)
}

func TestRRFFusion_TiesKeepFirstSeenOrder(t *testing.T) {
	f := NewRRFFusion(60)

	// Two chunks with identical fused contributions
	fused := f.Fuse(
		[]*Result{sparseHit("first", 0.9)},
		[]*Result{denseHit("second", 0.9)},
	)

	require.Len(t, fused, 2)
	assert.InDelta(t, fused[0].FusedScore, fused[1].FusedScore, 1e-12)
	assert.Equal(t, "first", fused[0].ChunkID)
	assert.Equal(t, "second", fused[1].ChunkID)
}

func TestRRFFusion_Deterministic(t *testing.T) {
	f := NewRRFFusion(60)
	lists := [][]*Result{
		{sparseHit("a", 0.9), sparseHit("b", 0.8), sparseHit("c", 0.7)},
		{denseHit("c", 0.95), denseHit("a", 0.85), denseHit("d", 0.75)},
	}

	baseline := f.Fuse(lists...)
	for i := 0; i < 10; i++ {
		again := f.Fuse(lists...)
		require.Len(t, again, len(baseline))
		for j := range baseline {
			assert.Equal(t, baseline[j].ChunkID, again[j].ChunkID)
			assert.Equal(t, baseline[j].FusedScore, again[j].FusedScore)
		}
	}
}

func TestRRFFusion_ContentHashFallback(t *testing.T) {
	f := NewRRFFusion(60)

	// No chunk IDs, identical content: must dedupe on content prefix.
	a := &Result{Content: "the same passage text", Source: SourceSparse}
	b := &Result{Content: "the same passage text", Source: SourceDense}

	fused := f.Fuse([]*Result{a}, []*Result{b})
	assert.Len(t, fused, 1)
}

func TestRRFFusion_EmptyInput(t *testing.T) {
	f := NewRRFFusion(60)

	fused := f.Fuse()
	require.NotNil(t, fused)
	assert.Empty(t, fused)

	fused = f.Fuse([]*Result{}, []*Result{})
	require.NotNil(t, fused)
	assert.Empty(t, fused)
}

func TestRRFFusion_DuplicateKeepsHighestScoredContent(t *testing.T) {
	f := NewRRFFusion(60)

	low := sparseHit("b", 0.3)
	low.Content = "stale copy"
	low.Metadata = map[string]string{"rev": "1"}
	high := denseHit("b", 0.9)
	high.Content = "fresh copy"
	high.Metadata = map[string]string{"rev": "2"}

	fused := f.Fuse([]*Result{low}, []*Result{high})

	require.Len(t, fused, 1)
	assert.Equal(t, "fresh copy", fused[0].Content)
	assert.Equal(t, "2", fused[0].Metadata["rev"])

	// Order of appearance does not matter, only the native score.
	fused = f.Fuse([]*Result{high}, []*Result{low})
	require.Len(t, fused, 1)
	assert.Equal(t, "fresh copy", fused[0].Content)
}

func TestRRFFusion_ScoreMatchesFusedScore(t *testing.T) {
	f := NewRRFFusion(60)

	fused := f.Fuse([]*Result{sparseHit("a", 0.9)})
	require.Len(t, fused, 1)
	assert.Equal(t, fused[0].FusedScore, fused[0].Score)
	assert.Equal(t, SourceFused, fused[0].Source)
}
