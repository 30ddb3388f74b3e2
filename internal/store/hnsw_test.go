package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T, dims int) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(HNSWConfig{Dimensions: dims})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHNSWStore_NearestNeighborFirst(t *testing.T) {
	s := newTestHNSW(t, 3)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []*VectorItem{
		{ID: "x-axis", Vector: []float32{1, 0, 0}},
		{ID: "y-axis", Vector: []float32{0, 1, 0}},
		{ID: "diagonal", Vector: []float32{1, 1, 0}},
	}))

	results, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 3, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "x-axis", results[0].ChunkID)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestHNSWStore_ScoreIsInverseDistance(t *testing.T) {
	s := newTestHNSW(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []*VectorItem{
		{ID: "same", Vector: []float32{3, 0}},
	}))

	// Identical direction: cosine distance 0, score 1
	results, err := s.Search(ctx, []float32{1, 0}, 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.0, float64(results[0].Distance), 1e-6)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestHNSW(t, 4)
	ctx := context.Background()

	err := s.Add(ctx, []*VectorItem{{ID: "bad", Vector: []float32{1, 2}}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = s.Search(ctx, []float32{1, 2, 3}, 5, "")
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWStore_EmptyIndexReturnsEmpty(t *testing.T) {
	s := newTestHNSW(t, 2)

	results, err := s.Search(context.Background(), []float32{1, 0}, 5, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_NamespaceFilter(t *testing.T) {
	s := newTestHNSW(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []*VectorItem{
		{ID: "acme-1", Vector: []float32{1, 0}, Namespace: "acme"},
		{ID: "globex-1", Vector: []float32{0.99, 0.01}, Namespace: "globex"},
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 5, "acme")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "acme-1", results[0].ChunkID)
}

func TestHNSWStore_DeleteHidesVector(t *testing.T) {
	s := newTestHNSW(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []*VectorItem{
		{ID: "keep", Vector: []float32{1, 0}},
		{ID: "drop", Vector: []float32{0, 1}},
	}))
	require.NoError(t, s.Delete(ctx, []string{"drop"}))

	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1}, 5, "")
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "drop", r.ChunkID)
	}
}

func TestHNSWStore_OverwriteUpdatesVector(t *testing.T) {
	s := newTestHNSW(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []*VectorItem{{ID: "v", Vector: []float32{1, 0}}}))
	require.NoError(t, s.Add(ctx, []*VectorItem{{ID: "v", Vector: []float32{0, 1}}}))

	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1}, 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v", results[0].ChunkID)
	assert.InDelta(t, 0.0, float64(results[0].Distance), 1e-6)
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	s := newTestHNSW(t, 3)
	require.NoError(t, s.Add(ctx, []*VectorItem{
		{ID: "a", Vector: []float32{1, 0, 0}, Namespace: "acme"},
		{ID: "b", Vector: []float32{0, 1, 0}},
	}))
	require.NoError(t, s.Save(path))

	loaded, err := NewHNSWStore(HNSWConfig{Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { loaded.Close() })
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())

	results, err := loaded.Search(ctx, []float32{1, 0, 0}, 1, "acme")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestNormalizeVectorInPlace(t *testing.T) {
	v := []float32{3, 4}
	normalizeVectorInPlace(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	// Zero vector stays zero
	z := []float32{0, 0}
	normalizeVectorInPlace(z)
	assert.Equal(t, []float32{0, 0}, z)
}
