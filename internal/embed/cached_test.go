package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder tracks how many texts the inner embedder actually computed.
type countingEmbedder struct {
	inner Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func TestCachedEmbedder_AvoidsRecompute(t *testing.T) {
	counting := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counting, 10)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "refunds take 5 business days")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "refunds take 5 business days")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), counting.calls.Load())
}

func TestCachedEmbedder_BatchComputesOnlyMisses(t *testing.T) {
	counting := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(counting, 10)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, StaticDimensions)
	}

	// alpha was cached, only beta and gamma computed.
	assert.Equal(t, int64(3), counting.calls.Load())
	assert.Equal(t, 3, cached.Len())
}

func TestCachedEmbedder_EmptyBatch(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 10)
	vecs, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestCachedEmbedder_PassesThroughMetadata(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), 0)
	assert.Equal(t, StaticDimensions, cached.Dimensions())
	assert.Equal(t, "static-256", cached.ModelName())
}
