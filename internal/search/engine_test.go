package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-ai/caseflow/internal/embed"
	"github.com/caseflow-ai/caseflow/internal/store"
)

type engineFixture struct {
	engine *Engine
	sparse *store.BleveBM25Index
	dense  *store.HNSWStore
	meta   *store.SQLiteMetadataStore
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()

	sparse, err := store.NewBleveBM25Index("", store.BM25Config{})
	require.NoError(t, err)

	dense, err := store.NewHNSWStore(store.HNSWConfig{Dimensions: embed.StaticDimensions})
	require.NoError(t, err)

	meta, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()
	engine := NewEngine(sparse, dense, meta, embedder, opts...)
	t.Cleanup(func() { engine.Close() })

	return &engineFixture{engine: engine, sparse: sparse, dense: dense, meta: meta}
}

func supportChunk(id, content, namespace string) *store.Chunk {
	meta := map[string]string{}
	if namespace != "" {
		meta["namespace"] = namespace
	}
	return &store.Chunk{ID: id, DocID: "doc-" + id, Content: content, Metadata: meta}
}

func seedKnowledgeBase(t *testing.T, f *engineFixture) {
	t.Helper()
	children := []*store.Chunk{
		supportChunk("c1", "To reset your password, open account settings and choose security.", ""),
		supportChunk("c2", "Refunds are processed within five business days of approval.", ""),
		supportChunk("c3", "Invoices can be downloaded from the billing history page.", ""),
		supportChunk("c4", "Two factor authentication protects your account after password changes.", ""),
	}
	require.NoError(t, f.engine.Index(context.Background(), nil, children))
}

func TestEngine_SearchFindsRelevantChunk(t *testing.T) {
	f := newEngineFixture(t)
	seedKnowledgeBase(t, f)

	results, err := f.engine.Search(context.Background(), "how do I reset my password", Options{TopK: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Contains(t, results[0].Content, "reset your password")
	assert.Equal(t, SourceFused, results[0].Source)
	assert.Greater(t, results[0].FusedScore, 0.0)
}

func TestEngine_SearchDeterministic(t *testing.T) {
	f := newEngineFixture(t)
	seedKnowledgeBase(t, f)
	ctx := context.Background()

	baseline, err := f.engine.Search(ctx, "refund processing time", Options{TopK: 4})
	require.NoError(t, err)
	require.NotEmpty(t, baseline)

	for i := 0; i < 5; i++ {
		again, err := f.engine.Search(ctx, "refund processing time", Options{TopK: 4})
		require.NoError(t, err)
		require.Len(t, again, len(baseline))
		for j := range baseline {
			assert.Equal(t, baseline[j].ChunkID, again[j].ChunkID)
			assert.Equal(t, baseline[j].FusedScore, again[j].FusedScore)
		}
	}
}

func TestEngine_NamespaceIsolation(t *testing.T) {
	f := newEngineFixture(t)
	children := []*store.Chunk{
		supportChunk("acme-1", "Acme shipping takes three days by ground.", "acme"),
		supportChunk("globex-1", "Globex shipping takes seven days by sea.", "globex"),
	}
	require.NoError(t, f.engine.Index(context.Background(), nil, children))

	results, err := f.engine.Search(context.Background(), "shipping time", Options{TopK: 5, Namespace: "acme"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "acme-1", r.ChunkID)
	}
}

func TestEngine_RerankerChangesSource(t *testing.T) {
	f := newEngineFixture(t, WithTopK(2), WithReranker(NewReranker(LexicalScorer{}, 2, nil)))
	seedKnowledgeBase(t, f)

	results, err := f.engine.Search(context.Background(), "download invoice billing", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 2)
	assert.Equal(t, SourceReranked, results[0].Source)
	assert.Equal(t, "c3", results[0].ChunkID)
}

func TestEngine_EmptyQueryReturnsEmpty(t *testing.T) {
	f := newEngineFixture(t)
	seedKnowledgeBase(t, f)

	results, err := f.engine.Search(context.Background(), "", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_EmptyIndexReturnsEmpty(t *testing.T) {
	f := newEngineFixture(t)

	results, err := f.engine.Search(context.Background(), "anything at all", Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedder offline")
}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedder offline")
}

func (failingEmbedder) Dimensions() int   { return embed.StaticDimensions }
func (failingEmbedder) ModelName() string { return "failing" }

func TestEngine_DenseFailureDegradesToSparse(t *testing.T) {
	f := newEngineFixture(t)
	seedKnowledgeBase(t, f)

	// Same stores, but query embedding always fails.
	degraded := NewEngine(f.sparse, f.dense, f.meta, failingEmbedder{})

	results, err := degraded.Search(context.Background(), "reset password settings", Options{TopK: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Greater(t, results[0].SparseScore, 0.0)
	assert.Zero(t, results[0].DenseScore)
}

func TestEngine_MultiVariantFusion(t *testing.T) {
	gen := &scriptedGenerator{outputs: map[string]string{
		"Rewrite": "password reset steps\nchange account password",
	}}
	f := newEngineFixture(t, WithEnhancer(NewEnhancer(gen, nil)))
	seedKnowledgeBase(t, f)

	results, err := f.engine.Search(context.Background(), "reset my password", Options{TopK: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestEngine_StatsAndDelete(t *testing.T) {
	f := newEngineFixture(t)
	seedKnowledgeBase(t, f)
	ctx := context.Background()

	stats := f.engine.Stats(ctx)
	assert.Equal(t, uint64(4), stats.SparseDocs)
	assert.Equal(t, 4, stats.DenseDocs)
	assert.Equal(t, 4, stats.Chunks)

	require.NoError(t, f.engine.Delete(ctx, []string{"c1", "c2"}))

	stats = f.engine.Stats(ctx)
	assert.Equal(t, uint64(2), stats.SparseDocs)
	assert.Equal(t, 2, stats.DenseDocs)
}

func TestEngine_DepthScalesWithComplexity(t *testing.T) {
	f := newEngineFixture(t, WithSourceDepth(2))
	ctx := context.Background()

	var children []*store.Chunk
	for i := 0; i < 8; i++ {
		children = append(children, supportChunk(
			fmt.Sprintf("c%d", i),
			fmt.Sprintf("Warranty claims article number %d covers repairs and replacements.", i),
			""))
	}
	require.NoError(t, f.engine.Index(ctx, nil, children))

	shallow, err := f.engine.Search(ctx, "warranty claims repairs", Options{TopK: 8, Complexity: ComplexitySimple})
	require.NoError(t, err)

	deep, err := f.engine.Search(ctx, "warranty claims repairs", Options{TopK: 8, Complexity: ComplexitySpecialized})
	require.NoError(t, err)

	// Specialized search fetches 4x the depth of simple, so it can
	// surface more of the corpus.
	assert.GreaterOrEqual(t, len(deep), len(shallow))
}

func TestEngine_FinalCountScalesWithComplexity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	var children []*store.Chunk
	for i := 0; i < 8; i++ {
		children = append(children, supportChunk(
			fmt.Sprintf("c%d", i),
			fmt.Sprintf("Warranty claims article number %d covers repairs and replacements.", i),
			""))
	}
	require.NoError(t, f.engine.Index(ctx, nil, children))

	shallow, err := f.engine.Search(ctx, "warranty claims repairs", Options{TopK: 4, Complexity: ComplexitySimple})
	require.NoError(t, err)

	deep, err := f.engine.Search(ctx, "warranty claims repairs", Options{TopK: 4, Complexity: ComplexitySpecialized})
	require.NoError(t, err)

	// The same requested count returns half the results for a simple
	// query and double for a specialized one.
	assert.Len(t, shallow, 2)
	assert.Greater(t, len(deep), 4)
}
