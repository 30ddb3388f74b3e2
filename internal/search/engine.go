package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/caseflow-ai/caseflow/internal/embed"
	caseerrors "github.com/caseflow-ai/caseflow/internal/errors"
	"github.com/caseflow-ai/caseflow/internal/store"
)

// DefaultTopK is the number of results a search returns when the caller
// doesn't say otherwise.
const DefaultTopK = 5

// defaultSourceDepth is the per-source retrieval depth at standard
// complexity.
const defaultSourceDepth = 10

// Engine runs hybrid retrieval: sparse and dense searches in parallel,
// RRF fusion across sources and query variants, content enrichment from
// the metadata store, then optional reranking.
type Engine struct {
	sparse   store.SparseIndex
	dense    store.DenseIndex
	meta     store.MetadataStore
	embedder embed.Embedder

	fusion   *RRFFusion
	reranker *Reranker
	enhancer *Enhancer
	logger   *slog.Logger

	topK        int
	sourceDepth int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithReranker enables reranking of fused results.
func WithReranker(r *Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// WithEnhancer enables query reformulation and HyDE.
func WithEnhancer(en *Enhancer) EngineOption {
	return func(e *Engine) { e.enhancer = en }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTopK sets the default result count.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithSourceDepth sets the per-source retrieval depth at standard
// complexity.
func WithSourceDepth(depth int) EngineOption {
	return func(e *Engine) {
		if depth > 0 {
			e.sourceDepth = depth
		}
	}
}

// WithFusionConstant sets the RRF smoothing constant.
func WithFusionConstant(k int) EngineOption {
	return func(e *Engine) { e.fusion = NewRRFFusion(k) }
}

// NewEngine creates a hybrid search engine.
func NewEngine(sparse store.SparseIndex, dense store.DenseIndex, meta store.MetadataStore, embedder embed.Embedder, opts ...EngineOption) *Engine {
	e := &Engine{
		sparse:      sparse,
		dense:       dense,
		meta:        meta,
		embedder:    embedder,
		fusion:      NewRRFFusion(DefaultRRFConstant),
		logger:      slog.Default(),
		topK:        DefaultTopK,
		sourceDepth: defaultSourceDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index stores parents and children in the metadata store and indexes
// the children into both search indexes. Parents are never indexed;
// they only serve context expansion.
func (e *Engine) Index(ctx context.Context, parents, children []*store.Chunk) error {
	all := make([]*store.Chunk, 0, len(parents)+len(children))
	all = append(all, parents...)
	all = append(all, children...)
	if err := e.meta.SaveChunks(ctx, all); err != nil {
		return caseerrors.New(caseerrors.ErrCodeMetadataStore, "saving chunks", err)
	}

	if len(children) == 0 {
		return nil
	}

	docs := make([]*store.Document, len(children))
	texts := make([]string, len(children))
	for i, c := range children {
		docs[i] = &store.Document{
			ID:        c.ID,
			Content:   c.Content,
			Namespace: c.Metadata["namespace"],
		}
		texts[i] = c.Content
	}

	if err := e.sparse.Index(ctx, docs); err != nil {
		return caseerrors.New(caseerrors.ErrCodeIndexUnavailable, "indexing keywords", err)
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return caseerrors.New(caseerrors.ErrCodeEmbedFailed, "embedding chunks", err)
	}

	items := make([]*store.VectorItem, len(children))
	for i, c := range children {
		items[i] = &store.VectorItem{
			ID:        c.ID,
			Vector:    vectors[i],
			Namespace: c.Metadata["namespace"],
		}
	}
	if err := e.dense.Add(ctx, items); err != nil {
		return caseerrors.New(caseerrors.ErrCodeIndexUnavailable, "indexing vectors", err)
	}

	e.logger.Info("indexed_chunks",
		slog.Int("parents", len(parents)),
		slog.Int("children", len(children)))

	return nil
}

// Delete removes chunks from both indexes.
func (e *Engine) Delete(ctx context.Context, ids []string) error {
	if err := e.sparse.Delete(ctx, ids); err != nil {
		return caseerrors.New(caseerrors.ErrCodeIndexUnavailable, "deleting keywords", err)
	}
	if err := e.dense.Delete(ctx, ids); err != nil {
		return caseerrors.New(caseerrors.ErrCodeIndexUnavailable, "deleting vectors", err)
	}
	return nil
}

// Search runs the full retrieval pipeline for a query.
//
// Retrieval depth scales with complexity. If an enhancer is configured,
// each enhanced query text is searched independently and the per-variant
// fused lists are fused again, so passages that rank well for several
// phrasings rise. One failing source degrades to the other; both
// failing is an error.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	if query == "" {
		return []*Result{}, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.topK
	}
	complexity := opts.Complexity
	if complexity == "" {
		complexity = ComplexityStandard
	}

	// Complexity scales both how deep each source retrieves and how
	// many fused results the caller gets back.
	depth := int(math.Ceil(float64(e.sourceDepth) * complexity.DepthMultiplier()))
	if depth < 1 {
		depth = 1
	}
	topK = int(math.Ceil(float64(topK) * complexity.DepthMultiplier()))
	if topK < 1 {
		topK = 1
	}

	enhanced := &EnhancedQuery{Original: query}
	if e.enhancer != nil {
		enhanced = e.enhancer.Enhance(ctx, query, complexity)
	}

	queryTexts := enhanced.All()
	fusedLists := make([][]*Result, 0, len(queryTexts))
	var lastErr error
	for _, text := range queryTexts {
		fused, err := e.hybridSearch(ctx, text, depth, opts.Namespace)
		if err != nil {
			lastErr = err
			e.logger.Warn("variant_search_failed",
				slog.String("query", text),
				slog.String("error", err.Error()))
			continue
		}
		fusedLists = append(fusedLists, fused)
	}

	if len(fusedLists) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return []*Result{}, nil
	}

	var fused []*Result
	if len(fusedLists) == 1 {
		fused = fusedLists[0]
	} else {
		fused = e.fusion.Fuse(fusedLists...)
	}

	// Keep enough head for the reranker to choose from.
	head := topK
	if e.reranker != nil {
		head = topK * 2
	}
	fused = truncate(fused, head)

	results, err := e.enrich(ctx, fused)
	if err != nil {
		return nil, err
	}

	if e.reranker != nil {
		results = e.reranker.Rerank(ctx, query, results, topK)
	}
	return truncate(results, topK), nil
}

// hybridSearch runs sparse and dense retrieval in parallel for one query
// text and fuses the two ranked lists.
func (e *Engine) hybridSearch(ctx context.Context, query string, depth int, namespace string) ([]*Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		sparseResults []*store.SparseResult
		denseResults  []*store.DenseResult
		sparseErr     error
		denseErr      error
	)

	g.Go(func() error {
		sparseResults, sparseErr = e.sparse.Search(gctx, query, depth, namespace)
		// Partial failure is tolerated; the other source still counts.
		return nil
	})

	g.Go(func() error {
		vector, err := e.embedder.Embed(gctx, query)
		if err != nil {
			denseErr = caseerrors.New(caseerrors.ErrCodeEmbedFailed, "embedding query", err)
			return nil
		}
		denseResults, denseErr = e.dense.Search(gctx, vector, depth, namespace)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if sparseErr != nil && denseErr != nil {
		return nil, stderrors.Join(sparseErr, denseErr)
	}
	if sparseErr != nil {
		e.logger.Warn("sparse_search_failed", slog.String("error", sparseErr.Error()))
	}
	if denseErr != nil {
		e.logger.Warn("dense_search_failed", slog.String("error", denseErr.Error()))
	}

	sparseList := make([]*Result, len(sparseResults))
	for i, r := range sparseResults {
		sparseList[i] = &Result{
			ChunkID:      r.ChunkID,
			Score:        r.Score,
			Source:       SourceSparse,
			SparseScore:  r.Score,
			MatchedTerms: r.MatchedTerms,
		}
	}

	denseList := make([]*Result, len(denseResults))
	for i, r := range denseResults {
		denseList[i] = &Result{
			ChunkID:    r.ChunkID,
			Score:      r.Score,
			Source:     SourceDense,
			DenseScore: r.Score,
		}
	}

	return e.fusion.Fuse(sparseList, denseList), nil
}

// enrich fills result content and metadata from the metadata store.
// Results whose chunk has vanished are dropped with a warning; the
// indexes can briefly run ahead of the store during reindexing.
func (e *Engine) enrich(ctx context.Context, results []*Result) ([]*Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}

	chunks, err := e.meta.GetChunks(ctx, ids)
	if err != nil {
		return nil, caseerrors.New(caseerrors.ErrCodeMetadataStore, "enriching results", err)
	}

	byID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	enriched := make([]*Result, 0, len(results))
	for _, r := range results {
		chunk, ok := byID[r.ChunkID]
		if !ok {
			e.logger.Warn("chunk_missing_from_store", slog.String("chunk_id", r.ChunkID))
			continue
		}
		r.Content = chunk.Content
		r.Metadata = chunk.Metadata
		enriched = append(enriched, r)
	}
	return enriched, nil
}

// Stats reports index sizes.
type Stats struct {
	SparseDocs uint64
	DenseDocs  int
	Chunks     int
}

// Stats returns current index sizes. Errors from individual stores are
// reported as zero counts.
func (e *Engine) Stats(ctx context.Context) *Stats {
	s := &Stats{DenseDocs: e.dense.Count()}
	if n, err := e.sparse.DocCount(); err == nil {
		s.SparseDocs = n
	}
	if n, err := e.meta.CountChunks(ctx); err == nil {
		s.Chunks = n
	}
	return s
}

// Close closes the underlying stores.
func (e *Engine) Close() error {
	var errs []error
	if err := e.sparse.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sparse index: %w", err))
	}
	if err := e.dense.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dense index: %w", err))
	}
	if err := e.meta.Close(); err != nil {
		errs = append(errs, fmt.Errorf("metadata store: %w", err))
	}
	return stderrors.Join(errs...)
}
