// Package search provides hybrid retrieval for the support pipeline:
// BM25 keyword search and dense vector search run in parallel, their
// ranked lists are combined with Reciprocal Rank Fusion, and an optional
// reranker reorders the head of the fused list.
package search

// Source identifies which stage produced a result's current Score.
type Source string

const (
	SourceSparse   Source = "sparse"
	SourceDense    Source = "dense"
	SourceFused    Source = "fused"
	SourceReranked Source = "reranked"
)

// Result is a retrieval hit as it moves through the pipeline. Score is
// the score of the stage named by Source; the per-stage fields keep the
// earlier scores on their own scales, which are not comparable to each
// other.
type Result struct {
	ChunkID  string
	Content  string
	Metadata map[string]string
	Score    float64
	Source   Source

	SparseScore float64
	DenseScore  float64
	FusedScore  float64
	RerankScore float64

	MatchedTerms []string
}

// QueryComplexity drives adaptive retrieval depth and query enhancement.
type QueryComplexity string

const (
	ComplexitySimple      QueryComplexity = "simple"
	ComplexityStandard    QueryComplexity = "standard"
	ComplexityComplex     QueryComplexity = "complex"
	ComplexitySpecialized QueryComplexity = "specialized"
)

// DepthMultiplier scales the per-source retrieval depth for this
// complexity.
func (c QueryComplexity) DepthMultiplier() float64 {
	switch c {
	case ComplexitySimple:
		return 0.5
	case ComplexityComplex:
		return 1.5
	case ComplexitySpecialized:
		return 2.0
	default:
		return 1.0
	}
}

// Options controls a single search.
type Options struct {
	// TopK is the number of results to return. Zero means the engine
	// default.
	TopK int

	// Namespace restricts results to one tenant. Empty matches all.
	Namespace string

	// Complexity scales retrieval depth and enables query enhancement.
	// Empty means standard.
	Complexity QueryComplexity
}
