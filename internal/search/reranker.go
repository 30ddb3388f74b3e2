package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"
)

// RelevanceScorer scores how well a passage answers a query. Scores are
// only compared against each other within one rerank pass, so any
// monotonic scale works.
type RelevanceScorer interface {
	ScoreRelevance(ctx context.Context, query, passage string) (float64, error)
}

// Reranker reorders the head of a fused result list using a relevance
// scorer. Fusion ranks by rank agreement between sources; the reranker
// looks at the actual text.
type Reranker struct {
	scorer RelevanceScorer
	topK   int
	logger *slog.Logger
}

// NewReranker creates a reranker returning topK results per pass.
func NewReranker(scorer RelevanceScorer, topK int, logger *slog.Logger) *Reranker {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{scorer: scorer, topK: topK, logger: logger}
}

// Rerank scores the top 2*limit fused candidates and returns the limit
// best by rerank score. A limit of zero or less falls back to the
// configured topK. Candidate sets that already fit in the limit are
// passed through in fused order. Scorer failures degrade gracefully:
// the fused order is kept and truncated, never an error to the caller.
func (r *Reranker) Rerank(ctx context.Context, query string, results []*Result, limit int) []*Result {
	if limit <= 0 {
		limit = r.topK
	}
	if len(results) <= limit {
		return results
	}

	candidates := results
	if len(candidates) > limit*2 {
		candidates = candidates[:limit*2]
	}

	for _, res := range candidates {
		score, err := r.scorer.ScoreRelevance(ctx, query, res.Content)
		if err != nil {
			r.logger.Warn("rerank_failed",
				slog.String("chunk_id", res.ChunkID),
				slog.String("error", err.Error()))
			return truncate(results, limit)
		}
		res.RerankScore = score
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RerankScore > candidates[j].RerankScore
	})

	reranked := truncate(candidates, limit)
	for _, res := range reranked {
		res.Score = res.RerankScore
		res.Source = SourceReranked
	}
	return reranked
}

func truncate(results []*Result, n int) []*Result {
	if len(results) > n {
		return results[:n]
	}
	return results
}

// LexicalScorer is a scorer built on query/passage term overlap with
// positional weighting. It is the offline fallback when no model-backed
// scorer is configured.
type LexicalScorer struct{}

// ScoreRelevance implements RelevanceScorer.
func (LexicalScorer) ScoreRelevance(ctx context.Context, query, passage string) (float64, error) {
	queryTerms := tokenizeLower(query)
	if len(queryTerms) == 0 {
		return 0, nil
	}

	passageTerms := tokenizeLower(passage)
	positions := make(map[string]int, len(passageTerms))
	for i, t := range passageTerms {
		if _, seen := positions[t]; !seen {
			positions[t] = i
		}
	}

	var score float64
	for _, qt := range queryTerms {
		pos, ok := positions[qt]
		if !ok {
			continue
		}
		// Matches earlier in the passage weigh slightly more.
		score += 1.0 + 0.5/float64(1+pos)
	}
	return score / float64(len(queryTerms)), nil
}

func tokenizeLower(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// Verify interface implementation
var _ RelevanceScorer = LexicalScorer{}
