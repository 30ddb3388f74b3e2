package search

import (
	"hash/fnv"
	"sort"
	"strconv"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains.
const DefaultRRFConstant = 60

// contentKeyPrefix is how much content feeds the fallback dedup key for
// results without a chunk ID.
const contentKeyPrefix = 100

// RRFFusion combines any number of ranked result lists using Reciprocal
// Rank Fusion.
//
// Algorithm: fused(d) = Σ_lists 1 / (k + rank_d + 1)
//
// with rank 0-based within each list. A result appearing at rank 0 in
// every list scores exactly N/(k+1) for N lists. Lists a result is
// missing from contribute nothing.
type RRFFusion struct {
	K int // smoothing constant, default 60
}

// NewRRFFusion creates an RRF fusion instance. If k <= 0, defaults to 60.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges ranked lists into one list ordered by fused score.
//
// Duplicates are detected by chunk ID, falling back to a hash of the
// content prefix when a result carries no ID. The merged result keeps
// the content and metadata of the copy with the highest native score;
// per-stage scores from all copies are preserved. Ties in fused score
// keep first-seen order, so fusion is deterministic for identical
// inputs.
func (f *RRFFusion) Fuse(lists ...[]*Result) []*Result {
	merged := make(map[string]*Result)
	bestNative := make(map[string]float64)
	var order []*Result

	for _, list := range lists {
		for rank, r := range list {
			key := dedupKey(r)
			existing, ok := merged[key]
			if !ok {
				existing = &Result{
					ChunkID: r.ChunkID,
					Source:  SourceFused,
				}
				merged[key] = existing
				order = append(order, existing)
			}

			existing.FusedScore += 1.0 / float64(f.K+rank+1)
			if !ok || r.Score > bestNative[key] {
				bestNative[key] = r.Score
				if r.Content != "" {
					existing.Content = r.Content
				}
				if r.Metadata != nil {
					existing.Metadata = r.Metadata
				}
			}
			mergeStageScores(existing, r)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].FusedScore > order[j].FusedScore
	})

	for _, r := range order {
		r.Score = r.FusedScore
	}

	if order == nil {
		return []*Result{}
	}
	return order
}

// mergeStageScores carries per-stage scores from a duplicate into the
// merged result, keeping the highest seen per stage.
func mergeStageScores(dst, src *Result) {
	if src.SparseScore > dst.SparseScore {
		dst.SparseScore = src.SparseScore
	}
	if src.DenseScore > dst.DenseScore {
		dst.DenseScore = src.DenseScore
	}
	if dst.Content == "" {
		dst.Content = src.Content
	}
	if dst.Metadata == nil {
		dst.Metadata = src.Metadata
	}
	if len(src.MatchedTerms) > 0 {
		dst.MatchedTerms = appendNewTerms(dst.MatchedTerms, src.MatchedTerms)
	}
}

func appendNewTerms(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, t := range dst {
		seen[t] = struct{}{}
	}
	for _, t := range src {
		if _, ok := seen[t]; !ok {
			dst = append(dst, t)
		}
	}
	return dst
}

// dedupKey identifies a result for deduplication: the chunk ID when
// present, otherwise a hash of the content prefix.
func dedupKey(r *Result) string {
	if r.ChunkID != "" {
		return r.ChunkID
	}
	content := r.Content
	if len(content) > contentKeyPrefix {
		content = content[:contentKeyPrefix]
	}
	h := fnv.New64a()
	h.Write([]byte(content))
	return "content:" + strconv.FormatUint(h.Sum64(), 16)
}
