package agent

import (
	"context"

	"github.com/caseflow-ai/caseflow/internal/cache"
	"github.com/caseflow-ai/caseflow/internal/search"
	"github.com/caseflow-ai/caseflow/internal/security"
)

// Generator produces response text from a prompt. Implementations call
// an external model; the pipeline treats every call as fallible.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classification is the router's view of a query.
type Classification struct {
	Intent     string
	Complexity search.QueryComplexity
	Category   string
	Urgency    float64
	Sentiment  float64
}

// IntentClassifier classifies queries the pattern fast path can't.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) (*Classification, error)
}

// Retriever is the search surface the pipeline needs. *search.Engine
// satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string, opts search.Options) ([]*search.Result, error)
}

// SecurityScreen scores input for injection attempts.
// *security.InjectionDefense satisfies it.
type SecurityScreen interface {
	Analyze(text string) (float64, []security.Alert)
	ShouldBlock(score float64) bool
}

// PIIScreen tokenizes and restores PII. *security.PIIDetector
// satisfies it.
type PIIScreen interface {
	HasPII(text string) bool
	Anonymize(text string) (string, map[string]string)
	Deanonymize(text string, tokenMap map[string]string) string
}

// ResponseCache is the semantic cache surface the orchestrator uses.
// *cache.SemanticCache satisfies it.
type ResponseCache interface {
	Get(ctx context.Context, queryEmbedding []float32) (*cache.Entry, float64, bool)
	Put(ctx context.Context, query, response string, metadata map[string]string, queryEmbedding []float32)
}
