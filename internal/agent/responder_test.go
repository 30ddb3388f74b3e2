package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-ai/caseflow/internal/search"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func makeResult(chunkID, docID, content string, score float64, source search.Source) *search.Result {
	return &search.Result{
		ChunkID:  chunkID,
		Content:  content,
		Metadata: map[string]string{"doc_id": docID},
		Score:    score,
		Source:   source,
	}
}

func TestBuildContext_NumbersSources(t *testing.T) {
	results := []*search.Result{
		makeResult("c1", "refund-policy", "Refunds are issued within 5 business days.", 0.9, search.SourceReranked),
		makeResult("c2", "billing-faq", "Invoices are sent at the start of each cycle.", 0.7, search.SourceReranked),
	}

	block := BuildContext(results)

	assert.Contains(t, block, "[Source 1 - refund-policy]")
	assert.Contains(t, block, "[Source 2 - billing-faq]")
	assert.Contains(t, block, "Refunds are issued within 5 business days.")
}

func TestBuildContext_CapsAtFiveSources(t *testing.T) {
	var results []*search.Result
	for i := 0; i < 8; i++ {
		results = append(results, makeResult("c", "doc", "content", 0.5, search.SourceFused))
	}

	block := BuildContext(results)

	assert.Contains(t, block, "[Source 5 - doc]")
	assert.NotContains(t, block, "[Source 6 - doc]")
}

func TestResponder_CannedRepliesSkipGenerator(t *testing.T) {
	gen := &stubGenerator{response: "should not be used"}
	responder := NewResponder(gen, 0, nil)

	for _, intent := range []string{IntentGreeting, IntentFarewell, IntentAppreciation, IntentSmallTalk, IntentChitchat} {
		req := &Request{ID: "req-1", Query: "hi", Intent: intent}

		responder.Respond(context.Background(), req)

		require.NotEmpty(t, req.Response, "intent %s", intent)
		assert.InDelta(t, 0.9, req.Confidence, 1e-9)
	}
	assert.Equal(t, 0, gen.calls)
}

func TestResponder_NoResults(t *testing.T) {
	gen := &stubGenerator{response: "should not be used"}
	responder := NewResponder(gen, 0, nil)
	req := &Request{ID: "req-1", Query: "how do refunds work", Intent: IntentQuestion}

	responder.Respond(context.Background(), req)

	assert.Equal(t, 0, gen.calls)
	assert.InDelta(t, 0.4, req.Confidence, 1e-9)
	assert.Contains(t, req.Response, "knowledge base")
}

func TestResponder_GroundedResponse(t *testing.T) {
	gen := &stubGenerator{response: "Refunds are processed within five business days of your request."}
	responder := NewResponder(gen, 0, nil)
	req := &Request{
		ID:     "req-1",
		Query:  "how long do refunds take",
		Intent: IntentQuestion,
		Results: []*search.Result{
			makeResult("c1", "refund-policy", "Refunds take five business days to process.", 0.9, search.SourceReranked),
			makeResult("c2", "billing-faq", "Billing questions are answered here.", 0.6, search.SourceReranked),
		},
	}

	responder.Respond(context.Background(), req)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, gen.response, req.Response)
	assert.GreaterOrEqual(t, req.Confidence, 0.5)
	assert.LessOrEqual(t, req.Confidence, 0.95)
	assert.Equal(t, []string{"refund-policy", "billing-faq"}, req.Sources)
}

func TestResponder_GeneratorFailureDegrades(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model unavailable")}
	responder := NewResponder(gen, 0, nil)
	req := &Request{
		ID:      "req-1",
		Query:   "how long do refunds take",
		Intent:  IntentQuestion,
		Results: []*search.Result{makeResult("c1", "refund-policy", "Refunds take five business days.", 0.9, search.SourceReranked)},
	}

	responder.Respond(context.Background(), req)

	// retried once, then gave up
	assert.Equal(t, 2, gen.calls)
	assert.Zero(t, req.Confidence)
	assert.Contains(t, req.Response, "human agent")
	assert.Empty(t, req.Sources)
}

func TestComputeConfidence_FusedScoreCalibration(t *testing.T) {
	// given a fused top score on the reciprocal-rank scale
	results := []*search.Result{
		makeResult("c1", "doc-a", "password reset instructions", 2.0/61.0, search.SourceFused),
	}

	conf := computeConfidence("completely unrelated words", results)

	// then the score is rescaled rather than treated as near zero
	assert.GreaterOrEqual(t, conf, 0.5)
	assert.LessOrEqual(t, conf, 0.95)
}

func TestComputeConfidence_Clamped(t *testing.T) {
	low := computeConfidence("zzz qqq", []*search.Result{
		makeResult("c1", "doc-a", "nothing related at all", 0.01, search.SourceReranked),
	})
	assert.InDelta(t, 0.5, low, 1e-9)

	var many []*search.Result
	for i := 0; i < 10; i++ {
		many = append(many, makeResult("c", "doc", "reset your password from the settings page", 1.0, search.SourceReranked))
	}
	high := computeConfidence("reset password settings", many)
	assert.InDelta(t, 0.95, high, 1e-9)
}

func TestTopSources_DedupesAndCaps(t *testing.T) {
	results := []*search.Result{
		makeResult("c1", "doc-a", "x", 0.9, search.SourceReranked),
		makeResult("c2", "doc-a", "y", 0.8, search.SourceReranked),
		makeResult("c3", "doc-b", "z", 0.7, search.SourceReranked),
		makeResult("c4", "doc-c", "w", 0.6, search.SourceReranked),
		makeResult("c5", "doc-d", "v", 0.5, search.SourceReranked),
	}

	sources := topSources(results)

	assert.Equal(t, []string{"doc-a", "doc-b", "doc-c"}, sources)
}
