package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caseflow-ai/caseflow/internal/search"
)

func TestQualityChecker_ShortResponseCapped(t *testing.T) {
	checker := NewQualityChecker(0.5, nil)
	req := &Request{
		ID:         "req-1",
		Intent:     IntentQuestion,
		Response:   "Yes.",
		Confidence: 0.9,
		Results:    []*search.Result{makeResult("c1", "doc-a", "content", 0.9, search.SourceReranked)},
	}

	checker.Check(req)

	assert.InDelta(t, 0.3, req.Confidence, 1e-9)
	assert.True(t, req.ShouldEscalate)
	assert.Contains(t, req.EscalationReason, "confidence")
}

func TestQualityChecker_NoResultsCapped(t *testing.T) {
	checker := NewQualityChecker(0.5, nil)
	req := &Request{
		ID:         "req-1",
		Intent:     IntentQuestion,
		Response:   "I could not find anything relevant in the knowledge base for that question.",
		Confidence: 0.8,
	}

	checker.Check(req)

	assert.InDelta(t, 0.4, req.Confidence, 1e-9)
	assert.True(t, req.ShouldEscalate)
}

func TestQualityChecker_GoodResponsePasses(t *testing.T) {
	checker := NewQualityChecker(0.5, nil)
	req := &Request{
		ID:         "req-1",
		Intent:     IntentQuestion,
		Response:   "Refunds are processed within five business days of your request.",
		Confidence: 0.82,
		Results:    []*search.Result{makeResult("c1", "doc-a", "content", 0.9, search.SourceReranked)},
	}

	checker.Check(req)

	assert.InDelta(t, 0.82, req.Confidence, 1e-9)
	assert.False(t, req.ShouldEscalate)
}

func TestQualityChecker_ConversationalExempt(t *testing.T) {
	checker := NewQualityChecker(0.5, nil)
	req := &Request{
		ID:         "req-1",
		Intent:     IntentFarewell,
		Response:   "Goodbye!",
		Confidence: 0.9,
	}

	checker.Check(req)

	assert.InDelta(t, 0.9, req.Confidence, 1e-9)
	assert.False(t, req.ShouldEscalate)
}

func TestQualityChecker_KeepsExistingReason(t *testing.T) {
	checker := NewQualityChecker(0.5, nil)
	req := &Request{
		ID:               "req-1",
		Intent:           IntentQuestion,
		Response:         "short",
		Confidence:       0.2,
		EscalationReason: "Security: injection risk 0.90",
	}

	checker.Check(req)

	assert.Equal(t, "Security: injection risk 0.90", req.EscalationReason)
}
