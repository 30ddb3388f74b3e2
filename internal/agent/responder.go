package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	caseerrors "github.com/caseflow-ai/caseflow/internal/errors"
	"github.com/caseflow-ai/caseflow/internal/search"
)

const (
	contextSources   = 5
	replySources     = 3
	noResultsConf    = 0.4
	minGroundedConf  = 0.5
	maxGroundedConf  = 0.95
	rrfCalibration   = 61.0
	apologyResponse  = "I apologize, but I'm having trouble generating a response right now. Let me connect you with a human agent who can help."
	noContextMessage = "I couldn't find specific information about that in our knowledge base. Could you rephrase your question, or would you like me to connect you with a support agent?"
)

var cannedResponses = map[string]string{
	IntentGreeting:     "Hello! Welcome to support. How can I help you today?",
	IntentFarewell:     "Goodbye! Feel free to reach out if you need anything else. Have a great day!",
	IntentAppreciation: "You're welcome! Is there anything else I can help you with?",
	IntentSmallTalk:    "I'm your support assistant, here to help with questions about your account, billing, or our product. What can I do for you?",
	IntentChitchat:     "I'm best at answering questions about our product and your account. Is there something I can help you with?",
}

// Responder turns retrieved context into an answer via the generator
// collaborator. Conversational intents get canned replies without
// touching the generator.
type Responder struct {
	generator Generator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewResponder(generator Generator, timeout time.Duration, logger *slog.Logger) *Responder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{generator: generator, timeout: timeout, logger: logger}
}

// BuildContext renders the top retrieved chunks as a numbered source
// block for the generation prompt.
func BuildContext(results []*search.Result) string {
	if len(results) == 0 {
		return ""
	}
	n := len(results)
	if n > contextSources {
		n = contextSources
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		res := results[i]
		docID := res.Metadata["doc_id"]
		if docID == "" {
			docID = res.ChunkID
		}
		fmt.Fprintf(&b, "[Source %d - %s]\n%s\n\n", i+1, docID, res.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Respond fills req.Response, req.Confidence, and req.Sources. A
// generator failure after retries yields an apology with zero
// confidence so the orchestrator escalates instead of erroring out.
func (r *Responder) Respond(ctx context.Context, req *Request) {
	req.RespondAttempts++

	if canned, ok := cannedResponses[req.Intent]; ok {
		req.Response = canned
		req.Confidence = 0.9
		req.Sources = nil
		return
	}

	if len(req.Results) == 0 {
		req.Response = noContextMessage
		req.Confidence = noResultsConf
		req.Sources = nil
		return
	}

	if r.generator == nil {
		req.Response = apologyResponse
		req.Confidence = 0
		req.Sources = nil
		return
	}

	contextBlock := BuildContext(req.Results)
	prompt := buildPrompt(req.Query, contextBlock)

	var response string
	err := caseerrors.Retry(ctx, caseerrors.CollaboratorRetryConfig(), func() error {
		genCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		out, genErr := r.generator.Generate(genCtx, prompt)
		if genErr != nil {
			return caseerrors.New(caseerrors.ErrCodeCollaboratorError, "response generation failed", genErr)
		}
		response = out
		return nil
	})
	if err != nil {
		r.logger.Warn("generation_failed",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()))
		req.Response = apologyResponse
		req.Confidence = 0
		req.Sources = nil
		return
	}

	req.Response = strings.TrimSpace(response)
	req.Confidence = computeConfidence(req.Query, req.Results)
	req.Sources = topSources(req.Results)
}

func buildPrompt(query, contextBlock string) string {
	var b strings.Builder
	b.WriteString("You are a helpful customer support assistant. Answer the customer's question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so and suggest contacting support.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// computeConfidence scores an answer from retrieval quality: top result
// score, result count, and lexical overlap between query and context.
func computeConfidence(query string, results []*search.Result) float64 {
	if len(results) == 0 {
		return noResultsConf
	}

	conf := calibrateTopScore(results[0])

	countBonus := float64(len(results)) * 0.03
	if countBonus > 0.15 {
		countBonus = 0.15
	}
	conf += countBonus

	queryWords := wordSet(query)
	if len(queryWords) > 0 {
		contextWords := make(map[string]bool)
		n := len(results)
		if n > contextSources {
			n = contextSources
		}
		for i := 0; i < n; i++ {
			for w := range wordSet(results[i].Content) {
				contextWords[w] = true
			}
		}
		overlap := 0
		for w := range queryWords {
			if contextWords[w] {
				overlap++
			}
		}
		conf += float64(overlap) / float64(len(queryWords)) * 0.1
	}

	if conf < minGroundedConf {
		conf = minGroundedConf
	}
	if conf > maxGroundedConf {
		conf = maxGroundedConf
	}
	return conf
}

// calibrateTopScore maps stage scores onto [0, 1]. Fused scores live on
// a reciprocal-rank scale, roughly 1/61 per contributing list, so they
// are rescaled before use.
func calibrateTopScore(res *search.Result) float64 {
	score := res.Score
	if res.Source == search.SourceFused {
		score *= rrfCalibration
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func topSources(results []*search.Result) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, res := range results {
		docID := res.Metadata["doc_id"]
		if docID == "" {
			docID = res.ChunkID
		}
		if seen[docID] {
			continue
		}
		seen[docID] = true
		sources = append(sources, docID)
		if len(sources) == replySources {
			break
		}
	}
	return sources
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}
