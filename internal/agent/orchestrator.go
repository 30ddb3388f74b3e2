package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caseflow-ai/caseflow/internal/config"
	"github.com/caseflow-ai/caseflow/internal/embed"
	"github.com/caseflow-ai/caseflow/internal/search"
)

const (
	securityBlockResponse = "I'm sorry, but I can't process that request. If you have a genuine support question, please rephrase it and I'll be happy to help."
	cacheHitConfidence    = 0.9
)

// Orchestrator runs requests through the support pipeline. All
// collaborators except the retriever are optional; a nil collaborator
// disables its stage rather than failing it.
type Orchestrator struct {
	cfg        config.AgentConfig
	router     *Router
	responder  *Responder
	quality    *QualityChecker
	escalator  *Escalator
	retriever  Retriever
	injection  SecurityScreen
	pii        PIIScreen
	cache      ResponseCache
	embedder   embed.Embedder
	classifier IntentClassifier
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithSecurityScreen(s SecurityScreen) Option { return func(o *Orchestrator) { o.injection = s } }

func WithPIIScreen(p PIIScreen) Option { return func(o *Orchestrator) { o.pii = p } }

func WithResponseCache(c ResponseCache) Option { return func(o *Orchestrator) { o.cache = c } }

func WithEmbedder(e embed.Embedder) Option { return func(o *Orchestrator) { o.embedder = e } }

func WithClassifier(c IntentClassifier) Option { return func(o *Orchestrator) { o.classifier = c } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// NewOrchestrator wires the pipeline. The retriever is required; the
// generator may be nil, in which case every grounded query escalates.
func NewOrchestrator(cfg config.AgentConfig, retriever Retriever, generator Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		retriever: retriever,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.router = NewRouter(o.classifier, o.logger)
	o.responder = NewResponder(generator, cfg.CollaboratorTimeout, o.logger)
	o.quality = NewQualityChecker(cfg.EscalationThreshold, o.logger)
	o.escalator = NewEscalator(o.logger)
	return o
}

// Process runs one query through the pipeline and returns the reply.
// Collaborator failures degrade to escalation; Process itself only
// errors on an empty query or a cancelled context.
func (o *Orchestrator) Process(ctx context.Context, query, userID, namespace string) (*Reply, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	req := &Request{
		ID:            uuid.New().String(),
		UserID:        userID,
		Query:         query,
		OriginalQuery: query,
		Namespace:     namespace,
		State:         StateSecurityCheck,
		StartedAt:     time.Now(),
	}

	o.logger.Info("request_started",
		slog.String("request_id", req.ID),
		slog.String("user_id", userID))

	for req.State != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o.step(ctx, req)
	}

	reply := &Reply{
		RequestID:        req.ID,
		TicketID:         req.TicketID,
		Response:         req.Response,
		Confidence:       req.Confidence,
		Sources:          req.Sources,
		Intent:           req.Intent,
		Category:         req.Category,
		Escalated:        req.ShouldEscalate,
		EscalationReason: req.EscalationReason,
		CacheHit:         req.CacheHit,
		Latency:          time.Since(req.StartedAt),
	}

	o.logger.Info("request_finished",
		slog.String("request_id", req.ID),
		slog.String("intent", req.Intent),
		slog.Float64("confidence", req.Confidence),
		slog.Bool("escalated", reply.Escalated),
		slog.Bool("cache_hit", reply.CacheHit),
		slog.Duration("latency", reply.Latency))

	return reply, nil
}

// step advances the request one state.
func (o *Orchestrator) step(ctx context.Context, req *Request) {
	prev := req.State

	switch req.State {
	case StateSecurityCheck:
		o.securityCheck(req)
	case StateCacheCheck:
		o.cacheCheck(ctx, req)
	case StateRoute:
		o.route(ctx, req)
	case StateRetrieve:
		o.retrieve(ctx, req)
	case StateRespond:
		o.responder.Respond(ctx, req)
		req.State = StateQualityCheck
	case StateQualityCheck:
		o.qualityCheck(req)
	case StateEscalate:
		o.escalator.Escalate(req)
		req.State = StateFinalize
	case StateFinalize:
		o.finalize(ctx, req)
	default:
		req.State = StateDone
	}

	o.logger.Debug("state_transition",
		slog.String("request_id", req.ID),
		slog.String("from", prev.String()),
		slog.String("to", req.State.String()))
}

func (o *Orchestrator) securityCheck(req *Request) {
	if o.injection != nil {
		score, alerts := o.injection.Analyze(req.Query)
		if o.injection.ShouldBlock(score) {
			o.logger.Warn("request_blocked",
				slog.String("request_id", req.ID),
				slog.Float64("risk_score", score),
				slog.Int("alerts", len(alerts)))
			req.Response = securityBlockResponse
			req.Confidence = 0
			req.EscalationReason = fmt.Sprintf("Security: injection risk %.2f", score)
			req.State = StateEscalate
			return
		}
	}

	if o.pii != nil && o.pii.HasPII(req.Query) {
		anonymized, tokens := o.pii.Anonymize(req.Query)
		req.Query = anonymized
		req.PIITokens = tokens
		o.logger.Info("pii_anonymized",
			slog.String("request_id", req.ID),
			slog.Int("tokens", len(tokens)))
	}

	req.State = StateCacheCheck
}

func (o *Orchestrator) cacheCheck(ctx context.Context, req *Request) {
	req.State = StateRoute

	if o.cache == nil || o.embedder == nil {
		return
	}
	vec, err := o.embedder.Embed(ctx, req.Query)
	if err != nil {
		o.logger.Warn("cache_embed_failed",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()))
		return
	}
	entry, sim, ok := o.cache.Get(ctx, vec)
	if !ok {
		return
	}

	req.CacheHit = true
	req.Response = entry.Response
	req.Confidence = cacheHitConfidence
	if entry.Metadata != nil {
		req.Intent = entry.Metadata["intent"]
		req.Category = entry.Metadata["category"]
	}
	req.State = StateFinalize
	o.logger.Info("cache_hit",
		slog.String("request_id", req.ID),
		slog.Float64("similarity", sim))
}

func (o *Orchestrator) route(ctx context.Context, req *Request) {
	o.router.Route(ctx, req)

	if o.router.ShouldEscalateImmediately(req) {
		req.EscalationReason = fmt.Sprintf("High urgency (%.2f) or negative sentiment (%.2f)", req.Urgency, req.Sentiment)
		req.State = StateEscalate
		return
	}

	// Conversational queries skip retrieval.
	if conversationalIntents[req.Intent] {
		req.State = StateRespond
		return
	}
	req.State = StateRetrieve
}

func (o *Orchestrator) retrieve(ctx context.Context, req *Request) {
	results, err := o.retriever.Search(ctx, req.Query, search.Options{
		Namespace:  req.Namespace,
		Complexity: req.Complexity,
	})
	if err != nil {
		o.logger.Warn("retrieval_failed",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()))
		results = nil
	}
	req.Results = results
	req.State = StateRespond
}

func (o *Orchestrator) qualityCheck(req *Request) {
	o.quality.Check(req)

	// Retry generation while confidence stays under the target and the
	// retry budget lasts; the escalation flag is cleared because a
	// better attempt may still clear the bar.
	if req.Confidence < o.cfg.ConfidenceThreshold && req.RetryCount < o.cfg.MaxRetries {
		req.RetryCount++
		req.ShouldEscalate = false
		req.EscalationReason = ""
		req.State = StateRespond
		o.logger.Info("respond_retry",
			slog.String("request_id", req.ID),
			slog.Int("retry", req.RetryCount),
			slog.Float64("confidence", req.Confidence))
		return
	}

	if req.ShouldEscalate {
		req.State = StateEscalate
		return
	}
	req.State = StateFinalize
}

func (o *Orchestrator) finalize(ctx context.Context, req *Request) {
	if !req.CacheHit && !req.ShouldEscalate &&
		req.Confidence >= o.cfg.ConfidenceThreshold &&
		o.cache != nil && o.embedder != nil {
		vec, err := o.embedder.Embed(ctx, req.Query)
		if err == nil {
			meta := map[string]string{}
			if req.Intent != "" {
				meta["intent"] = req.Intent
			}
			if req.Category != "" {
				meta["category"] = req.Category
			}
			o.cache.Put(ctx, req.Query, req.Response, meta, vec)
		}
	}

	if o.pii != nil && len(req.PIITokens) > 0 {
		req.Response = o.pii.Deanonymize(req.Response, req.PIITokens)
	}

	req.State = StateDone
}
