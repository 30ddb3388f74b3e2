// Package agent orchestrates a support request through a fixed state
// machine: security screening, semantic cache lookup, routing,
// retrieval, response generation, quality gating, and escalation.
// External collaborators (generation, classification) can fail without
// taking the pipeline down; failures turn into low confidence and
// escalation instead.
package agent

import (
	"time"

	"github.com/caseflow-ai/caseflow/internal/search"
)

// State is a stage of request processing. The orchestrator advances a
// request through states with a plain step function; there is no
// dispatch table to keep in sync.
type State int

const (
	StateSecurityCheck State = iota
	StateCacheCheck
	StateRoute
	StateRetrieve
	StateRespond
	StateQualityCheck
	StateEscalate
	StateFinalize
	StateDone
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateSecurityCheck:
		return "security_check"
	case StateCacheCheck:
		return "cache_check"
	case StateRoute:
		return "route"
	case StateRetrieve:
		return "retrieve"
	case StateRespond:
		return "respond"
	case StateQualityCheck:
		return "quality_check"
	case StateEscalate:
		return "escalate"
	case StateFinalize:
		return "finalize"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Request is the mutable record a query accumulates while moving
// through the pipeline.
type Request struct {
	ID       string
	UserID   string
	TicketID string

	// Query is the working query text; PII may be tokenized out of it.
	// OriginalQuery is the text as the customer sent it.
	Query         string
	OriginalQuery string
	Namespace     string

	State State

	// Routing classification.
	Intent     string
	Complexity search.QueryComplexity
	Category   string
	Urgency    float64
	Sentiment  float64

	Results []*search.Result

	Response   string
	Confidence float64
	Sources    []string

	RetryCount      int
	RespondAttempts int

	CacheHit         bool
	ShouldEscalate   bool
	EscalationReason string
	Handoff          *Handoff

	// PIITokens maps anonymization tokens back to original values for
	// restoring the final response.
	PIITokens map[string]string

	StartedAt time.Time
}

// Reply is what the pipeline returns to the caller.
type Reply struct {
	RequestID        string
	TicketID         string
	Response         string
	Confidence       float64
	Sources          []string
	Intent           string
	Category         string
	Escalated        bool
	EscalationReason string
	CacheHit         bool
	Latency          time.Duration
}

// Intents the router assigns.
const (
	IntentQuestion     = "question"
	IntentComplaint    = "complaint"
	IntentRequest      = "request"
	IntentFeedback     = "feedback"
	IntentGreeting     = "greeting"
	IntentFarewell     = "farewell"
	IntentAppreciation = "appreciation"
	IntentSmallTalk    = "small_talk"
	IntentChitchat     = "chitchat"
)

// conversationalIntents get canned replies without retrieval or
// generation.
var conversationalIntents = map[string]bool{
	IntentGreeting:     true,
	IntentFarewell:     true,
	IntentAppreciation: true,
	IntentSmallTalk:    true,
	IntentChitchat:     true,
}
