package agent

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Escalation priorities, highest first.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityNormal   = "normal"
)

const handoffPreviewChars = 200

// Handoff is the package a human agent receives when a request
// escalates: the conversation so far, the documents the assistant
// looked at, and triage notes.
type Handoff struct {
	TicketID   string       `json:"ticket_id"`
	Priority   string       `json:"priority"`
	Reason     string       `json:"reason"`
	Query      string       `json:"query"`
	DraftReply string       `json:"draft_reply,omitempty"`
	Confidence float64      `json:"confidence"`
	Documents  []DocPreview `json:"documents,omitempty"`
	AgentNotes []string     `json:"agent_notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// DocPreview is a truncated view of a retrieved document for the
// handoff package.
type DocPreview struct {
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
}

// Escalator builds handoff packages for requests the assistant cannot
// resolve on its own.
type Escalator struct {
	logger *slog.Logger
}

func NewEscalator(logger *slog.Logger) *Escalator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Escalator{logger: logger}
}

// Escalate builds the handoff and attaches it to the request. The
// ticket ID is generated here if routing didn't assign one.
func (e *Escalator) Escalate(req *Request) {
	ticketID := req.TicketID
	if ticketID == "" {
		ticketID = newTicketID()
		req.TicketID = ticketID
	}

	handoff := &Handoff{
		TicketID:   ticketID,
		Priority:   escalationPriority(req),
		Reason:     req.EscalationReason,
		Query:      req.OriginalQuery,
		DraftReply: req.Response,
		Confidence: req.Confidence,
		Documents:  docPreviews(req),
		AgentNotes: agentNotes(req),
		CreatedAt:  time.Now().UTC(),
	}
	req.Handoff = handoff
	req.ShouldEscalate = true

	// The draft lives on in the handoff; the customer gets the
	// escalation notice, except on security blocks where the apology
	// already stands.
	if handoff.Priority != PriorityCritical {
		req.Response = fmt.Sprintf("I've escalated your request to our support team (ticket %s). An agent will follow up with you shortly.", ticketID)
	}

	e.logger.Info("escalated",
		slog.String("request_id", req.ID),
		slog.String("ticket_id", ticketID),
		slog.String("priority", handoff.Priority),
		slog.String("reason", handoff.Reason))
}

// escalationPriority maps the failure mode to a queue priority.
// Security blocks outrank everything; distressed customers outrank
// plain low-confidence answers.
func escalationPriority(req *Request) string {
	if strings.Contains(strings.ToLower(req.EscalationReason), "security") {
		return PriorityCritical
	}
	if req.Urgency > 0.9 || req.Sentiment < 0.2 {
		return PriorityHigh
	}
	if req.Confidence < 0.3 {
		return PriorityMedium
	}
	return PriorityNormal
}

func docPreviews(req *Request) []DocPreview {
	n := len(req.Results)
	if n > contextSources {
		n = contextSources
	}
	previews := make([]DocPreview, 0, n)
	for i := 0; i < n; i++ {
		res := req.Results[i]
		docID := res.Metadata["doc_id"]
		if docID == "" {
			docID = res.ChunkID
		}
		content := res.Content
		if runes := []rune(content); len(runes) > handoffPreviewChars {
			content = string(runes[:handoffPreviewChars])
		}
		previews = append(previews, DocPreview{
			DocID:   docID,
			Score:   res.Score,
			Preview: content,
		})
	}
	return previews
}

func agentNotes(req *Request) []string {
	var notes []string
	if req.Intent != "" {
		notes = append(notes, fmt.Sprintf("Classified intent: %s (category: %s)", req.Intent, req.Category))
	}
	notes = append(notes, fmt.Sprintf("Assistant confidence: %.2f after %d attempt(s)", req.Confidence, req.RespondAttempts))
	if req.Urgency > 0.7 {
		notes = append(notes, fmt.Sprintf("High urgency signal: %.2f", req.Urgency))
	}
	if req.Sentiment < 0.3 {
		notes = append(notes, fmt.Sprintf("Negative sentiment signal: %.2f", req.Sentiment))
	}
	if len(req.Results) == 0 {
		notes = append(notes, "No relevant knowledge base content was found for this query.")
	}
	return notes
}

func newTicketID() string {
	return "ESC-" + strings.ToUpper(uuid.New().String()[:8])
}
