package agent

import (
	"fmt"
	"log/slog"
)

const minResponseLength = 20

// QualityChecker gates responses before they reach the customer.
// Degenerate responses have their confidence capped, and anything
// below the escalation threshold is handed to a human.
type QualityChecker struct {
	escalationThreshold float64
	logger              *slog.Logger
}

func NewQualityChecker(escalationThreshold float64, logger *slog.Logger) *QualityChecker {
	if escalationThreshold <= 0 {
		escalationThreshold = 0.5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QualityChecker{escalationThreshold: escalationThreshold, logger: logger}
}

// Check adjusts req.Confidence for quality problems and flags
// escalation when confidence ends up below the threshold.
// Conversational replies are exempt; short is fine for "Goodbye!".
func (q *QualityChecker) Check(req *Request) {
	if conversationalIntents[req.Intent] {
		return
	}

	if len(req.Response) < minResponseLength {
		req.Confidence = min(req.Confidence, 0.3)
	}
	if len(req.Results) == 0 {
		req.Confidence = min(req.Confidence, 0.4)
	}

	if req.Confidence < q.escalationThreshold {
		req.ShouldEscalate = true
		if req.EscalationReason == "" {
			req.EscalationReason = fmt.Sprintf("Low confidence: %.2f", req.Confidence)
		}
		q.logger.Info("quality_check_failed",
			slog.String("request_id", req.ID),
			slog.Float64("confidence", req.Confidence))
	}
}
