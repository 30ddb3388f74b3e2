// Package output renders CLI output: status lines, indexing progress,
// retrieval results, and assistant replies.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/caseflow-ai/caseflow/internal/agent"
	"github.com/caseflow-ai/caseflow/internal/search"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out io.Writer
}

// New creates a Writer over out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon. Write errors are
// ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints an in-place progress bar.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.out, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

// Reply renders the assistant's answer with confidence, sources, and
// escalation status.
func (w *Writer) Reply(reply *agent.Reply) {
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintln(w.out, reply.Response)
	_, _ = fmt.Fprintln(w.out)

	_, _ = fmt.Fprintf(w.out, "   confidence: %.2f", reply.Confidence)
	if reply.CacheHit {
		_, _ = fmt.Fprint(w.out, "  (cached)")
	}
	_, _ = fmt.Fprintln(w.out)

	if len(reply.Sources) > 0 {
		_, _ = fmt.Fprintf(w.out, "   sources: %s\n", strings.Join(reply.Sources, ", "))
	}
	if reply.Escalated {
		w.Warningf("escalated to a human agent (ticket %s): %s", reply.TicketID, reply.EscalationReason)
	}
}

// SearchResults renders retrieval results with scores and previews.
func (w *Writer) SearchResults(query string, results []*search.Result) {
	if len(results) == 0 {
		w.Status("🔍", fmt.Sprintf("No results for %q", query))
		return
	}

	w.Statusf("🔍", "%d result(s) for %q", len(results), query)
	w.Newline()
	for i, res := range results {
		docID := res.Metadata["doc_id"]
		if docID == "" {
			docID = res.ChunkID
		}
		_, _ = fmt.Fprintf(w.out, "%2d. %s  (%s score %.4f)\n", i+1, docID, res.Source, res.Score)
		_, _ = fmt.Fprintf(w.out, "    %s\n", preview(res.Content, 160))
	}
}

func preview(content string, max int) string {
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	pct := float64(current) / float64(total)
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
