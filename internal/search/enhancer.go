package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TextGenerator produces text from a prompt. The enhancer uses it for
// hypothetical answers and query reformulations.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EnhancedQuery is the set of query texts a search actually runs.
type EnhancedQuery struct {
	Original     string
	Hypothetical string   // HyDE document, empty unless generated
	Variants     []string // reformulations, may be empty
}

// All returns every query text, original first.
func (e *EnhancedQuery) All() []string {
	out := make([]string, 0, 2+len(e.Variants))
	out = append(out, e.Original)
	if e.Hypothetical != "" {
		out = append(out, e.Hypothetical)
	}
	out = append(out, e.Variants...)
	return out
}

// maxVariants caps the reformulations per query.
const maxVariants = 3

// Enhancer widens queries before retrieval. Simple queries pass through
// untouched; standard queries get reformulated variants; complex and
// specialized queries additionally get a hypothetical answer document
// (HyDE) whose embedding tends to land nearer the real answers than the
// question's does.
type Enhancer struct {
	generator TextGenerator
	logger    *slog.Logger
}

// NewEnhancer creates a query enhancer.
func NewEnhancer(generator TextGenerator, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{generator: generator, logger: logger}
}

// Enhance expands a query according to its complexity. Generation
// failures are logged and degrade to the original query alone.
func (e *Enhancer) Enhance(ctx context.Context, query string, complexity QueryComplexity) *EnhancedQuery {
	enhanced := &EnhancedQuery{Original: query}

	if e.generator == nil || complexity == ComplexitySimple {
		return enhanced
	}

	enhanced.Variants = e.reformulate(ctx, query)

	if complexity == ComplexityComplex || complexity == ComplexitySpecialized {
		enhanced.Hypothetical = e.hypothetical(ctx, query)
	}

	return enhanced
}

func (e *Enhancer) reformulate(ctx context.Context, query string) []string {
	prompt := fmt.Sprintf(
		"Rewrite the following customer support question in %d different ways, one per line, keeping the meaning. Output only the rewrites.\n\nQuestion: %s",
		maxVariants, query)

	out, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("query_reformulation_failed", slog.String("error", err.Error()))
		return nil
	}

	var variants []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "0123456789.-) "))
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		variants = append(variants, line)
		if len(variants) == maxVariants {
			break
		}
	}
	return variants
}

func (e *Enhancer) hypothetical(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(
		"Write a short help-center paragraph that would answer this customer question. Do not address the customer, just state the facts.\n\nQuestion: %s",
		query)

	out, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("hyde_generation_failed", slog.String("error", err.Error()))
		return ""
	}
	return strings.TrimSpace(out)
}
