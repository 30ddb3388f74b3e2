package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caseflow-ai/caseflow/internal/agent"
	"github.com/caseflow-ai/caseflow/internal/cache"
	"github.com/caseflow-ai/caseflow/internal/output"
	"github.com/caseflow-ai/caseflow/internal/security"
)

func newAskCmd() *cobra.Command {
	var namespace string
	var userID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against the indexed knowledge base",
		Long: `Run a question through the full support pipeline: security
screening, semantic cache, routing, hybrid retrieval, response
generation, quality gating, and escalation.

Without an external model configured the response is extractive: the
best matching passage from the knowledge base.

Examples:
  caseflow ask "how do I reset my password"
  caseflow ask --namespace billing "when are invoices issued"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), cmd, strings.Join(args, " "), namespace, userID)
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "s", "", "Restrict retrieval to a namespace")
	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "User identifier for the request")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, query, namespace, userID string) error {
	cfg, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()

	engine, _, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	embedder := newEmbedder(cfg)
	responseCache := cache.New(cache.Options{
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		TTL:                 cfg.Cache.TTL,
		MaxEntries:          cfg.Cache.MaxEntries,
		EvictBatch:          cfg.Cache.EvictBatch,
	})

	orchestrator := agent.NewOrchestrator(cfg.Agent, engine, extractiveGenerator{},
		agent.WithSecurityScreen(security.NewInjectionDefense(cfg.Agent.BlockThreshold)),
		agent.WithPIIScreen(security.NewPIIDetector()),
		agent.WithResponseCache(responseCache),
		agent.WithEmbedder(embedder),
	)

	reply, err := orchestrator.Process(ctx, query, userID, namespace)
	if err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).Reply(reply)
	return nil
}

// extractiveGenerator answers from the retrieval context alone. It is
// the offline fallback when no model is configured: the first source
// passage of the prompt becomes the reply. Prompts without a context
// block, such as the query enhancer's reformulation requests, produce
// empty output and the caller degrades to its no-enhancement path.
type extractiveGenerator struct{}

func (extractiveGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	passage := firstContextPassage(prompt)
	if passage == "" {
		return "", nil
	}
	return "Based on our documentation: " + passage, nil
}

// firstContextPassage pulls the text of the first [Source N - id] block
// out of a generation prompt.
func firstContextPassage(prompt string) string {
	_, rest, found := strings.Cut(prompt, "]\n")
	if !found {
		return ""
	}
	if idx := strings.Index(rest, "\n\n"); idx >= 0 {
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, "\n\nQuestion:"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

var _ agent.Generator = extractiveGenerator{}
