package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caseflow-ai/caseflow/internal/output"
	"github.com/caseflow-ai/caseflow/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	namespace  string
	complexity string
	format     string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed knowledge base",
		Long: `Search the indexed knowledge base with hybrid retrieval.

Combines keyword (BM25) and semantic (embedding) search with
reciprocal rank fusion, then reranks the fused candidates. Useful for
inspecting what the ask pipeline would retrieve.

Examples:
  caseflow search "password reset"
  caseflow search "refund policy" --namespace billing --limit 3
  caseflow search "sso setup" --complexity complex --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.namespace, "namespace", "s", "", "Restrict to a namespace")
	cmd.Flags().StringVar(&opts.complexity, "complexity", "standard", "Query complexity: simple, standard, complex, specialized")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
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

	results, err := engine.Search(ctx, query, search.Options{
		TopK:       opts.limit,
		Namespace:  opts.namespace,
		Complexity: search.QueryComplexity(opts.complexity),
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	output.New(cmd.OutOrStdout()).SearchResults(query, results)
	return nil
}
