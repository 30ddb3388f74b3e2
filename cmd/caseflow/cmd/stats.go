package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// StatsOutput is the JSON output format for index stats.
type StatsOutput struct {
	KeywordDocs uint64 `json:"keyword_docs"`
	VectorDocs  int    `json:"vector_docs"`
	Chunks      int    `json:"chunks"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Display the sizes of the keyword index, vector index, and chunk store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
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

	stats := engine.Stats(ctx)
	out := StatsOutput{
		KeywordDocs: stats.SparseDocs,
		VectorDocs:  stats.DenseDocs,
		Chunks:      stats.Chunks,
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Keyword index: %d document(s)\n", out.KeywordDocs)
	fmt.Fprintf(w, "Vector index:  %d document(s)\n", out.VectorDocs)
	fmt.Fprintf(w, "Chunk store:   %d chunk(s)\n", out.Chunks)
	return nil
}
