// Package cmd provides the CLI commands for Caseflow.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caseflow-ai/caseflow/pkg/version"
)

var (
	configDir string
	debugMode bool
)

// NewRootCmd creates the root command for the caseflow CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caseflow",
		Short: "Support knowledge retrieval and response pipeline",
		Long: `Caseflow indexes a support knowledge base and answers customer
queries over it with hybrid retrieval (keyword + semantic), reciprocal
rank fusion, a semantic response cache, and an escalation-aware
response pipeline.

Run 'caseflow index' to build the index, then 'caseflow ask' to query it.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("caseflow version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "Directory containing caseflow.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
