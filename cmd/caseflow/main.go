// Package main provides the entry point for the caseflow CLI.
package main

import (
	"os"

	"github.com/caseflow-ai/caseflow/cmd/caseflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
