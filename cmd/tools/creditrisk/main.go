// Package main implements the creditrisk CLI: score an applicant against a model bundle,
// manage bundle versions, check the activity registry, and look up logged decisions.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "creditrisk",
		Short:         "Credit risk scoring tools",
		Long:          "Scores loan applicants against a versioned model bundle and manages the bundles and activity registry used by the scoring worker.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScoreCmd(), newBundleCmd(), newRegistryCmd(), newDecisionCmd())
	return root
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
