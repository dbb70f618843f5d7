// Package main provides the Archon CLI: a one-shot task runner, an
// interactive stdin loop, and rule administration, all wired from a single
// YAML/JSON5 configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load()

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "archon",
		Short:        "Archon - an autonomous reasoning agent runtime",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildRulesCmd(),
	)
	return root
}
