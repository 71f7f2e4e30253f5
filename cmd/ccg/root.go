package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ccg",
	Short: "CCG Gateway - local multiplexing proxy for CLI AI assistants",
	Long: `CCG Gateway is a local HTTP proxy that sits between CLI AI assistants
(Claude Code, Codex, Gemini) and their upstream providers.

It classifies each request by User-Agent, selects the first healthy provider
configured for that CLI type, rewrites the model name and auth headers, and
forwards the request, streaming or buffered. Providers that fail repeatedly
are blacklisted for a cooldown period, and every request is recorded in a
local SQLite database for inspection.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
