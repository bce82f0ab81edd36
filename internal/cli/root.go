// Package cli implements the amasd command-line surface: serve (run the
// daemon), inspect-user (dump a user's persisted bundle), replay-decision
// (dump one recorded decision), and migrate (apply the store's schema).
//
// Grounded on the teacher's internal/cli/agent.go command-tree
// conventions (package-level *cobra.Command vars wired together in
// init(), RunE returning a wrapped error, flags read via
// cmd.Flags().GetString); that file's rootCmd itself was not retrieved
// with the teacher, so root.go below is authored fresh in the same style.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "amasd",
	Short: "AMAS adaptive-learning decision daemon",
	Long: `amasd runs the Adaptive Multi-dimensional Aware System: a per-user
online decision engine that picks the next vocabulary-learning strategy
from behavioral and visual-fatigue signals, and exposes it over HTTP.`,
}

// Execute runs the root command, printing any error to stderr and
// exiting non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
