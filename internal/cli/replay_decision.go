package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vocabamas/amas/internal/daemon"
	"github.com/vocabamas/amas/internal/infra/store"
)

func init() {
	rootCmd.AddCommand(replayDecisionCmd)
	replayDecisionCmd.Flags().StringP("config", "c", "", "Path to a TOML config file (optional)")
}

var replayDecisionCmd = &cobra.Command{
	Use:   "replay-decision DECISION_ID",
	Short: "Print a previously recorded decision (spec §4.l explainability record)",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplayDecision,
}

func runReplayDecision(cmd *cobra.Command, args []string) error {
	decisionID := args[0]
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Store.DSN, cfg.Store.CacheSize)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	record, err := db.LoadDecisionTrace(decisionID)
	if err != nil {
		return fmt.Errorf("decision %q not found: %w", decisionID, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
