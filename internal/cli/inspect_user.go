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
	rootCmd.AddCommand(inspectUserCmd)
	inspectUserCmd.Flags().StringP("config", "c", "", "Path to a TOML config file (optional)")
}

var inspectUserCmd = &cobra.Command{
	Use:   "inspect-user USER_ID",
	Short: "Print a user's persisted state, bandit model, and thresholds",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspectUser,
}

type inspectUserDump struct {
	UserID     string `json:"userId"`
	State      any    `json:"state,omitempty"`
	Model      any    `json:"model,omitempty"`
	Habit      any    `json:"habit,omitempty"`
	Thresholds any    `json:"thresholds,omitempty"`
}

func runInspectUser(cmd *cobra.Command, args []string) error {
	userID := args[0]
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

	dump := inspectUserDump{UserID: userID}
	if state, err := db.LoadState(userID); err == nil {
		dump.State = state
	}
	if model, err := db.LoadModel(userID); err == nil {
		dump.Model = model
	}
	if habit, err := db.LoadHabit(userID); err == nil {
		dump.Habit = habit
	}
	if thresholds, err := db.LoadThresholds(userID); err == nil {
		dump.Thresholds = thresholds
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}
