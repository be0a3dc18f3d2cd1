// Package cli implements the memories command line.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/memories/internal/config"
	"github.com/dukerupert/memories/internal/database"
	"github.com/dukerupert/memories/internal/logging"
)

var dbPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "memories",
	Short:        "Essential Memories server and tools",
	Long:         "Remember the dates that matter: daily streak challenges, flashcard practice and reminders.",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMORIES_DB_PATH or memories.db)")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	return db, nil
}
