package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/memories/internal/database"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and print the schema version",
		RunE:  runMigrate,
	}

	RootCmd.AddCommand(cmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	// Open applies migrations.
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	v, err := database.Version(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d\n", cfg.DBPath, v)
	return nil
}
