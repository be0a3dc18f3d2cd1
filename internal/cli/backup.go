package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/memories/internal/backup"
	"github.com/dukerupert/memories/internal/server"
	"github.com/dukerupert/memories/internal/store"
)

var (
	restoreID  int64
	restoreOut string
)

func init() {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot, encrypt and upload the database now",
		RunE:  runBackup,
	}
	listCmd := &cobra.Command{
		Use:   "backups",
		Short: "List recent backups",
		RunE:  runListBackups,
	}
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Download a backup, verify it and write it to --out",
		Long:  "Restore writes a decrypted, integrity-checked copy of a backup. Stop the server and move the file over the live database to complete a restore.",
		RunE:  runRestore,
	}
	restoreCmd.Flags().Int64Var(&restoreID, "id", 0, "Backup id (from `memories backups`)")
	restoreCmd.Flags().StringVarP(&restoreOut, "out", "o", "", "Destination path for the restored database")
	restoreCmd.MarkFlagRequired("id")
	restoreCmd.MarkFlagRequired("out")

	RootCmd.AddCommand(backupCmd, listCmd, restoreCmd)
}

func newBackupManager() (*backup.Manager, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.BackupEnabled() {
		return nil, nil, errors.New("backups need S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY and BACKUP_PASSPHRASE")
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	mgr := backup.NewManager(server.BackupConfig(cfg), db, store.NewBackupStore(db), logger.With("component", "backup"))
	return mgr, func() { db.Close() }, nil
}

func runBackup(cmd *cobra.Command, args []string) error {
	mgr, closeDB, err := newBackupManager()
	if err != nil {
		return err
	}
	defer closeDB()

	id, err := mgr.RunNow(cmd.Context())
	if err != nil {
		return err
	}
	if err := mgr.Cleanup(cmd.Context()); err != nil {
		return fmt.Errorf("backup %d done, cleanup failed: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "backup %d completed\n", id)
	return nil
}

func runListBackups(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	backups, err := store.NewBackupStore(db).List(20)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tBYTES\tFILE")
	for _, b := range backups {
		started := "-"
		if b.StartedAt != nil {
			started = b.StartedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", b.ID, started, b.Status, b.SizeBytes, b.Filename)
	}
	return tw.Flush()
}

func runRestore(cmd *cobra.Command, args []string) error {
	mgr, closeDB, err := newBackupManager()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := mgr.Restore(cmd.Context(), restoreID, restoreOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "backup %d restored to %s\n", restoreID, restoreOut)
	return nil
}
