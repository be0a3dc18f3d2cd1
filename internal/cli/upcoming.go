package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/memories/internal/memory"
	"github.com/dukerupert/memories/internal/server"
	"github.com/dukerupert/memories/internal/store"
)

var (
	upcomingEmail  string
	upcomingLimit  int
	upcomingFormat string
)

func init() {
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List a user's next memory occurrences",
		RunE:  runUpcoming,
	}
	cmd.Flags().StringVarP(&upcomingEmail, "email", "e", "", "Account email (required)")
	cmd.Flags().IntVarP(&upcomingLimit, "limit", "n", 0, "Number of entries (default: $MEMORIES_UPCOMING_LIMIT)")
	cmd.Flags().StringVarP(&upcomingFormat, "format", "f", "text", "Output format: text or json")
	cmd.MarkFlagRequired("email")

	RootCmd.AddCommand(cmd)
}

func runUpcoming(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	upcoming, err := listUpcoming(cmd.Context(), db, server.NewScheduler(cfg), upcomingEmail, upcomingLimit)
	if err != nil {
		return err
	}
	return printUpcoming(cmd.OutOrStdout(), upcoming, upcomingFormat)
}

func listUpcoming(ctx context.Context, db *sql.DB, sched *memory.Scheduler, email string, limit int) ([]memory.Upcoming, error) {
	user, err := store.NewUserStore(db).GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("no account for %s", email)
	}

	all, err := store.NewMemoryStore(db).ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return sched.Upcoming(all, sched.Now(), limit), nil
}

func printUpcoming(w io.Writer, upcoming []memory.Upcoming, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(upcoming)
	}

	if len(upcoming) == 0 {
		fmt.Fprintln(w, "No memories yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tIN\tNAME\tCATEGORY")
	for _, u := range upcoming {
		fmt.Fprintf(tw, "%s\t%dd\t%s\t%s\n", u.Date.Format("Jan 2 2006"), u.DaysUntil, u.Memory.DisplayName, u.Memory.Category)
	}
	return tw.Flush()
}
