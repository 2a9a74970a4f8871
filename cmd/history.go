package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/internal/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List past review sessions",
	Long: `Without arguments, lists stored review sessions, newest first.
With a session ID (shown in the list and in review output), prints the
full session: per-file results, findings, suggested fixes, and commits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20,
		"Maximum number of sessions to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store := history.NewStore(db)
	if len(args) == 1 {
		return printSessionDetail(ctx, store, args[0])
	}
	return printSessionList(ctx, store)
}

func printSessionList(ctx context.Context, store *history.Store) error {
	rows, err := store.ListSessions(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No sessions recorded yet. Run: ctrlreview review-files <path>")
		return nil
	}

	fmt.Printf("%-14s %-17s %-24s %6s %9s %6s %7s\n",
		"SESSION", "STARTED", "PROVIDER", "FILES", "FINDINGS", "FIXES", "FAILED")
	for _, r := range rows {
		fmt.Printf("%-14s %-17s %-24s %6d %9d %6d %7d\n",
			r.SessionKey, shortTime(r.StartedAt), r.Provider+"/"+r.Model,
			r.TotalFiles, r.Findings, r.AppliedFixes, r.FailedFiles)
	}
	fmt.Println()
	fmt.Println("Run 'ctrlreview history <session-id>' for details, or 'ctrlreview ui' to browse.")
	return nil
}

func printSessionDetail(ctx context.Context, store *history.Store, key string) error {
	sess, err := store.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %q not found", key)
		}
		return err
	}

	fmt.Printf("Session %s\n", sess.SessionKey)
	fmt.Printf("  Provider : %s/%s\n", sess.Provider, sess.Model)
	fmt.Printf("  Started  : %s\n", shortTime(sess.StartedAt))
	fmt.Printf("  Finished : %s\n", shortTime(sess.FinishedAt))
	fmt.Printf("  Files    : %d (%d failed)\n", sess.TotalFiles, sess.FailedFiles)
	fmt.Printf("  Findings : %d\n", sess.Findings)
	fmt.Printf("  Fixes    : %d applied\n", sess.AppliedFixes)
	fmt.Println()

	results, err := store.SessionResults(ctx, sess.ID)
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Println(res.FilePath)
		if res.ErrorMsg != "" {
			fmt.Printf("  error: %s\n\n", res.ErrorMsg)
			continue
		}

		findings, err := store.ResultFindings(ctx, res.ID)
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			fmt.Println("  no findings")
		}
		for _, f := range findings {
			if f.Line > 0 {
				fmt.Printf("  [%s] L%d %s\n", f.Category, f.Line, f.Message)
			} else {
				fmt.Printf("  [%s] %s\n", f.Category, f.Message)
			}
		}

		fixes, err := store.ResultFixes(ctx, res.ID)
		if err != nil {
			return err
		}
		for _, fx := range fixes {
			fmt.Printf("  fix #%d (%s): %s\n", fx.FixID, fx.Status, fx.Title)
			if fx.Reason != "" {
				fmt.Printf("    reason: %s\n", fx.Reason)
			}
		}
		fmt.Println()
	}

	commits, err := store.SessionCommits(ctx, sess.ID)
	if err != nil {
		return err
	}
	if len(commits) > 0 {
		fmt.Println("Commits:")
		for _, c := range commits {
			fmt.Printf("  %s  fix #%d  %s\n", shortCommit(c.CommitSHA), c.FixID, shortTime(c.CreatedAt))
		}
	}
	return nil
}

// shortTime reformats a stored RFC3339 stamp for table output, in local
// time. Unparseable values come back unchanged.
func shortTime(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("2006-01-02 15:04")
}

func shortCommit(sha string) string {
	if len(sha) <= 8 {
		return sha
	}
	return sha[:8]
}
