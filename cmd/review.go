package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/CosmoTheDev/ctrlreview/internal/agent"
	"github.com/CosmoTheDev/ctrlreview/internal/ai"
	"github.com/CosmoTheDev/ctrlreview/internal/analyzer"
	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/internal/history"
	"github.com/CosmoTheDev/ctrlreview/internal/notify"
	"github.com/CosmoTheDev/ctrlreview/internal/profiles"
	"github.com/CosmoTheDev/ctrlreview/internal/render"
	"github.com/CosmoTheDev/ctrlreview/models"
	"github.com/spf13/cobra"
)

var (
	reviewProvider      string
	reviewModel         string
	reviewLanguage      string
	reviewShowFixes     bool
	reviewApply         bool
	reviewAutoApply     bool
	reviewHumanReadable bool
	reviewIgnore        []string
	reviewRecursive     bool
	reviewNoRecursive   bool
	reviewProfile       string
	reviewWorkers       int
)

var reviewFilesCmd = &cobra.Command{
	Use:   "review-files <path>...",
	Short: "Review files or directories with AI",
	Long: `Runs the static analyzer and the configured AI provider over the given
files. Directories are walked recursively for Python sources.

Fixes: --show-fixes asks the model for patches and prints them,
--apply additionally applies each one after a confirmation prompt, and
--auto-apply applies the whole batch without asking. Each applied fix
becomes its own git commit.

Examples:
  ctrlreview review-files app.py
  ctrlreview review-files src/ --show-fixes
  ctrlreview review-files src/ --show-fixes --apply
  ctrlreview review-files src/ --show-fixes --auto-apply
  ctrlreview review-files . --ignore "tests/*" --ignore "migrations/*"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReviewFiles,
}

func init() {
	reviewFilesCmd.Flags().StringVar(&reviewProvider, "provider", "",
		"AI provider: openai|azure|claude|deepseek|local (overrides config)")
	reviewFilesCmd.Flags().StringVar(&reviewModel, "model", "",
		"Model name (overrides config)")
	reviewFilesCmd.Flags().StringVar(&reviewLanguage, "language", "",
		"Response language: en|pt-BR|es (overrides config)")
	reviewFilesCmd.Flags().BoolVar(&reviewShowFixes, "show-fixes", false,
		"Ask the model for suggested fixes and print them")
	reviewFilesCmd.Flags().BoolVar(&reviewApply, "apply", false,
		"Apply suggested fixes, confirming each one (requires --show-fixes)")
	reviewFilesCmd.Flags().BoolVar(&reviewAutoApply, "auto-apply", false,
		"Apply suggested fixes without confirmation (requires --show-fixes)")
	reviewFilesCmd.Flags().BoolVar(&reviewHumanReadable, "human-readable", false,
		"Styled terminal output instead of plain text")
	reviewFilesCmd.Flags().StringSliceVar(&reviewIgnore, "ignore", nil,
		"Glob pattern to exclude (repeatable, adds to config)")
	reviewFilesCmd.Flags().BoolVar(&reviewRecursive, "recursive", true,
		"Recurse into directories")
	reviewFilesCmd.Flags().BoolVar(&reviewNoRecursive, "no-recursive", false,
		"Only review files named directly (directories list one level)")
	reviewFilesCmd.Flags().StringVar(&reviewProfile, "profile", "",
		"Review guideline profile (overrides config)")
	reviewFilesCmd.Flags().IntVar(&reviewWorkers, "workers", 0,
		"Files reviewed in parallel (overrides config)")
}

func runReviewFiles(cmd *cobra.Command, args []string) error {
	// Flag combinations are rejected before any config or provider work.
	if reviewAutoApply && !reviewShowFixes {
		return fmt.Errorf("--auto-apply requires --show-fixes")
	}
	if reviewApply && !reviewShowFixes {
		return fmt.Errorf("--apply requires --show-fixes")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful stop on SIGINT/SIGTERM: in-flight files finish or are marked
	// cancelled, and the report still prints.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		fmt.Println("\nStopping review gracefully...")
		cancel()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := applyReviewFlags(cmd, cfg); err != nil {
		return err
	}

	recursive := reviewRecursive && !reviewNoRecursive
	files, err := agent.CollectFiles(args, cfg.Analysis.IgnorePatterns, recursive)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("No Python files matched the given paths; nothing to review.")
		return nil
	}

	provider, err := ai.New(cfg.Provider)
	if err != nil {
		return err
	}

	if name := activeProfile(cfg); name != "" {
		prof, err := profiles.Load(name, profilesDir(cfg))
		if err != nil {
			return fmt.Errorf("loading profile %q: %w", name, err)
		}
		ctx = profiles.ToContext(ctx, prof)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Printf("Reviewing %d file(s) with %s", len(files), provider.Name())
	if cfg.Provider.Model != "" {
		fmt.Printf(" (%s)", cfg.Provider.Model)
	}
	fmt.Println()
	fmt.Println()

	opts := agent.SessionOptions{IncludeFixes: reviewShowFixes}
	if reviewShowFixes && (reviewApply || reviewAutoApply) {
		applier := &agent.Applier{}
		if !reviewAutoApply {
			applier.Confirm = agent.InteractiveConfirm()
		}
		opts.Applier = applier
	}

	notifier := notify.NewDispatcher(cfg.Notify)
	orch := agent.NewOrchestrator(cfg, provider, analyzer.Build(cfg.Analysis.PylintConfig))

	report, err := orch.Run(ctx, files, opts)
	if err != nil {
		notifier.Notify(ctx, notify.Event{
			Type:  notify.EventSessionFailed,
			Title: "ctrlreview session failed",
			Body:  err.Error(),
		})
		return err
	}

	fmt.Print(render.Report(report, render.Options{
		ShowFixes:     reviewShowFixes,
		HumanReadable: cfg.Output.HumanReadable,
	}))

	if _, err := history.NewStore(db).SaveReport(ctx, report); err != nil {
		slog.Warn("Could not save session to history", "session", report.SessionID, "error", err)
	}

	notifyOutcome(ctx, notifier, report, "")

	if failed := report.FailedFiles(); failed > 0 {
		return &partialFailureError{failed: failed, total: len(report.Results)}
	}
	return nil
}

// applyReviewFlags folds review-files CLI overrides into the loaded config.
func applyReviewFlags(cmd *cobra.Command, cfg *config.Config) error {
	if reviewProvider != "" {
		cfg.Provider.Name = strings.ToLower(strings.TrimSpace(reviewProvider))
	}
	if reviewModel != "" {
		cfg.Provider.Model = reviewModel
	}
	if reviewLanguage != "" {
		lang, err := normalizeLanguage(reviewLanguage)
		if err != nil {
			return err
		}
		cfg.Output.Language = lang
	}
	if cmd.Flags().Changed("human-readable") {
		cfg.Output.HumanReadable = reviewHumanReadable
	}
	if len(reviewIgnore) > 0 {
		cfg.Analysis.IgnorePatterns = append(cfg.Analysis.IgnorePatterns, reviewIgnore...)
	}
	if reviewProfile != "" {
		cfg.Review.Profile = reviewProfile
	}
	if reviewWorkers > 0 {
		cfg.Review.Workers = reviewWorkers
	}
	return nil
}

// normalizeLanguage validates a --language value and returns its canonical
// form.
func normalizeLanguage(lang string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en":
		return "en", nil
	case "pt-br":
		return "pt-BR", nil
	case "es":
		return "es", nil
	}
	return "", &config.Error{
		Key:    "output.language",
		Reason: fmt.Sprintf("unsupported language %q (expected en, pt-BR, or es)", lang),
	}
}

// activeProfile returns the profile name selected for this run, if any.
func activeProfile(cfg *config.Config) string {
	if reviewProfile != "" {
		return reviewProfile
	}
	return cfg.Review.Profile
}

func profilesDir(cfg *config.Config) string {
	if cfg.Review.ProfilesDir != "" {
		return cfg.Review.ProfilesDir
	}
	return profiles.DefaultDir()
}

// notifyOutcome dispatches the session-end events. The dispatcher logs and
// swallows channel failures; notifications never change the exit code.
func notifyOutcome(ctx context.Context, d *notify.Dispatcher, report *models.SessionReport, url string) {
	summary := fmt.Sprintf("%s: %d files, %d failed, %d findings.",
		report.SessionID, len(report.Results), report.FailedFiles(), report.TotalFindings())

	evt := notify.Event{
		Type:      notify.EventSessionCompleted,
		Title:     "ctrlreview session finished",
		Body:      summary,
		URL:       url,
		SessionID: report.SessionID,
	}
	if report.FailedFiles() > 0 {
		evt.Type = notify.EventSessionFailed
		evt.Title = "ctrlreview session finished with failures"
	}
	d.Notify(ctx, evt)

	if applied := report.AppliedFixes(); applied > 0 {
		d.Notify(ctx, notify.Event{
			Type:      notify.EventFixesApplied,
			Title:     fmt.Sprintf("ctrlreview applied %d fixes", applied),
			Body:      summary,
			SessionID: report.SessionID,
		})
	}
	if url != "" {
		d.Notify(ctx, notify.Event{
			Type:      notify.EventPRCommented,
			Title:     "ctrlreview posted a review",
			Body:      summary,
			URL:       url,
			SessionID: report.SessionID,
		})
	}
}
