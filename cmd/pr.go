package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
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
	"github.com/CosmoTheDev/ctrlreview/internal/repository"
	"github.com/spf13/cobra"
)

var (
	prNoPost   bool
	prProfile  string
	prLanguage string
)

var reviewPRCmd = &cobra.Command{
	Use:   "review-pr <owner/repo> <pr-number>",
	Short: "Review a GitHub pull request and comment on it",
	Long: `Fetches the pull request, checks out its head, reviews the changed
Python files, and posts the results back as a single PR comment.
Suggested fixes are included in the comment but never applied.

Requires GITHUB_TOKEN in the environment.

Examples:
  ctrlreview review-pr acme/billing 482
  ctrlreview review-pr acme/billing 482 --no-post
  ctrlreview review-pr acme/billing 482 --profile security`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHostedReview("github", args[0], args[1])
	},
}

func init() {
	reviewPRCmd.Flags().BoolVar(&prNoPost, "no-post", false,
		"Review without posting a comment")
	reviewPRCmd.Flags().StringVar(&prProfile, "profile", "",
		"Review guideline profile (overrides config)")
	reviewPRCmd.Flags().StringVar(&prLanguage, "language", "",
		"Response language: en|pt-BR|es (overrides config)")
}

// runHostedReview reviews one change request on a hosting platform. It is
// shared by review-pr (github) and review-mr (gitlab); the Host interface
// hides the platform differences.
func runHostedReview(platform, project, numberArg string) error {
	number, err := strconv.Atoi(numberArg)
	if err != nil || number <= 0 {
		return fmt.Errorf("invalid change request number %q", numberArg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	if prLanguage != "" {
		lang, err := normalizeLanguage(prLanguage)
		if err != nil {
			return err
		}
		cfg.Output.Language = lang
	}
	if prProfile != "" {
		cfg.Review.Profile = prProfile
	}

	provider, err := ai.New(cfg.Provider)
	if err != nil {
		return err
	}
	host, err := repository.New(platform, cfg)
	if err != nil {
		return err
	}

	if name := cfg.Review.Profile; name != "" {
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

	notifier := notify.NewDispatcher(cfg.Notify)
	orch := agent.NewOrchestrator(cfg, provider, analyzer.Build(cfg.Analysis.PylintConfig))
	reviewer := agent.NewPRReviewer(cfg, host, orch, !prNoPost)

	fmt.Printf("Reviewing %s %s#%d\n\n", platform, project, number)

	report, pr, err := reviewer.Review(ctx, project, number)
	if err != nil {
		notifier.Notify(ctx, notify.Event{
			Type:  notify.EventSessionFailed,
			Title: "ctrlreview session failed",
			Body:  fmt.Sprintf("%s %s#%d: %v", platform, project, number, err),
		})
		return err
	}

	fmt.Print(render.Report(report, render.Options{
		ShowFixes:     true,
		HumanReadable: cfg.Output.HumanReadable,
	}))

	posted := !prNoPost && len(report.Results) > 0
	if posted && pr != nil && pr.HTMLURL != "" {
		fmt.Printf("\nPosted review comment on %s\n", pr.HTMLURL)
	}

	if _, err := history.NewStore(db).SaveReport(ctx, report); err != nil {
		slog.Warn("Could not save session to history", "session", report.SessionID, "error", err)
	}

	url := ""
	if posted && pr != nil {
		url = pr.HTMLURL
	}
	notifyOutcome(ctx, notifier, report, url)

	if failed := report.FailedFiles(); failed > 0 {
		return &partialFailureError{failed: failed, total: len(report.Results)}
	}
	return nil
}
