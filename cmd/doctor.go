package cmd

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/CosmoTheDev/ctrlreview/internal/ai"
	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/internal/profiles"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify tools, credentials, and system health",
	Long: `Checks that the configured AI provider is reachable, credentials are
set, the database can be opened, and the external tools reviews rely on
(pylint, git) are installed.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== ctrlreview doctor ===")
	fmt.Println()

	// Check database
	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else if cfg.Database.Driver == "mysql" {
			fmt.Printf("OK (%s)\n", db.Driver())
		} else {
			fmt.Printf("OK (%s: %s)\n", db.Driver(), cfg.Database.Path)
		}
		db.Close()
	}

	// Check AI provider
	fmt.Print("AI provider .............. ")
	if cfg.Provider.Name == "" {
		fmt.Println("not configured (run 'ctrlreview init')")
		allOK = false
	} else if provider, err := ai.New(cfg.Provider); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if !provider.IsAvailable(ctx) {
		fmt.Printf("WARN (%s configured but not reachable)\n", provider.Name())
		allOK = false
	} else {
		model := cfg.Provider.Model
		if model == "" {
			model = "default model"
		}
		fmt.Printf("OK (%s / %s)\n", provider.Name(), model)
	}

	// Check hosting tokens
	fmt.Print("GitHub token ............. ")
	if cfg.Git.GitHubToken == "" {
		fmt.Println("not set (review-pr and the webhook bot need GITHUB_TOKEN)")
	} else {
		fmt.Println("OK")
	}
	fmt.Print("GitLab token ............. ")
	if cfg.Git.GitLabToken == "" {
		fmt.Println("not set (review-mr needs GITLAB_TOKEN)")
	} else {
		fmt.Println("OK")
	}

	// Check profiles
	fmt.Print("Profiles ................. ")
	if profs, err := profiles.List(profilesDir(cfg)); err != nil {
		fmt.Printf("WARN (%s)\n", err)
	} else {
		fmt.Printf("OK (%d available)\n", len(profs))
	}

	// Check external tools
	fmt.Println()
	fmt.Println("Tools:")

	fmt.Printf("  %-14s ... ", "pylint")
	if path, err := exec.LookPath("pylint"); err != nil {
		fmt.Println("MISSING (reviews run AI-only; install with: pip install pylint)")
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", path)
	}

	fmt.Printf("  %-14s ... ", "git")
	if path, err := exec.LookPath("git"); err != nil {
		fmt.Println("MISSING (applying fixes requires git)")
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", path)
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed — ctrlreview is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed — run 'ctrlreview init' to fix."))
	}

	return nil
}
