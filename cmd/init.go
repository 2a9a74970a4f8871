package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/profiles"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup wizard for ctrlreview",
	Long: `Walks you through configuring ctrlreview:
  - AI provider and model
  - Response language and output style
  - Git hosting setup (token hints, enterprise hosts)
  - Review defaults and guideline profiles

API keys and tokens are never written to the config file; they are read
from the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY, GITHUB_TOKEN...).`,
	RunE: runInit,
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#14B8A6")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func runInit(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  ctrlreview — AI code review for your terminal"))
	fmt.Println(dimStyle.Render("  Reviews files with a static analyzer plus an LLM, and can apply\n  suggested fixes as individual git commits.\n"))

	// Load existing config or start fresh.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("creating ctrlreview directories: %w", err)
	}

	// --- Step 1: AI provider ---
	fmt.Println(headerStyle.Render("  Step 1/4 · AI Provider"))

	providerName := cfg.Provider.Name
	if providerName == "" {
		providerName = "openai"
	}
	model := cfg.Provider.Model

	providerForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Description("The key comes from the environment, not this file.").
				Options(
					huh.NewOption("OpenAI (OPENAI_API_KEY)", "openai"),
					huh.NewOption("Azure OpenAI (AZURE_OPENAI_KEY + AZURE_OPENAI_ENDPOINT)", "azure"),
					huh.NewOption("Claude (ANTHROPIC_API_KEY)", "claude"),
					huh.NewOption("DeepSeek (DEEPSEEK_API_KEY)", "deepseek"),
					huh.NewOption("Local via Ollama (no key needed)", "local"),
				).
				Value(&providerName),
			huh.NewInput().
				Title("Model").
				Description("Leave blank for the provider default (gpt-4o, claude-sonnet-4-6, deepseek-chat, llama3.2). For Azure this is the deployment name.").
				Placeholder("gpt-4o").
				Value(&model),
		),
	)
	if err := providerForm.Run(); err != nil {
		return err
	}
	cfg.Provider.Name = providerName
	cfg.Provider.Model = strings.TrimSpace(model)

	if env := providerKeyEnv(providerName); env != "" {
		if os.Getenv(env) != "" {
			fmt.Println(successStyle.Render(fmt.Sprintf("  %s is set in your environment.\n", env)))
		} else {
			fmt.Println(warnStyle.Render(fmt.Sprintf("  %s is not set. Add it to your shell profile:", env)))
			fmt.Println(dimStyle.Render(fmt.Sprintf("    export %s=...\n", env)))
		}
	}

	// --- Step 2: Output ---
	fmt.Println(headerStyle.Render("\n  Step 2/4 · Output"))

	language := cfg.Output.Language
	if language == "" {
		language = "en"
	}
	humanReadable := cfg.Output.HumanReadable

	outputForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Response language").
				Options(
					huh.NewOption("English", "en"),
					huh.NewOption("Português (Brasil)", "pt-BR"),
					huh.NewOption("Español", "es"),
				).
				Value(&language),
			huh.NewConfirm().
				Title("Use styled (human-readable) terminal output by default?").
				Value(&humanReadable),
		),
	)
	if err := outputForm.Run(); err != nil {
		return err
	}
	cfg.Output.Language = language
	cfg.Output.HumanReadable = humanReadable

	// --- Step 3: Git hosting ---
	fmt.Println(headerStyle.Render("\n  Step 3/4 · Git Hosting"))
	fmt.Println(dimStyle.Render("  Tokens are read from GITHUB_TOKEN and GITLAB_TOKEN."))
	fmt.Printf("  GITHUB_TOKEN ... %s\n", envStatus("GITHUB_TOKEN"))
	fmt.Printf("  GITLAB_TOKEN ... %s\n\n", envStatus("GITLAB_TOKEN"))

	var customHosts bool
	hostsConfirm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Configure enterprise GitHub or self-managed GitLab hosts?").
				Value(&customHosts),
		),
	)
	if err := hostsConfirm.Run(); err != nil {
		return err
	}
	if customHosts {
		githubHost := cfg.Git.GitHubHost
		gitlabHost := cfg.Git.GitLabHost
		hostsForm := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("GitHub host").
					Description("Leave blank for github.com").
					Placeholder("github.mycompany.com").
					Value(&githubHost),
				huh.NewInput().
					Title("GitLab host").
					Description("Leave blank for gitlab.com").
					Placeholder("gitlab.mycompany.com").
					Value(&gitlabHost),
			),
		)
		if err := hostsForm.Run(); err != nil {
			return err
		}
		cfg.Git.GitHubHost = strings.TrimSpace(githubHost)
		cfg.Git.GitLabHost = strings.TrimSpace(gitlabHost)
	}

	// --- Step 4: Review defaults ---
	fmt.Println(headerStyle.Render("\n  Step 4/4 · Review Defaults"))

	profile := cfg.Review.Profile
	profileForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default review profile").
				Description("Profiles steer the reviewer's focus. Edit them later in ~/.ctrlreview/profiles/.").
				Options(
					huh.NewOption("none — balanced review", ""),
					huh.NewOption("default — general guidance", "default"),
					huh.NewOption("strict — hold nothing back", "strict"),
					huh.NewOption("security — security findings only", "security"),
					huh.NewOption("docs — documentation focus", "docs"),
				).
				Value(&profile),
		),
	)
	if err := profileForm.Run(); err != nil {
		return err
	}
	cfg.Review.Profile = profile

	profDir := profilesDir(cfg)
	if err := profiles.Init(profDir); err != nil {
		fmt.Println(warnStyle.Render("  Could not write bundled profiles: " + err.Error()))
	} else {
		fmt.Printf("  Profiles written to %s\n", dimStyle.Render(profDir))
	}

	// Save config.
	cfgPath, _ := config.ConfigPath(cfgFile)
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("  Setup complete!"))
	fmt.Printf("  Config saved to: %s\n\n", dimStyle.Render(cfgPath))

	fmt.Println(dimStyle.Render("  Next steps:"))
	fmt.Println(dimStyle.Render("    ctrlreview doctor                    — verify tools and credentials"))
	fmt.Println(dimStyle.Render("    ctrlreview review-files <path>       — review files or a directory"))
	fmt.Println(dimStyle.Render("    ctrlreview review-pr <repo> <n>      — review a pull request"))
	fmt.Println(dimStyle.Render("    ctrlreview ui                        — browse past sessions"))
	fmt.Println()

	return nil
}

// providerKeyEnv names the environment variable that holds the credential
// for a provider. Empty means no key is needed.
func providerKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "azure":
		return "AZURE_OPENAI_KEY"
	case "claude":
		return "ANTHROPIC_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	}
	return ""
}

func envStatus(name string) string {
	if os.Getenv(name) != "" {
		return successStyle.Render("set")
	}
	return warnStyle.Render("not set")
}
