package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ctrlreview",
	Short: "AI-assisted code review for the terminal, CI, and pull requests",
	Long: `ctrlreview runs a static analyzer and a large-language-model provider
over your source files, turns the free-form response into structured
findings and suggested patches, and — on request — applies accepted
patches as individual git commits.

Get started:
  ctrlreview init            Interactive setup wizard
  ctrlreview doctor          Verify tools and credentials
  ctrlreview review-files    Review files or directories
  ctrlreview review-pr       Review a GitHub pull request and comment on it
  ctrlreview review-mr       Review a GitLab merge request and comment on it
  ctrlreview serve           Run the persistent review bot (REST + webhooks)
  ctrlreview ui              Browse past review sessions in the terminal`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// partialFailureError marks a session that finished but left at least one
// file without a successful review. Execute maps it to exit code 2 so CI
// can tell "review ran with failures" from "review could not run".
type partialFailureError struct {
	failed int
	total  int
}

func (e *partialFailureError) Error() string {
	return fmt.Sprintf("%d of %d files failed review", e.failed, e.total)
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var partial *partialFailureError
		if errors.As(err, &partial) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.ctrlreview/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		initCmd,
		reviewFilesCmd,
		reviewPRCmd,
		reviewMRCmd,
		serveCmd,
		historyCmd,
		uiCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
