package cmd

import "github.com/spf13/cobra"

var reviewMRCmd = &cobra.Command{
	Use:   "review-mr <project> <mr-iid>",
	Short: "Review a GitLab merge request and comment on it",
	Long: `Fetches the merge request, checks out its head, reviews the changed
Python files, and posts the results back as a single MR note. The project
is the namespaced path ("group/project"); the IID is the number shown in
the GitLab UI.

Requires GITLAB_TOKEN in the environment. Self-managed instances are
supported via git.gitlab_host in the config.

Examples:
  ctrlreview review-mr acme/billing 57
  ctrlreview review-mr acme/billing 57 --no-post`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHostedReview("gitlab", args[0], args[1])
	},
}

func init() {
	reviewMRCmd.Flags().BoolVar(&prNoPost, "no-post", false,
		"Review without posting a note")
	reviewMRCmd.Flags().StringVar(&prProfile, "profile", "",
		"Review guideline profile (overrides config)")
	reviewMRCmd.Flags().StringVar(&prLanguage, "language", "",
		"Response language: en|pt-BR|es (overrides config)")
}
