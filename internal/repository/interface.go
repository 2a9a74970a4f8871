package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// Host abstracts the operations review commands need from a Git hosting
// platform. GitHub pull requests and GitLab merge requests map onto the
// same shape: project is "owner/repo" on GitHub or the namespaced path on
// GitLab, number is the PR number or the MR IID.
type Host interface {
	// Name identifies the platform ("github" or "gitlab").
	Name() string

	// GetPR fetches one change request, including the head clone URL and
	// head SHA needed to check the change out locally.
	GetPR(ctx context.Context, project string, number int) (*models.PullRequest, error)

	// ListPRFiles returns every file the change request touches.
	ListPRFiles(ctx context.Context, project string, number int) ([]models.ChangedFile, error)

	// PostComment publishes a review comment on the change request.
	PostComment(ctx context.Context, project string, number int, body string) error

	// AuthToken returns the credential used for git clone.
	AuthToken() string
}

// New returns the Host for the given platform. Tokens come from the
// environment and are required before any API call is made.
func New(platform string, cfg *config.Config) (Host, error) {
	switch platform {
	case "github":
		if cfg.Git.GitHubToken == "" {
			return nil, &config.Error{Key: "git.github_token", Reason: "GITHUB_TOKEN is not set"}
		}
		return NewGitHub(cfg.Git.GitHubToken, cfg.Git.GitHubHost)
	case "gitlab":
		if cfg.Git.GitLabToken == "" {
			return nil, &config.Error{Key: "git.gitlab_token", Reason: "GITLAB_TOKEN is not set"}
		}
		return NewGitLab(cfg.Git.GitLabToken, cfg.Git.GitLabHost)
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

// splitProject splits "owner/repo" into its two parts.
func splitProject(project string) (owner, repo string, err error) {
	parts := strings.SplitN(project, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q; expected owner/repo", project)
	}
	return parts[0], parts[1], nil
}
