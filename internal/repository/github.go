package repository

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/CosmoTheDev/ctrlreview/models"
)

// GitHubHost implements Host for GitHub and GitHub Enterprise.
type GitHubHost struct {
	client *gogithub.Client
	token  string
}

// NewGitHub creates a GitHub host client. host selects an enterprise
// installation; empty means github.com.
func NewGitHub(token, host string) (*GitHubHost, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	// Support GitHub Enterprise by overriding the base URL.
	if host != "" && host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", host)
		upload := fmt.Sprintf("https://%s/api/uploads/", host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubHost{client: client, token: token}, nil
}

func (g *GitHubHost) Name() string      { return "github" }
func (g *GitHubHost) AuthToken() string { return g.token }

func (g *GitHubHost) GetPR(ctx context.Context, project string, number int) (*models.PullRequest, error) {
	owner, repo, err := splitProject(project)
	if err != nil {
		return nil, err
	}
	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("getting PR %s#%d: %w", project, number, err)
	}
	head := pr.GetHead()
	return &models.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		State:        pr.GetState(),
		BaseRef:      pr.GetBase().GetRef(),
		HeadRef:      head.GetRef(),
		HeadSHA:      head.GetSHA(),
		HeadCloneURL: head.GetRepo().GetCloneURL(),
		HTMLURL:      pr.GetHTMLURL(),
		CreatedAt:    pr.GetCreatedAt().Time,
	}, nil
}

func (g *GitHubHost) ListPRFiles(ctx context.Context, project string, number int) ([]models.ChangedFile, error) {
	owner, repo, err := splitProject(project)
	if err != nil {
		return nil, err
	}
	var out []models.ChangedFile
	opts := &gogithub.ListOptions{PerPage: 100}
	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for %s#%d: %w", project, number, err)
		}
		for _, f := range files {
			if f == nil {
				continue
			}
			out = append(out, models.ChangedFile{
				Path:      f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *GitHubHost) PostComment(ctx context.Context, project string, number int, body string) error {
	owner, repo, err := splitProject(project)
	if err != nil {
		return err
	}
	// PR-level comments go through the issues API.
	_, _, err = g.client.Issues.CreateComment(ctx, owner, repo, number, &gogithub.IssueComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("posting comment on %s#%d: %w", project, number, err)
	}
	return nil
}
