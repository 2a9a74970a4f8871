package repository

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/CosmoTheDev/ctrlreview/models"
)

const mrDiffsPerPage = 100

// GitLabHost implements Host for GitLab, cloud and self-managed.
type GitLabHost struct {
	client *gitlab.Client
	token  string
	host   string
}

// NewGitLab creates a GitLab host client. host selects a self-managed
// installation; empty means gitlab.com.
func NewGitLab(token, host string) (*GitLabHost, error) {
	opts := []gitlab.ClientOptionFunc{}
	if host != "" && host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabHost{client: client, token: token, host: host}, nil
}

func (g *GitLabHost) Name() string      { return "gitlab" }
func (g *GitLabHost) AuthToken() string { return g.token }

func (g *GitLabHost) GetPR(ctx context.Context, project string, number int) (*models.PullRequest, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(project, int64(number), nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("getting MR %s!%d: %w", project, number, err)
	}

	// The MR head may live in a fork; resolve the source project for its
	// clone URL.
	srcID := mr.SourceProjectID
	if srcID == 0 {
		srcID = mr.TargetProjectID
	}
	src, _, err := g.client.Projects.GetProject(srcID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("resolving source project for MR %s!%d: %w", project, number, err)
	}

	out := &models.PullRequest{
		Number:       int(mr.IID),
		Title:        mr.Title,
		State:        mr.State,
		BaseRef:      mr.TargetBranch,
		HeadRef:      mr.SourceBranch,
		HeadSHA:      mr.SHA,
		HeadCloneURL: src.HTTPURLToRepo,
		HTMLURL:      mr.WebURL,
	}
	if mr.Author != nil {
		out.Author = mr.Author.Username
	}
	if mr.CreatedAt != nil {
		out.CreatedAt = *mr.CreatedAt
	}
	return out, nil
}

func (g *GitLabHost) ListPRFiles(ctx context.Context, project string, number int) ([]models.ChangedFile, error) {
	var out []models.ChangedFile
	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: mrDiffsPerPage, Page: 1},
	}
	for {
		diffs, _, err := g.client.MergeRequests.ListMergeRequestDiffs(project, int64(number), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing changes for %s!%d: %w", project, number, err)
		}
		for _, d := range diffs {
			if d == nil {
				continue
			}
			cf := models.ChangedFile{Path: d.NewPath, Status: "modified"}
			switch {
			case d.NewFile:
				cf.Status = "added"
			case d.DeletedFile:
				cf.Status = "removed"
				cf.Path = d.OldPath
			case d.RenamedFile:
				cf.Status = "renamed"
			}
			cf.Additions, cf.Deletions = countDiffLines(d.Diff)
			out = append(out, cf)
		}
		if len(diffs) < mrDiffsPerPage {
			break
		}
		opts.Page++
	}
	return out, nil
}

func (g *GitLabHost) PostComment(ctx context.Context, project string, number int, body string) error {
	_, _, err := g.client.Notes.CreateMergeRequestNote(project, int64(number), &gitlab.CreateMergeRequestNoteOptions{
		Body: &body,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("posting note on %s!%d: %w", project, number, err)
	}
	return nil
}

// countDiffLines tallies added and removed lines in a unified diff body.
// The GitLab diff API does not report per-file counts directly.
func countDiffLines(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
