package agent

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/render"
	"github.com/CosmoTheDev/ctrlreview/internal/repository"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// PRReviewer runs a review session against a pull request's changed files
// and posts the results back as a single comment.
type PRReviewer struct {
	cfg    *config.Config
	host   repository.Host
	cloner *repository.CloneManager
	orch   *Orchestrator
	post   bool
}

// NewPRReviewer creates a PRReviewer. post controls whether the rendered
// comment is published on the change request.
func NewPRReviewer(cfg *config.Config, host repository.Host, orch *Orchestrator, post bool) *PRReviewer {
	return &PRReviewer{
		cfg:    cfg,
		host:   host,
		cloner: repository.NewCloneManager(cfg.Git.CloneDir),
		orch:   orch,
		post:   post,
	}
}

// Review fetches the change request, checks out its head, reviews the
// changed Python files, and posts the rendered comment. Fixes are parsed
// and shown but never applied in this mode. The returned report carries
// repo-relative paths.
func (p *PRReviewer) Review(ctx context.Context, project string, number int) (*models.SessionReport, *models.PullRequest, error) {
	// Fetch the change request and its file list.
	pr, err := p.host.GetPR(ctx, project, number)
	if err != nil {
		return nil, nil, err
	}
	changed, err := p.host.ListPRFiles(ctx, project, number)
	if err != nil {
		return nil, pr, err
	}

	slog.Info("Reviewing change request",
		"project", project,
		"number", number,
		"title", pr.Title,
		"head", pr.HeadRef,
		"changed_files", len(changed),
	)

	// Check out the head branch.
	clone, err := p.cloner.Clone(ctx, pr.HeadCloneURL, p.host.AuthToken(), pr.HeadRef)
	if err != nil {
		return nil, pr, err
	}
	defer p.cloner.Cleanup(clone)

	if pr.HeadSHA != "" && clone.Commit != pr.HeadSHA {
		slog.Warn("Head moved since the change request was fetched",
			"expected", pr.HeadSHA, "got", clone.Commit)
	}

	local, rel := selectChangedFiles(clone.LocalPath, changed)

	report, err := p.orch.Run(ctx, local, SessionOptions{IncludeFixes: true})
	if err != nil {
		return nil, pr, err
	}

	// Report repo-relative paths, not checkout paths.
	for _, res := range report.Results {
		r, ok := rel[res.FilePath]
		if !ok {
			continue
		}
		res.FilePath = r
		for i := range res.Findings {
			res.Findings[i].FilePath = r
		}
		for _, fix := range res.Fixes {
			fix.TargetFile = r
		}
	}

	if len(local) == 0 {
		slog.Info("No Python files in the change set; nothing to review")
		return report, pr, nil
	}

	if p.post {
		comment := render.Comment(report)
		if err := p.host.PostComment(ctx, project, number, comment); err != nil {
			return report, pr, err
		}
		slog.Info("Posted review comment", "project", project, "number", number)
	}

	return report, pr, nil
}

// selectChangedFiles picks the reviewable Python files out of a change set
// and maps their checkout paths back to repo-relative ones. Removed files,
// files missing from the checkout, and paths escaping the checkout root are
// skipped.
func selectChangedFiles(root string, changed []models.ChangedFile) ([]string, map[string]string) {
	var paths []string
	rel := make(map[string]string)
	for _, cf := range changed {
		if cf.Status == "removed" {
			continue
		}
		if !strings.EqualFold(filepath.Ext(cf.Path), ".py") {
			continue
		}
		path, err := safeRepoJoin(root, cf.Path)
		if err != nil {
			slog.Warn("Skipping changed file outside the repository",
				"path", cf.Path, "error", err)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			slog.Warn("Changed file missing from checkout", "path", cf.Path, "error", err)
			continue
		}
		paths = append(paths, path)
		rel[path] = cf.Path
	}
	return paths, rel
}
