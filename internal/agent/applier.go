package agent

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/CosmoTheDev/ctrlreview/internal/patch"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// VersionControlError reports a git failure after a fix was already written
// to the working tree. Tree state past that point cannot be trusted, so the
// remaining fixes for the file are abandoned.
type VersionControlError struct {
	Path string
	Err  error
}

func (e *VersionControlError) Error() string {
	return fmt.Sprintf("version control failure on %s: %v", e.Path, e.Err)
}

func (e *VersionControlError) Unwrap() error { return e.Err }

// Applier walks a file's suggested fixes through Proposed → Applied /
// Rejected / Failed, one commit per applied fix. The orchestrator calls it
// from a single goroutine; nothing here is safe for concurrent use.
type Applier struct {
	// Confirm, when set, is asked before each fix touches the tree. A false
	// answer rejects the fix. Nil means auto-apply: proceed without asking,
	// preconditions still run per fix.
	Confirm func(fix *models.SuggestedFix) (bool, error)
}

// ApplyBatch processes one file's fixes in ascending ID order. A Rejected
// or Failed fix never blocks the fixes after it. A commit failure aborts
// the remainder of the batch and comes back as *VersionControlError;
// commits made before the failure are kept and returned.
func (a *Applier) ApplyBatch(ctx context.Context, fixes []*models.SuggestedFix) ([]models.CommitRecord, error) {
	var commits []models.CommitRecord
	for _, fix := range fixes {
		// Cancellation stops new applications. Fixes not yet attempted
		// stay Proposed so the report shows them as undecided.
		if err := ctx.Err(); err != nil {
			return commits, err
		}
		if fix.Status.Terminal() {
			continue
		}
		rec, err := a.applyOne(fix)
		if rec != nil {
			commits = append(commits, *rec)
		}
		if err != nil {
			return commits, err
		}
	}
	return commits, nil
}

// applyOne runs one fix to a terminal state. The three preconditions are
// checked in order against a fresh read of the file, never cached content:
// tracked, base hash match, clean apply.
func (a *Applier) applyOne(fix *models.SuggestedFix) (*models.CommitRecord, error) {
	if a.Confirm != nil {
		ok, err := a.Confirm(fix)
		if err != nil {
			return nil, fmt.Errorf("confirming fix %d: %w", fix.ID, err)
		}
		if !ok {
			fix.MarkRejected("user declined")
			return nil, nil
		}
	}

	root, err := repoRoot(fix.TargetFile)
	if err != nil {
		fix.MarkRejected("file not tracked by git")
		slog.Debug("Fix target outside a git repository", "file", fix.TargetFile, "error", err)
		return nil, nil
	}
	abs, err := filepath.Abs(fix.TargetFile)
	if err != nil {
		fix.MarkRejected("file not tracked by git")
		return nil, nil
	}
	// rev-parse returns the physical path; resolve ours to match before
	// computing the repo-relative name.
	if resolved, rerr := filepath.EvalSymlinks(abs); rerr == nil {
		abs = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		fix.MarkRejected("file not tracked by git")
		return nil, nil
	}
	if !isTracked(root, rel) {
		fix.MarkRejected("file not tracked by git")
		return nil, nil
	}

	cur, err := os.ReadFile(abs) // #nosec G304 -- path comes from the session's reviewed file set
	if err != nil {
		fix.MarkRejected("file not tracked by git")
		return nil, nil
	}
	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(abs); statErr == nil {
		mode = info.Mode().Perm()
	}

	if models.HashContent(cur) != fix.BaseHash {
		fix.MarkRejected("stale base")
		return nil, nil
	}

	parsed, err := patch.Parse(fix.Patch)
	if err != nil {
		fix.MarkFailed("patch does not parse")
		return nil, nil
	}
	updated, err := patch.Apply(cur, parsed)
	if err != nil {
		fix.MarkFailed("patch does not apply")
		return nil, nil
	}

	if err := os.WriteFile(abs, updated, mode); err != nil {
		fix.MarkFailed(fmt.Sprintf("writing file: %v", err))
		return nil, nil
	}

	sha, err := commitFile(root, rel, fix.CommitMessage())
	if err != nil {
		// Unstage and restore the pre-fix bytes so the tree matches the
		// last commit again. A fix is never left written-but-uncommitted.
		if resetErr := runGit(root, "reset", "--", rel); resetErr != nil {
			slog.Debug("Reset after failed commit", "file", fix.TargetFile, "error", resetErr)
		}
		if restoreErr := os.WriteFile(abs, cur, mode); restoreErr != nil {
			slog.Error("Failed to restore file after commit failure",
				"file", fix.TargetFile, "error", restoreErr)
		}
		fix.MarkFailed("commit failed")
		return nil, &VersionControlError{Path: fix.TargetFile, Err: err}
	}

	fix.MarkApplied()
	slog.Info("Fix applied", "file", fix.TargetFile, "fix_id", fix.ID, "commit", sha)
	return &models.CommitRecord{CommitID: sha, FixID: fix.ID, Timestamp: time.Now().UTC()}, nil
}

// InteractiveConfirm returns a Confirm func that asks on the terminal
// before each fix is applied.
func InteractiveConfirm() func(fix *models.SuggestedFix) (bool, error) {
	return func(fix *models.SuggestedFix) (bool, error) {
		var confirmed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Apply fix #%d: %s?", fix.ID, fix.Title)).
					Description(fix.TargetFile).
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			return false, err
		}
		return confirmed, nil
	}
}
