package agent

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CosmoTheDev/ctrlreview/models"
)

const applierBase = "import os\nprint(os.name)\n"

const applierPatch = `--- a/main.py
+++ b/main.py
@@ -1,2 +1,2 @@
 import os
-print(os.name)
+print(os.getcwd())
`

const applierPatched = "import os\nprint(os.getcwd())\n"

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// initTestRepo creates a git repository with main.py committed and returns
// the repo dir and the tracked file's path.
func initTestRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	mustGit(t, dir, "init")
	mustGit(t, dir, "config", "user.email", "review@test.local")
	mustGit(t, dir, "config", "user.name", "review-test")
	mustGit(t, dir, "config", "commit.gpgsign", "false")

	file := filepath.Join(dir, "main.py")
	if err := os.WriteFile(file, []byte(applierBase), 0o644); err != nil {
		t.Fatalf("write main.py: %v", err)
	}
	mustGit(t, dir, "add", "main.py")
	mustGit(t, dir, "commit", "-m", "initial")
	return dir, file
}

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	if err := runGit(dir, args...); err != nil {
		t.Fatalf("git %s: %v", strings.Join(args, " "), err)
	}
}

func proposedFix(id int, target, patch string, base []byte) *models.SuggestedFix {
	return &models.SuggestedFix{
		ID:          id,
		TargetFile:  target,
		Title:       "Use os.getcwd",
		Description: "Replace os.name with os.getcwd().",
		Patch:       patch,
		BaseHash:    models.HashContent(base),
		Status:      models.FixProposed,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(b)
}

func TestApplyBatchAppliesAndCommits(t *testing.T) {
	requireGit(t)
	dir, file := initTestRepo(t)

	fix := proposedFix(1, file, applierPatch, []byte(applierBase))
	a := &Applier{}
	commits, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{fix})
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}

	if fix.Status != models.FixApplied {
		t.Fatalf("expected Applied, got %s (%s)", fix.Status, fix.Reason)
	}
	if got := readFile(t, file); got != applierPatched {
		t.Fatalf("unexpected file content:\n%s", got)
	}
	if len(commits) != 1 || commits[0].FixID != 1 {
		t.Fatalf("unexpected commits: %+v", commits)
	}
	head, err := headCommit(dir)
	if err != nil {
		t.Fatalf("head commit: %v", err)
	}
	if commits[0].CommitID != head {
		t.Fatalf("commit record %s != HEAD %s", commits[0].CommitID, head)
	}

	msg, err := gitOutput(dir, "log", "-1", "--pretty=%B")
	if err != nil {
		t.Fatalf("git log: %v", err)
	}
	if !strings.HasPrefix(msg, "refactor: Use os.getcwd") {
		t.Fatalf("unexpected commit subject: %q", msg)
	}
	if !strings.Contains(msg, "- Replace os.name with os.getcwd().") {
		t.Fatalf("commit body missing description bullet: %q", msg)
	}
}

func TestApplyStaleBaseRejected(t *testing.T) {
	requireGit(t)
	_, file := initTestRepo(t)

	fix := proposedFix(1, file, applierPatch, []byte("something else entirely\n"))
	a := &Applier{}
	commits, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{fix})
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if len(commits) != 0 {
		t.Fatalf("expected no commits, got %d", len(commits))
	}
	if fix.Status != models.FixRejected || fix.Reason != "stale base" {
		t.Fatalf("expected Rejected(stale base), got %s (%s)", fix.Status, fix.Reason)
	}
	if got := readFile(t, file); got != applierBase {
		t.Fatalf("file was modified:\n%s", got)
	}
}

func TestApplyConflictFailsWithoutMutation(t *testing.T) {
	requireGit(t)
	_, file := initTestRepo(t)

	// Base hash matches, but the hunk context names different lines.
	conflicting := `--- a/main.py
+++ b/main.py
@@ -1,2 +1,2 @@
 import sys
-print(sys.argv)
+print(sys.path)
`
	fix := proposedFix(1, file, conflicting, []byte(applierBase))
	a := &Applier{}
	if _, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{fix}); err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if fix.Status != models.FixFailed || fix.Reason != "patch does not apply" {
		t.Fatalf("expected Failed(patch does not apply), got %s (%s)", fix.Status, fix.Reason)
	}
	if got := readFile(t, file); got != applierBase {
		t.Fatalf("file was modified:\n%s", got)
	}
}

func TestApplyUntrackedRejected(t *testing.T) {
	requireGit(t)
	dir, _ := initTestRepo(t)

	loose := filepath.Join(dir, "loose.py")
	if err := os.WriteFile(loose, []byte(applierBase), 0o644); err != nil {
		t.Fatalf("write loose.py: %v", err)
	}

	fix := proposedFix(1, loose, applierPatch, []byte(applierBase))
	a := &Applier{}
	if _, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{fix}); err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if fix.Status != models.FixRejected || fix.Reason != "file not tracked by git" {
		t.Fatalf("expected Rejected(file not tracked by git), got %s (%s)", fix.Status, fix.Reason)
	}
}

func TestApplyUserDeclined(t *testing.T) {
	requireGit(t)
	_, file := initTestRepo(t)

	fix := proposedFix(1, file, applierPatch, []byte(applierBase))
	a := &Applier{Confirm: func(*models.SuggestedFix) (bool, error) { return false, nil }}
	commits, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{fix})
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if len(commits) != 0 {
		t.Fatalf("expected no commits, got %d", len(commits))
	}
	if fix.Status != models.FixRejected || fix.Reason != "user declined" {
		t.Fatalf("expected Rejected(user declined), got %s (%s)", fix.Status, fix.Reason)
	}
	if got := readFile(t, file); got != applierBase {
		t.Fatalf("file was modified:\n%s", got)
	}
}

func TestApplyBatchFixesAreIndependent(t *testing.T) {
	requireGit(t)
	_, file := initTestRepo(t)

	// Fix 2's base hash is computed against the original content, which fix
	// 1 rewrites, so the sequential re-read must reject it as stale. Fix 3
	// targets the post-fix-1 content and still applies.
	followupPatch := `--- a/main.py
+++ b/main.py
@@ -1,2 +1,2 @@
 import os
-print(os.getcwd())
+print(os.path.curdir)
`
	fix1 := proposedFix(1, file, applierPatch, []byte(applierBase))
	fix2 := proposedFix(2, file, applierPatch, []byte(applierBase))
	fix3 := proposedFix(3, file, followupPatch, []byte(applierPatched))

	a := &Applier{}
	commits, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{fix1, fix2, fix3})
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}

	if fix1.Status != models.FixApplied {
		t.Fatalf("fix1: expected Applied, got %s (%s)", fix1.Status, fix1.Reason)
	}
	if fix2.Status != models.FixRejected || fix2.Reason != "stale base" {
		t.Fatalf("fix2: expected Rejected(stale base), got %s (%s)", fix2.Status, fix2.Reason)
	}
	if fix3.Status != models.FixApplied {
		t.Fatalf("fix3: expected Applied, got %s (%s)", fix3.Status, fix3.Reason)
	}
	if len(commits) != 2 || commits[0].FixID != 1 || commits[1].FixID != 3 {
		t.Fatalf("unexpected commits: %+v", commits)
	}
	if got := readFile(t, file); got != "import os\nprint(os.path.curdir)\n" {
		t.Fatalf("unexpected final content:\n%s", got)
	}
}

func TestApplyCommitFailureRevertsWrite(t *testing.T) {
	requireGit(t)
	dir, file := initTestRepo(t)

	// A failing pre-commit hook makes the commit step fail after the write.
	mustGit(t, dir, "config", "core.hooksPath", ".git/hooks")
	hookDir := filepath.Join(dir, ".git", "hooks")
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		t.Fatalf("mkdir hooks: %v", err)
	}
	hook := filepath.Join(hookDir, "pre-commit")
	if err := os.WriteFile(hook, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write hook: %v", err)
	}

	fix1 := proposedFix(1, file, applierPatch, []byte(applierBase))
	fix2 := proposedFix(2, file, applierPatch, []byte(applierBase))
	a := &Applier{}
	commits, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{fix1, fix2})

	var vcErr *VersionControlError
	if !errors.As(err, &vcErr) {
		t.Fatalf("expected VersionControlError, got %v", err)
	}
	if len(commits) != 0 {
		t.Fatalf("expected no commits, got %+v", commits)
	}
	if fix1.Status != models.FixFailed || fix1.Reason != "commit failed" {
		t.Fatalf("fix1: expected Failed(commit failed), got %s (%s)", fix1.Status, fix1.Reason)
	}
	// The batch is abandoned past the commit failure.
	if fix2.Status != models.FixProposed {
		t.Fatalf("fix2: expected to stay Proposed, got %s", fix2.Status)
	}
	if got := readFile(t, file); got != applierBase {
		t.Fatalf("file not restored:\n%s", got)
	}
	status, err := gitOutput(dir, "status", "--porcelain")
	if err != nil {
		t.Fatalf("git status: %v", err)
	}
	if status != "" {
		t.Fatalf("working tree dirty after revert:\n%s", status)
	}
}

func TestApplyBatchStopsOnCancelledContext(t *testing.T) {
	requireGit(t)
	_, file := initTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fix := proposedFix(1, file, applierPatch, []byte(applierBase))
	a := &Applier{}
	if _, err := a.ApplyBatch(ctx, []*models.SuggestedFix{fix}); err == nil {
		t.Fatal("expected a context error")
	}
	if fix.Status != models.FixProposed {
		t.Fatalf("expected fix to stay Proposed, got %s", fix.Status)
	}
	if got := readFile(t, file); got != applierBase {
		t.Fatalf("file was modified:\n%s", got)
	}
}

func TestApplySkipsTerminalFixes(t *testing.T) {
	requireGit(t)
	_, file := initTestRepo(t)

	failed := &models.SuggestedFix{
		ID:         1,
		TargetFile: file,
		Title:      "Broken suggestion",
		Status:     models.FixFailed,
		Reason:     "patch does not parse",
	}
	a := &Applier{}
	commits, err := a.ApplyBatch(context.Background(), []*models.SuggestedFix{failed})
	if err != nil {
		t.Fatalf("apply batch: %v", err)
	}
	if len(commits) != 0 {
		t.Fatalf("expected no commits, got %d", len(commits))
	}
	if failed.Reason != "patch does not parse" {
		t.Fatalf("terminal fix was touched: %+v", failed)
	}
}
