package models

import (
	"strings"
	"testing"
)

func TestCommitMessageFormat(t *testing.T) {
	fix := &SuggestedFix{
		Title:       "Improve calculate_sum parameter naming",
		Description: "Rename x to numbers\nAdd a docstring describing the return value",
	}

	got := fix.CommitMessage()
	want := "refactor: Improve calculate_sum parameter naming\n\n- Rename x to numbers\n- Add a docstring describing the return value"
	if got != want {
		t.Fatalf("commit message mismatch:\ngot:  %q\nwant: %q", got, want)
	}

	// Deterministic: same fields, same message.
	if again := fix.CommitMessage(); again != got {
		t.Fatalf("commit message not deterministic: %q vs %q", again, got)
	}
}

func TestCommitMessageStripsExistingBullets(t *testing.T) {
	fix := &SuggestedFix{
		Title:       "Remove unused import",
		Description: "- drop the os import\n* it is never referenced",
	}
	got := fix.CommitMessage()
	if strings.Contains(got, "- -") || strings.Contains(got, "- *") {
		t.Fatalf("bullets doubled up: %q", got)
	}
	if !strings.Contains(got, "- drop the os import") {
		t.Fatalf("missing description bullet: %q", got)
	}
}

func TestCommitMessageTitleOnly(t *testing.T) {
	fix := &SuggestedFix{Title: "Add docstring"}
	if got := fix.CommitMessage(); got != "refactor: Add docstring" {
		t.Fatalf("expected bare subject, got %q", got)
	}
}

func TestFixStatusTransitionsAreTerminal(t *testing.T) {
	fix := &SuggestedFix{Status: FixProposed}

	if !fix.MarkApplied() {
		t.Fatal("expected Proposed -> Applied to succeed")
	}
	if fix.MarkRejected("late") {
		t.Fatal("expected transition out of Applied to be refused")
	}
	if fix.Status != FixApplied {
		t.Fatalf("status changed after terminal state: %s", fix.Status)
	}

	fix = &SuggestedFix{Status: FixProposed}
	if !fix.MarkRejected("stale base") {
		t.Fatal("expected Proposed -> Rejected to succeed")
	}
	if fix.Reason != "stale base" {
		t.Fatalf("reason not recorded: %q", fix.Reason)
	}
	if fix.MarkApplied() {
		t.Fatal("expected transition out of Rejected to be refused")
	}

	fix = &SuggestedFix{Status: FixProposed}
	if !fix.MarkFailed("patch does not apply") {
		t.Fatal("expected Proposed -> Failed to succeed")
	}
	if fix.MarkFailed("again") {
		t.Fatal("expected repeated Failed transition to be refused")
	}
	if fix.Reason != "patch does not apply" {
		t.Fatalf("reason overwritten: %q", fix.Reason)
	}
}

func TestHashContentStable(t *testing.T) {
	a := HashContent([]byte("def f():\n    return 1\n"))
	b := HashContent([]byte("def f():\n    return 1\n"))
	c := HashContent([]byte("def f():\n    return 2\n"))
	if a != b {
		t.Fatal("hash not stable for identical content")
	}
	if a == c {
		t.Fatal("hash collision for different content")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex digest, got length %d", len(a))
	}
}
