package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FixStatus tracks a suggested fix through its lifecycle.
// Proposed is the only non-terminal state.
type FixStatus string

const (
	FixProposed FixStatus = "proposed"
	FixApplied  FixStatus = "applied"
	FixRejected FixStatus = "rejected"
	FixFailed   FixStatus = "failed"
)

func (s FixStatus) String() string {
	return string(s)
}

// Terminal reports whether the status is final. Applied, Rejected, and
// Failed are never re-entered or left.
func (s FixStatus) Terminal() bool {
	return s == FixApplied || s == FixRejected || s == FixFailed
}

// SuggestedFix is an actionable patch produced by the response parser.
// Only the fix applicator mutates it, and only through the Mark* methods.
type SuggestedFix struct {
	ID          int       `json:"id"          db:"fix_id"`
	TargetFile  string    `json:"target_file" db:"target_file"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Patch       string    `json:"patch"       db:"patch"`     // unified diff, empty when unparseable
	BaseHash    string    `json:"base_hash"   db:"base_hash"` // sha256 of the content the patch was computed against
	Status      FixStatus `json:"status"      db:"status"`
	Reason      string    `json:"reason"      db:"reason"` // populated on Rejected/Failed
}

// MarkApplied transitions the fix to Applied. Returns false if the fix
// already reached a terminal state.
func (f *SuggestedFix) MarkApplied() bool {
	if f.Status.Terminal() {
		return false
	}
	f.Status = FixApplied
	f.Reason = ""
	return true
}

// MarkRejected transitions the fix to Rejected with the given reason.
// Returns false if the fix already reached a terminal state.
func (f *SuggestedFix) MarkRejected(reason string) bool {
	if f.Status.Terminal() {
		return false
	}
	f.Status = FixRejected
	f.Reason = reason
	return true
}

// MarkFailed transitions the fix to Failed with the given reason.
// Returns false if the fix already reached a terminal state.
func (f *SuggestedFix) MarkFailed(reason string) bool {
	if f.Status.Terminal() {
		return false
	}
	f.Status = FixFailed
	f.Reason = reason
	return true
}

// CommitMessage builds the deterministic commit message for an applied fix:
// a "refactor: <title>" subject, a blank line, then one bullet per
// description line. Reproducible from the fix fields alone.
func (f *SuggestedFix) CommitMessage() string {
	var b strings.Builder
	b.WriteString("refactor: ")
	b.WriteString(strings.TrimSpace(f.Title))

	lines := descriptionLines(f.Description)
	if len(lines) > 0 {
		b.WriteString("\n")
		for _, line := range lines {
			b.WriteString("\n- ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// descriptionLines splits a description into trimmed, non-empty lines,
// stripping any bullet markers the provider already emitted.
func descriptionLines(desc string) []string {
	var out []string
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// HashContent returns the sha256 hex digest used for stale-base detection.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
