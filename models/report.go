package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ReviewResult aggregates everything produced for one file in a session.
// Immutable after parsing completes; the fix applicator mutates only the
// contained fixes.
type ReviewResult struct {
	FilePath string         `json:"file_path"`
	Findings []Finding      `json:"findings"`
	Fixes    []*SuggestedFix `json:"fixes"`
	Err      string         `json:"error,omitempty"` // non-empty when the file failed outright
}

// Failed reports whether the file failed outright (unreadable, provider
// retries exhausted, malformed response).
func (r *ReviewResult) Failed() bool {
	return r.Err != ""
}

// CommitRecord ties one applied fix to the commit it produced.
type CommitRecord struct {
	CommitID  string    `json:"commit_id" db:"commit_sha"`
	FixID     int       `json:"fix_id"    db:"fix_id"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

// SessionReport is the whole-run aggregate. Owned by the orchestrator,
// assembled incrementally, frozen at session end.
type SessionReport struct {
	SessionID  string         `json:"session_id"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []*ReviewResult `json:"results"`
	Commits    []CommitRecord `json:"commits"`
}

// FailedFiles returns how many files failed outright.
func (s *SessionReport) FailedFiles() int {
	n := 0
	for _, r := range s.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// TotalFindings returns the finding count across all results.
func (s *SessionReport) TotalFindings() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Findings)
	}
	return n
}

// AppliedFixes returns how many fixes reached Applied.
func (s *SessionReport) AppliedFixes() int {
	n := 0
	for _, r := range s.Results {
		for _, f := range r.Fixes {
			if f.Status == FixApplied {
				n++
			}
		}
	}
	return n
}

// NewSessionID derives a short session identifier from the start time and
// the input file set.
func NewSessionID(startedAt time.Time, files []string) string {
	h := sha256.New()
	h.Write([]byte(startedAt.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(strings.Join(files, "\x00")))
	return hex.EncodeToString(h.Sum(nil))[:12]
}
