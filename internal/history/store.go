// Package history persists finished review sessions and reads them back
// for the history command, the TUI browser, and the server API.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// SessionRow mirrors one sessions table row.
type SessionRow struct {
	ID           int64  `db:"id"            json:"id"`
	SessionKey   string `db:"session_key"   json:"session_key"`
	Provider     string `db:"provider"      json:"provider"`
	Model        string `db:"model"         json:"model"`
	StartedAt    string `db:"started_at"    json:"started_at"`
	FinishedAt   string `db:"finished_at"   json:"finished_at"`
	TotalFiles   int    `db:"total_files"   json:"total_files"`
	FailedFiles  int    `db:"failed_files"  json:"failed_files"`
	Findings     int    `db:"findings"      json:"findings"`
	AppliedFixes int    `db:"applied_fixes" json:"applied_fixes"`
}

// ResultRow mirrors one review_results table row.
type ResultRow struct {
	ID        int64  `db:"id"         json:"id"`
	SessionID int64  `db:"session_id" json:"session_id"`
	FilePath  string `db:"file_path"  json:"file_path"`
	ErrorMsg  string `db:"error_msg"  json:"error_msg,omitempty"`
}

// FindingRow mirrors one findings table row.
type FindingRow struct {
	ID       int64  `db:"id"        json:"id"`
	ResultID int64  `db:"result_id" json:"result_id"`
	FilePath string `db:"file_path" json:"file_path"`
	Line     int    `db:"line"      json:"line"`
	Category string `db:"category"  json:"category"`
	Source   string `db:"source"    json:"source"`
	Message  string `db:"message"   json:"message"`
}

// FixRow mirrors one fixes table row.
type FixRow struct {
	ID          int64  `db:"id"          json:"id"`
	ResultID    int64  `db:"result_id"   json:"result_id"`
	FixID       int    `db:"fix_id"      json:"fix_id"`
	TargetFile  string `db:"target_file" json:"target_file"`
	Title       string `db:"title"       json:"title"`
	Status      string `db:"status"      json:"status"`
	BaseHash    string `db:"base_hash"   json:"base_hash,omitempty"`
	Reason      string `db:"reason"      json:"reason,omitempty"`
	Description string `db:"description" json:"description,omitempty"`
	Patch       string `db:"patch"       json:"patch,omitempty"`
}

// CommitRow mirrors one commits table row.
type CommitRow struct {
	ID        int64  `db:"id"         json:"id"`
	SessionID int64  `db:"session_id" json:"session_id"`
	CommitSHA string `db:"commit_sha" json:"commit_sha"`
	FixID     int    `db:"fix_id"     json:"fix_id"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Store is the session history layer on top of database.DB.
type Store struct {
	db database.DB
}

func NewStore(db database.DB) *Store {
	return &Store{db: db}
}

// SaveReport writes a finished session and everything it produced. Returns
// the sessions row ID.
func (s *Store) SaveReport(ctx context.Context, report *models.SessionReport) (int64, error) {
	sessionID, err := s.db.Insert(ctx, "sessions", SessionRow{
		SessionKey:   report.SessionID,
		Provider:     report.Provider,
		Model:        report.Model,
		StartedAt:    report.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:   report.FinishedAt.UTC().Format(time.RFC3339),
		TotalFiles:   len(report.Results),
		FailedFiles:  report.FailedFiles(),
		Findings:     report.TotalFindings(),
		AppliedFixes: report.AppliedFixes(),
	})
	if err != nil {
		return 0, fmt.Errorf("saving session: %w", err)
	}

	for _, res := range report.Results {
		resultID, err := s.db.Insert(ctx, "review_results", ResultRow{
			SessionID: sessionID,
			FilePath:  res.FilePath,
			ErrorMsg:  res.Err,
		})
		if err != nil {
			return 0, fmt.Errorf("saving result for %s: %w", res.FilePath, err)
		}

		for _, f := range res.Findings {
			if _, err := s.db.Insert(ctx, "findings", FindingRow{
				ResultID: resultID,
				FilePath: f.FilePath,
				Line:     f.Line,
				Category: string(f.Category),
				Source:   string(f.Source),
				Message:  f.Message,
			}); err != nil {
				return 0, fmt.Errorf("saving finding: %w", err)
			}
		}

		for _, fx := range res.Fixes {
			if _, err := s.db.Insert(ctx, "fixes", FixRow{
				ResultID:    resultID,
				FixID:       fx.ID,
				TargetFile:  fx.TargetFile,
				Title:       fx.Title,
				Status:      string(fx.Status),
				BaseHash:    fx.BaseHash,
				Reason:      fx.Reason,
				Description: fx.Description,
				Patch:       fx.Patch,
			}); err != nil {
				return 0, fmt.Errorf("saving fix: %w", err)
			}
		}
	}

	for _, c := range report.Commits {
		if _, err := s.db.Insert(ctx, "commits", CommitRow{
			SessionID: sessionID,
			CommitSHA: c.CommitID,
			FixID:     c.FixID,
			CreatedAt: c.Timestamp.UTC().Format(time.RFC3339),
		}); err != nil {
			return 0, fmt.Errorf("saving commit record: %w", err)
		}
	}

	return sessionID, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []SessionRow
	err := s.db.Select(ctx, &rows,
		`SELECT id, session_key, provider, model, started_at, finished_at,
		        total_files, failed_files, findings, applied_fixes
		 FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return rows, nil
}

// GetSession looks a session up by its short key.
func (s *Store) GetSession(ctx context.Context, key string) (*SessionRow, error) {
	var row SessionRow
	err := s.db.Get(ctx, &row,
		`SELECT id, session_key, provider, model, started_at, finished_at,
		        total_files, failed_files, findings, applied_fixes
		 FROM sessions WHERE session_key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", key, err)
	}
	return &row, nil
}

// SessionResults returns the per-file results for one session, in insert
// order (which is the session's input-file order).
func (s *Store) SessionResults(ctx context.Context, sessionID int64) ([]ResultRow, error) {
	var rows []ResultRow
	err := s.db.Select(ctx, &rows,
		`SELECT id, session_id, file_path, error_msg
		 FROM review_results WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	return rows, nil
}

// ResultFindings returns the findings recorded for one file result.
func (s *Store) ResultFindings(ctx context.Context, resultID int64) ([]FindingRow, error) {
	var rows []FindingRow
	err := s.db.Select(ctx, &rows,
		`SELECT id, result_id, file_path, line, category, source, message
		 FROM findings WHERE result_id = ? ORDER BY id`, resultID)
	if err != nil {
		return nil, fmt.Errorf("listing findings: %w", err)
	}
	return rows, nil
}

// ResultFixes returns the fixes recorded for one file result.
func (s *Store) ResultFixes(ctx context.Context, resultID int64) ([]FixRow, error) {
	var rows []FixRow
	err := s.db.Select(ctx, &rows,
		`SELECT id, result_id, fix_id, target_file, title, status, base_hash,
		        reason, description, patch
		 FROM fixes WHERE result_id = ? ORDER BY fix_id`, resultID)
	if err != nil {
		return nil, fmt.Errorf("listing fixes: %w", err)
	}
	return rows, nil
}

// SessionCommits returns the commit records for one session.
func (s *Store) SessionCommits(ctx context.Context, sessionID int64) ([]CommitRow, error) {
	var rows []CommitRow
	err := s.db.Select(ctx, &rows,
		`SELECT id, session_id, commit_sha, fix_id, created_at
		 FROM commits WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	return rows, nil
}
