package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/models"
)

func newTestStore(t *testing.T) (*Store, database.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history-test.db")
	db, err := database.NewSQLite(config.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), db
}

func sampleReport(started time.Time, key string) *models.SessionReport {
	return &models.SessionReport{
		SessionID:  key,
		Provider:   "openai",
		Model:      "gpt-4o",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Results: []*models.ReviewResult{
			{
				FilePath: "app/main.py",
				Findings: []models.Finding{
					{FilePath: "app/main.py", Line: 3, Category: models.CategoryStyleIssue, Source: models.SourceAIProvider, Message: "Missing blank line after imports."},
					{FilePath: "app/main.py", Category: models.CategorySecurity, Source: models.SourceStaticAnalyzer, Message: "Shelling out without quoting."},
				},
				Fixes: []*models.SuggestedFix{
					{
						ID:          1,
						TargetFile:  "app/main.py",
						Title:       "Use os.getcwd",
						Description: "Replace os.name with os.getcwd().",
						Patch:       "--- a/app/main.py\n+++ b/app/main.py\n@@ -1 +1 @@\n-print(os.name)\n+print(os.getcwd())\n",
						BaseHash:    "deadbeef",
						Status:      models.FixApplied,
					},
				},
			},
			{
				FilePath: "app/util.py",
				Err:      "provider unavailable after 3 attempts",
			},
		},
		Commits: []models.CommitRecord{
			{CommitID: "0123456789abcdef", FixID: 1, Timestamp: started.Add(40 * time.Second)},
		},
	}
}

func TestSaveReportRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	sessionID, err := store.SaveReport(ctx, sampleReport(started, "a1b2c3d4e5f6"))
	if err != nil {
		t.Fatalf("save report: %v", err)
	}
	if sessionID == 0 {
		t.Fatal("expected a non-zero session row id")
	}

	sessions, err := store.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.SessionKey != "a1b2c3d4e5f6" || s.Provider != "openai" || s.Model != "gpt-4o" {
		t.Fatalf("unexpected session row: %+v", s)
	}
	if s.TotalFiles != 2 || s.FailedFiles != 1 || s.Findings != 2 || s.AppliedFixes != 1 {
		t.Fatalf("unexpected aggregates: %+v", s)
	}
	if s.StartedAt != "2026-03-14T09:30:00Z" {
		t.Fatalf("unexpected started_at: %q", s.StartedAt)
	}

	results, err := store.SessionResults(ctx, sessionID)
	if err != nil {
		t.Fatalf("session results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].FilePath != "app/main.py" || results[0].ErrorMsg != "" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].FilePath != "app/util.py" || results[1].ErrorMsg != "provider unavailable after 3 attempts" {
		t.Fatalf("unexpected second result: %+v", results[1])
	}

	findings, err := store.ResultFindings(ctx, results[0].ID)
	if err != nil {
		t.Fatalf("result findings: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Line != 3 || findings[0].Category != "style_issue" || findings[0].Source != "ai_provider" {
		t.Fatalf("unexpected finding row: %+v", findings[0])
	}
	if findings[1].Line != 0 || findings[1].Category != "security" {
		t.Fatalf("unexpected file-level finding: %+v", findings[1])
	}

	fixes, err := store.ResultFixes(ctx, results[0].ID)
	if err != nil {
		t.Fatalf("result fixes: %v", err)
	}
	if len(fixes) != 1 {
		t.Fatalf("expected 1 fix, got %d", len(fixes))
	}
	if fixes[0].FixID != 1 || fixes[0].Status != "applied" || fixes[0].Title != "Use os.getcwd" {
		t.Fatalf("unexpected fix row: %+v", fixes[0])
	}
	if fixes[0].BaseHash != "deadbeef" {
		t.Fatalf("unexpected base hash: %q", fixes[0].BaseHash)
	}

	commits, err := store.SessionCommits(ctx, sessionID)
	if err != nil {
		t.Fatalf("session commits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected 1 commit record, got %d", len(commits))
	}
	if commits[0].CommitSHA != "0123456789abcdef" || commits[0].FixID != 1 {
		t.Fatalf("unexpected commit record: %+v", commits[0])
	}
}

func TestGetSessionByKey(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	sessionID, err := store.SaveReport(ctx, sampleReport(started, "cafe00112233"))
	if err != nil {
		t.Fatalf("save report: %v", err)
	}

	got, err := store.GetSession(ctx, "cafe00112233")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ID != sessionID || got.SessionKey != "cafe00112233" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if _, err := store.GetSession(ctx, "nope"); err == nil {
		t.Fatal("expected an error for an unknown session key")
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, key := range []string{"older0000000", "newer0000000"} {
		if _, err := store.SaveReport(ctx, sampleReport(base.Add(time.Duration(i)*time.Hour), key)); err != nil {
			t.Fatalf("save report %s: %v", key, err)
		}
	}

	sessions, err := store.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionKey != "newer0000000" || sessions[1].SessionKey != "older0000000" {
		t.Fatalf("expected newest first, got %s then %s", sessions[0].SessionKey, sessions[1].SessionKey)
	}

	limited, err := store.ListSessions(ctx, 1)
	if err != nil {
		t.Fatalf("list sessions with limit: %v", err)
	}
	if len(limited) != 1 || limited[0].SessionKey != "newer0000000" {
		t.Fatalf("unexpected limited list: %+v", limited)
	}
}
