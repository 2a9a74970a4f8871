package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/internal/history"
	"github.com/CosmoTheDev/ctrlreview/models"
)

func newTestServer(t *testing.T) (*Server, database.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "server-test.db")
	db, err := database.NewSQLite(config.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("new sqlite db: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	s := &Server{
		cfg:         &config.Config{},
		db:          db,
		store:       history.NewStore(db),
		broadcaster: newBroadcaster(),
		jobs:        make(chan job, 4),
		startedAt:   time.Now(),
	}
	return s, db
}

func seedSessionReport(t *testing.T, store *history.Store) {
	t.Helper()
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	report := &models.SessionReport{
		SessionID:  "ab12cd34ef56",
		Provider:   "openai",
		Model:      "gpt-4o",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Results: []*models.ReviewResult{
			{
				FilePath: "main.py",
				Findings: []models.Finding{
					{
						FilePath: "main.py",
						Line:     3,
						Category: models.CategoryStyleIssue,
						Source:   models.SourceAIProvider,
						Message:  "Variable name x is unclear",
					},
				},
			},
			{FilePath: "util.py", Err: "provider unavailable after 3 attempts"},
		},
	}
	if _, err := store.SaveReport(context.Background(), report); err != nil {
		t.Fatalf("save report: %v", err)
	}
}

func TestHandleListSessionsReturnsSavedSessions(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()
	seedSessionReport(t, s.store)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	buildHandler(s).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var rows []history.SessionRow
	if err := json.NewDecoder(rr.Body).Decode(&rows); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 session, got %d", len(rows))
	}
	if rows[0].SessionKey != "ab12cd34ef56" || rows[0].TotalFiles != 2 || rows[0].FailedFiles != 1 || rows[0].Findings != 1 {
		t.Fatalf("unexpected session row: %+v", rows[0])
	}
}

func TestHandleSessionResultsExpandsFindings(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()
	seedSessionReport(t, s.store)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/ab12cd34ef56/results", nil)
	buildHandler(s).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var detail sessionDetail
	if err := json.NewDecoder(rr.Body).Decode(&detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if detail.Session.SessionKey != "ab12cd34ef56" {
		t.Fatalf("unexpected session: %+v", detail.Session)
	}
	if len(detail.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(detail.Results))
	}
	first := detail.Results[0]
	if first.Result.FilePath != "main.py" || len(first.Findings) != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Findings[0].Message != "Variable name x is unclear" || first.Findings[0].Line != 3 {
		t.Fatalf("unexpected finding: %+v", first.Findings[0])
	}
	if detail.Results[1].Result.ErrorMsg != "provider unavailable after 3 attempts" {
		t.Fatalf("unexpected second result: %+v", detail.Results[1])
	}
}

func TestHandleGetSessionNotFound(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/000000000000", nil)
	buildHandler(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleStatusReportsQueue(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()
	seedSessionReport(t, s.store)
	s.jobs <- job{Kind: jobKindPaths, Paths: []string{"src/"}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	buildHandler(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var st Status
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !st.Running || st.QueuedJobs != 1 || st.Sessions != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestHandleTriggerReviewQueuesJob(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()

	body := `{"paths":["src/","app.py"],"profile":"security"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/review", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	buildHandler(s).ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	select {
	case j := <-s.jobs:
		if j.Kind != jobKindPaths || j.Trigger != "api" || j.Profile != "security" {
			t.Fatalf("unexpected job: %+v", j)
		}
		if len(j.Paths) != 2 || j.Paths[0] != "src/" || j.Paths[1] != "app.py" {
			t.Fatalf("unexpected job paths: %v", j.Paths)
		}
	default:
		t.Fatal("expected a queued job")
	}
}

func TestHandleTriggerReviewRejectsEmptyPaths(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()

	handler := buildHandler(s)
	for _, body := range []string{`{}`, `{"paths":[" "]}`} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/review", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for body %s, got %d", body, rr.Code)
		}
	}
}

func TestHandleTriggerReviewRejectsUnknownProfile(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()
	s.cfg.Review.ProfilesDir = t.TempDir()

	body := `{"paths":["src/"],"profile":"no-such-profile"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/review", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	buildHandler(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWebhookQueuesPullRequestReview(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()
	s.cfg.Server.WebhookSecret = "s3cret"

	body := []byte(`{"action":"opened","number":7,"pull_request":{"number":7},"repository":{"full_name":"acme/api"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", signBody(body, "s3cret"))

	rr := httptest.NewRecorder()
	buildHandler(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	select {
	case j := <-s.jobs:
		if j.Kind != jobKindPR || j.Platform != "github" || j.Project != "acme/api" || j.Number != 7 {
			t.Fatalf("unexpected job: %+v", j)
		}
		if j.Trigger != "webhook" {
			t.Fatalf("unexpected trigger: %q", j.Trigger)
		}
	default:
		t.Fatal("expected a queued job")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()
	s.cfg.Server.WebhookSecret = "s3cret"

	body := []byte(`{"action":"opened"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", signBody(body, "wrong-secret"))

	rr := httptest.NewRecorder()
	buildHandler(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWebhookIgnoresUnrelatedActions(t *testing.T) {
	s, db := newTestServer(t)
	defer db.Close()

	body := []byte(`{"action":"closed","number":7,"pull_request":{"number":7},"repository":{"full_name":"acme/api"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "pull_request")

	rr := httptest.NewRecorder()
	buildHandler(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "ignored") {
		t.Fatalf("expected ignored status, got %s", rr.Body.String())
	}
	select {
	case j := <-s.jobs:
		t.Fatalf("unexpected queued job: %+v", j)
	default:
	}
}

func TestNewSchedulerValidatesConfig(t *testing.T) {
	enqueue := func(job) bool { return true }
	broadcast := func(SSEEvent) {}

	_, err := newScheduler([]config.ScheduleConfig{
		{Cron: "not a cron", Paths: []string{"src/"}},
	}, enqueue, broadcast)
	if err == nil {
		t.Fatal("expected error for malformed cron expression")
	}

	_, err = newScheduler([]config.ScheduleConfig{
		{Cron: "@hourly"},
	}, enqueue, broadcast)
	if err == nil {
		t.Fatal("expected error for schedule without paths")
	}

	_, err = newScheduler([]config.ScheduleConfig{
		{Cron: "0 7 * * 1", Paths: []string{"src/"}, Profile: "strict"},
	}, enqueue, broadcast)
	if err != nil {
		t.Fatalf("expected valid schedule to register, got %v", err)
	}
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
