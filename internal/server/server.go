// Package server hosts the long-running review bot: a REST + SSE control
// plane, a GitHub webhook intake, and cron-driven review schedules. All
// three sources funnel into one serialized worker so review sessions never
// overlap.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/agent"
	"github.com/CosmoTheDev/ctrlreview/internal/ai"
	"github.com/CosmoTheDev/ctrlreview/internal/analyzer"
	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/internal/history"
	"github.com/CosmoTheDev/ctrlreview/internal/notify"
	"github.com/CosmoTheDev/ctrlreview/internal/profiles"
	"github.com/CosmoTheDev/ctrlreview/internal/repository"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// Job kinds accepted by the worker queue.
const (
	jobKindPaths = "paths"
	jobKindPR    = "pr"
)

// jobQueueSize bounds how many triggers can be waiting before new ones are
// rejected with 503.
const jobQueueSize = 32

// job is one queued unit of review work.
type job struct {
	Kind     string
	Paths    []string
	Profile  string
	Platform string
	Project  string
	Number   int
	Trigger  string // "api", "webhook", or "schedule"
}

func (j job) describe() string {
	if j.Kind == jobKindPR {
		return fmt.Sprintf("%s %s#%d", j.Platform, j.Project, j.Number)
	}
	return strings.Join(j.Paths, " ")
}

// Status is a live snapshot of the server and its queue.
type Status struct {
	Running       bool   `json:"running"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	QueuedJobs    int    `json:"queued_jobs"`
	ActiveJob     string `json:"active_job,omitempty"`
	Schedules     int    `json:"schedules"`
	Sessions      int    `json:"sessions"`
	LastSessionAt string `json:"last_session_at,omitempty"`
}

// countRow is a convenience struct for SELECT COUNT(*) AS n queries.
type countRow struct {
	N int `db:"n"`
}

// Server is the long-running daemon that combines:
//   - the review Orchestrator (one session at a time off the job queue)
//   - a cron Scheduler (review schedules from the config file)
//   - a REST + SSE HTTP server (control plane and webhook intake)
type Server struct {
	cfg         *config.Config
	db          database.DB
	store       *history.Store
	notifier    *notify.Dispatcher
	provider    ai.Provider
	analyzers   []analyzer.Analyzer
	scheduler   *Scheduler
	broadcaster *Broadcaster
	jobs        chan job

	mu            sync.RWMutex
	startedAt     time.Time
	activeJob     string
	lastSessionAt string
}

// New creates a Server. Call Start() to begin serving. Provider and
// schedule configuration errors surface here, before anything binds.
func New(cfg *config.Config, db database.DB) (*Server, error) {
	provider, err := ai.New(cfg.Provider)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		db:          db,
		store:       history.NewStore(db),
		notifier:    notify.NewDispatcher(cfg.Notify),
		provider:    provider,
		analyzers:   analyzer.Build(cfg.Analysis.PylintConfig),
		broadcaster: newBroadcaster(),
		jobs:        make(chan job, jobQueueSize),
		startedAt:   time.Now(),
	}
	s.scheduler, err = newScheduler(cfg.Server.Schedules, s.enqueue, s.broadcaster.send)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the server until ctx is cancelled. It:
//  1. Starts the cron scheduler
//  2. Starts the job worker (one review session at a time)
//  3. Binds the HTTP server (blocks until shutdown)
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = "127.0.0.1:6180"
	}
	if s.cfg.Server.WebhookSecret == "" {
		slog.Warn("server: webhook_secret is not set; GitHub webhook signatures will not be verified")
	}

	// 1. Start scheduler.
	s.scheduler.Start()

	// 2. Run the job worker in the background.
	go s.runWorker(ctx)

	// 3. HTTP server.
	srv := &http.Server{
		Addr:    addr,
		Handler: buildHandler(s),
	}

	// Shut down the HTTP server when ctx is cancelled.
	go func() {
		<-ctx.Done()
		s.scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server: listening", "addr", "http://"+addr)
	s.broadcaster.send(SSEEvent{
		Type:    "server.started",
		Payload: map[string]string{"addr": "http://" + addr},
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// enqueue adds a job to the worker queue without blocking. Returns false
// when the queue is full.
func (s *Server) enqueue(j job) bool {
	select {
	case s.jobs <- j:
		s.broadcaster.send(SSEEvent{Type: "review.queued", Payload: map[string]any{
			"target":  j.describe(),
			"trigger": j.Trigger,
		}})
		return true
	default:
		slog.Warn("server: job queue full; dropping trigger",
			"target", j.describe(), "trigger", j.Trigger)
		return false
	}
}

// runWorker drains the job queue one review session at a time.
func (s *Server) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			s.runJob(ctx, j)
		}
	}
}

func (s *Server) runJob(ctx context.Context, j job) {
	target := j.describe()
	s.setActive(target)
	defer s.setActive("")

	slog.Info("server: review job starting", "target", target, "trigger", j.Trigger)
	s.broadcaster.send(SSEEvent{Type: "session.started", Payload: map[string]any{
		"target":  target,
		"trigger": j.Trigger,
	}})

	report, prURL, err := s.execute(ctx, j)
	if err != nil {
		slog.Error("server: review job failed", "target", target, "error", err)
		s.broadcaster.send(SSEEvent{Type: "session.failed", Payload: map[string]any{
			"target": target,
			"error":  err.Error(),
		}})
		s.notifier.Notify(ctx, notify.Event{
			Type:  notify.EventSessionFailed,
			Title: "ctrlreview session failed",
			Body:  fmt.Sprintf("Review of %s failed: %v", target, err),
		})
		return
	}
	if report == nil {
		// Nothing matched the job's paths.
		s.broadcaster.send(SSEEvent{Type: "session.completed", Payload: map[string]any{
			"target": target,
			"files":  0,
		}})
		return
	}

	if _, err := s.store.SaveReport(ctx, report); err != nil {
		slog.Error("server: saving session failed", "session", report.SessionID, "error", err)
	}
	s.recordSession(report.FinishedAt)

	s.broadcaster.send(SSEEvent{Type: "session.completed", Payload: map[string]any{
		"target":       target,
		"session":      report.SessionID,
		"files":        len(report.Results),
		"failed_files": report.FailedFiles(),
		"findings":     report.TotalFindings(),
	}})
	s.notifySession(ctx, target, report, prURL)
}

// execute runs one job to completion. The returned report is nil when the
// job's paths matched no reviewable files. prURL is non-empty when a
// comment was posted on a change request.
func (s *Server) execute(ctx context.Context, j job) (*models.SessionReport, string, error) {
	if j.Kind == jobKindPR {
		host, err := repository.New(j.Platform, s.cfg)
		if err != nil {
			return nil, "", err
		}
		reviewer := agent.NewPRReviewer(s.cfg, host, s.newOrchestrator(), true)
		report, pr, err := reviewer.Review(ctx, j.Project, j.Number)
		if err != nil {
			return nil, "", err
		}
		return report, pr.HTMLURL, nil
	}

	files, err := agent.CollectFiles(j.Paths, s.cfg.Analysis.IgnorePatterns, true)
	if err != nil {
		return nil, "", err
	}
	if len(files) == 0 {
		slog.Info("server: no reviewable files for job", "target", j.describe())
		return nil, "", nil
	}
	if j.Profile != "" {
		p, err := profiles.Load(j.Profile, s.profilesDir())
		if err != nil {
			return nil, "", err
		}
		ctx = profiles.ToContext(ctx, p)
	}
	report, err := s.newOrchestrator().Run(ctx, files, agent.SessionOptions{})
	return report, "", err
}

// notifySession fires the channel notifications a finished report warrants.
// A session with failed files counts as failed; fix application never runs
// in serve mode, so fixes_applied is not fired here.
func (s *Server) notifySession(ctx context.Context, target string, report *models.SessionReport, prURL string) {
	evtType := notify.EventSessionCompleted
	title := "ctrlreview session completed"
	if report.FailedFiles() > 0 {
		evtType = notify.EventSessionFailed
		title = "ctrlreview session finished with failures"
	}
	s.notifier.Notify(ctx, notify.Event{
		Type:  evtType,
		Title: title,
		Body: fmt.Sprintf("%s: %d files, %d failed, %d findings.",
			target, len(report.Results), report.FailedFiles(), report.TotalFindings()),
		URL:       prURL,
		SessionID: report.SessionID,
	})
	if prURL != "" {
		s.notifier.Notify(ctx, notify.Event{
			Type:      notify.EventPRCommented,
			Title:     "ctrlreview posted a review",
			Body:      fmt.Sprintf("Posted review results for %s.", target),
			URL:       prURL,
			SessionID: report.SessionID,
		})
	}
}

// newOrchestrator builds a fresh orchestrator for one job. Cheap, and keeps
// session state from leaking between jobs.
func (s *Server) newOrchestrator() *agent.Orchestrator {
	return agent.NewOrchestrator(s.cfg, s.provider, s.analyzers)
}

func (s *Server) profilesDir() string {
	if s.cfg.Review.ProfilesDir != "" {
		return s.cfg.Review.ProfilesDir
	}
	return profiles.DefaultDir()
}

func (s *Server) currentStatus(ctx context.Context) Status {
	var sessions countRow
	_ = s.db.Get(ctx, &sessions, "SELECT COUNT(*) AS n FROM sessions")

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Running:       true,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		QueuedJobs:    len(s.jobs),
		ActiveJob:     s.activeJob,
		Schedules:     len(s.cfg.Server.Schedules),
		Sessions:      sessions.N,
		LastSessionAt: s.lastSessionAt,
	}
}

func (s *Server) setActive(target string) {
	s.mu.Lock()
	s.activeJob = target
	s.mu.Unlock()
}

func (s *Server) recordSession(finished time.Time) {
	s.mu.Lock()
	s.lastSessionAt = finished.UTC().Format(time.RFC3339)
	s.mu.Unlock()
}
