package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/ai"
	"github.com/CosmoTheDev/ctrlreview/internal/analyzer"
	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/findings"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// SessionOptions controls one review session.
type SessionOptions struct {
	// IncludeFixes asks the model for patch blocks and parses them.
	IncludeFixes bool
	// Applier, when non-nil, applies parsed fixes after the review phase.
	Applier *Applier
	// Language is the response language code; empty falls back to config.
	Language string
}

// Orchestrator runs review sessions: files fan out to a bounded worker
// pool for analysis and provider calls, results gather in input order, and
// fix application runs afterwards on this goroutine only.
type Orchestrator struct {
	cfg       *config.Config
	provider  ai.Provider
	analyzers []analyzer.Analyzer
	workers   int

	mu    sync.Mutex
	fatal error
}

// NewOrchestrator creates an Orchestrator over the given provider and
// analyzers.
func NewOrchestrator(cfg *config.Config, provider ai.Provider, analyzers []analyzer.Analyzer) *Orchestrator {
	workers := cfg.Review.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{
		cfg:       cfg,
		provider:  provider,
		analyzers: analyzers,
		workers:   workers,
	}
}

// Run reviews the given files and returns the session report. Every input
// file appears in the report exactly once, in input order, with an explicit
// outcome. Per-file failures degrade that file only; an authentication
// failure aborts the whole session and is returned as the error.
func (o *Orchestrator) Run(ctx context.Context, files []string, opts SessionOptions) (*models.SessionReport, error) {
	started := time.Now().UTC()
	report := &models.SessionReport{
		SessionID: models.NewSessionID(started, files),
		Provider:  o.provider.Name(),
		Model:     o.cfg.Provider.Model,
		StartedAt: started,
	}
	if opts.Language == "" {
		opts.Language = o.cfg.Output.Language
	}

	slog.Info("Review session starting",
		"session", report.SessionID,
		"provider", report.Provider,
		"files", len(files),
		"workers", o.workers,
	)

	// Unreachable analyzers degrade the session to AI-only review.
	active := make([]analyzer.Analyzer, 0, len(o.analyzers))
	for _, an := range o.analyzers {
		if !an.Available(ctx) {
			slog.Warn("Analyzer unavailable; continuing with AI-only review", "analyzer", an.Name())
			continue
		}
		active = append(active, an)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// One result slot per input file keeps gathering deterministic no
	// matter which worker finishes first.
	results := make([]*models.ReviewResult, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, err := o.reviewFile(sessionCtx, files[idx], active, opts)
				results[idx] = res
				if err != nil {
					o.setFatal(err)
					cancel()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-sessionCtx.Done():
				return
			}
		}
	}()
	wg.Wait()

	if err := o.takeFatal(); err != nil {
		return nil, err
	}

	for i, r := range results {
		if r == nil {
			results[i] = &models.ReviewResult{FilePath: files[i], Err: "cancelled"}
		}
	}
	report.Results = results

	// Fix IDs ascend across the session in input-file order.
	nextID := 1
	for _, res := range report.Results {
		for _, fix := range res.Fixes {
			fix.ID = nextID
			nextID++
		}
	}

	if opts.Applier != nil {
		o.applyFixes(ctx, report, opts.Applier)
	}

	report.FinishedAt = time.Now().UTC()
	slog.Info("Review session finished",
		"session", report.SessionID,
		"findings", report.TotalFindings(),
		"failed_files", report.FailedFiles(),
		"applied_fixes", report.AppliedFixes(),
	)
	return report, nil
}

// reviewFile runs one file through analyze → prompt → provider → parse.
// The error return is non-nil only for session-fatal failures.
func (o *Orchestrator) reviewFile(ctx context.Context, path string, active []analyzer.Analyzer, opts SessionOptions) (*models.ReviewResult, error) {
	res := &models.ReviewResult{FilePath: path}
	if ctx.Err() != nil {
		res.Err = "cancelled"
		return res, nil
	}

	content, err := os.ReadFile(path) // #nosec G304 -- path comes from the session's input set
	if err != nil {
		res.Err = fmt.Sprintf("reading file: %v", err)
		return res, nil
	}

	var static []models.Finding
	for _, an := range active {
		found, err := an.Analyze(ctx, path, content)
		if err != nil {
			slog.Warn("Analyzer failed; continuing without its findings",
				"analyzer", an.Name(), "file", path, "error", err)
			continue
		}
		static = append(static, found...)
	}

	raw, err := o.provider.Review(ctx, ai.ReviewRequest{
		FilePath:     path,
		FileContent:  string(content),
		Findings:     static,
		Language:     opts.Language,
		IncludeFixes: opts.IncludeFixes,
	})
	if err != nil {
		var authErr *ai.AuthError
		if errors.As(err, &authErr) {
			res.Err = "authentication failed"
			return res, err
		}
		if ctx.Err() != nil {
			res.Err = "cancelled"
			return res, nil
		}
		slog.Warn("Review failed for file", "file", path, "error", err)
		res.Err = err.Error()
		return res, nil
	}

	parsed := findings.Parse(raw, path, content)
	res.Findings = append(static, parsed.Findings...)
	res.Fixes = parsed.Fixes
	return res, nil
}

// applyFixes runs every file's batch through the applier, serialized. A
// version-control failure abandons that file's remaining fixes only.
func (o *Orchestrator) applyFixes(ctx context.Context, report *models.SessionReport, applier *Applier) {
	for _, res := range report.Results {
		if res.Failed() || len(res.Fixes) == 0 {
			continue
		}
		commits, err := applier.ApplyBatch(ctx, res.Fixes)
		report.Commits = append(report.Commits, commits...)
		if err == nil {
			continue
		}
		var vcErr *VersionControlError
		if errors.As(err, &vcErr) {
			slog.Error("Abandoning remaining fixes for file", "file", res.FilePath, "error", vcErr)
			continue
		}
		if ctx.Err() != nil {
			slog.Info("Fix application cancelled")
			return
		}
		slog.Error("Fix application error", "file", res.FilePath, "error", err)
	}
}

func (o *Orchestrator) setFatal(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fatal == nil {
		o.fatal = err
	}
}

func (o *Orchestrator) takeFatal() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := o.fatal
	o.fatal = nil
	return err
}
