package server

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
)

// Scheduler registers the config-defined review schedules with robfig/cron.
// Each firing enqueues a paths job on the shared worker queue. Schedules
// live in the config file only; there is no runtime add/remove.
type Scheduler struct {
	cron      *cron.Cron
	enqueue   func(job) bool
	broadcast func(SSEEvent)
}

// newScheduler validates and registers every configured schedule. A
// malformed cron expression or an empty paths list is a configuration
// error and fails server construction.
func newScheduler(schedules []config.ScheduleConfig, enqueue func(job) bool, broadcast func(SSEEvent)) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		enqueue:   enqueue,
		broadcast: broadcast,
	}
	for i, sched := range schedules {
		if err := s.register(i, sched); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// register adds one schedule to the cron instance.
func (s *Scheduler) register(idx int, sched config.ScheduleConfig) error {
	if len(sched.Paths) == 0 {
		return fmt.Errorf("schedule %d (%q) has no paths", idx+1, sched.Cron)
	}
	_, err := s.cron.AddFunc(sched.Cron, func() {
		slog.Info("server: schedule fired", "cron", sched.Cron, "paths", sched.Paths)
		s.broadcast(SSEEvent{Type: "schedule.fired", Payload: map[string]any{
			"cron":  sched.Cron,
			"paths": sched.Paths,
		}})
		s.enqueue(job{
			Kind:    jobKindPaths,
			Paths:   sched.Paths,
			Profile: sched.Profile,
			Trigger: "schedule",
		})
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sched.Cron, err)
	}
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	if n := len(s.cron.Entries()); n > 0 {
		slog.Info("server: scheduler started", "schedules", n)
	}
}

// Stop halts the cron runner gracefully.
func (s *Scheduler) Stop() { s.cron.Stop() }
