// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	importsvc "github.com/casaledger/casaledger/internal/domain/import/service"
)

// Scheduler runs the stale-session reaper on a cron schedule. Import
// sessions abandoned mid-run (process crash, user walked away) hold
// partially committed expenses until the reaper rolls them back.
type Scheduler struct {
	cron     *cron.Cron
	importer *importsvc.Service
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler with standard 5-field cron expressions.
func NewScheduler(importer *importsvc.Service, schedule string, maxAge time.Duration, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		importer: importer,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.reapStaleSessions)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the reaper (for testing/admin).
func (s *Scheduler) RunNow() {
	s.reapStaleSessions()
}

// reapStaleSessions fails and rolls back import sessions stuck in a
// non-terminal state beyond the configured age.
func (s *Scheduler) reapStaleSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.maxAge)
	stale := s.importer.Registry().Stale(cutoff)
	if len(stale) == 0 {
		s.logger.Debug("no stale import sessions")
		return
	}

	s.logger.Info("reaping stale import sessions", slog.Int("count", len(stale)))

	reaped := 0
	failed := 0
	for _, session := range stale {
		if err := s.importer.RollbackAbandoned(ctx, session); err != nil {
			s.logger.Warn("failed to roll back stale session",
				slog.String("session_id", session.ID),
				slog.Any("error", err),
			)
			failed++
			continue
		}
		reaped++
	}

	s.logger.Info("stale session reap completed",
		slog.Int("reaped", reaped),
		slog.Int("failed", failed),
	)
}
