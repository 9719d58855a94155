/**
 * @description
 * Cron scheduler setup for the backlog report.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	report   *ReportJob
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(report *ReportJob, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		report:   report,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the report job and starts the scheduler. An invalid
// schedule is returned and nothing is started.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.report.Run); err != nil {
		s.logger.Error("failed to schedule refill backlog report", "schedule", s.schedule, "error", err)
		return err
	}
	s.logger.Info("scheduled refill backlog report", "schedule", s.schedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
