package usecase

import (
	"context"
	"time"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/ports"
)

// Scheduler wires the interval driver with the collector's run procedure.
type Scheduler struct {
	driver    ports.Scheduler
	collector *Collector
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, collector *Collector) *Scheduler {
	return &Scheduler{driver: driver, collector: collector}
}

// Start registers the collector run with the provided scheduler. Periodic runs use
// the configured sources and keywords and share the manual run guard.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.collector == nil {
		return nil
	}

	job := func(trigger time.Time) {
		summary := s.collector.Run(ctx, domain.RunRequest{})
		if summary.Status == domain.RunRejected {
			s.collector.logger.Info("periodic run skipped", "trigger", trigger, "reason", domain.ErrAlreadyRunning)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// NextRun reports the next periodic trigger, if any.
func (s *Scheduler) NextRun() (time.Time, bool) {
	if s.driver == nil {
		return time.Time{}, false
	}
	return s.driver.NextRun()
}
