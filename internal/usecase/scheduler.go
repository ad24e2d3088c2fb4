package usecase

import (
	"context"
	"log/slog"
	"time"

	"TrafficSync/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	daysBack int
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring sync runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, daysBack int, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, daysBack: daysBack, logger: logger}
}

// Start registers the pipeline with the provided scheduler. Scheduled runs
// never propagate errors upward; the result status is logged instead, so a
// failed run does not trigger driver-level retries.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		res := s.pipeline.Run(ctx, s.daysBack)
		if s.logger != nil {
			s.logger.Info("scheduled sync completed",
				"trigger", trigger.Format(time.RFC3339),
				"status", res.Status,
				"updated_records", res.UpdatedRecords)
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
