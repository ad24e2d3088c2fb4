package scheduler

import (
	"context"
	"time"

	"TrafficSync/internal/ports"
)

// IntervalScheduler triggers the sync job on a fixed interval using
// time.Ticker. The first run fires immediately on start.
type IntervalScheduler struct {
	every time.Duration
	stop  chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler firing every given interval.
func NewIntervalScheduler(every time.Duration) *IntervalScheduler {
	if every <= 0 {
		every = 6 * time.Hour
	}
	return &IntervalScheduler{every: every}
}

// Start begins ticking. Runs are strictly serial: the ticker callback blocks
// for the duration of the job, so a slow run delays the next one rather than
// overlapping it.
func (s *IntervalScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
