// Package budget tracks elapsed wall time against a fixed per-run ceiling.
package budget

import (
	"fmt"
	"time"

	"TrafficSync/internal/domain"
)

// Guard holds the run start time and the hard ceiling set at pipeline start.
// Checks are advisory: a remote call already in flight cannot be interrupted,
// only the transition to the next stage.
type Guard struct {
	ceiling time.Duration
	start   time.Time
	now     func() time.Time
}

// New starts a guard with the given ceiling. A nil now falls back to time.Now;
// tests inject a fake clock instead of sleeping.
func New(ceiling time.Duration, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{ceiling: ceiling, start: now(), now: now}
}

// Check returns domain.ErrBudgetExceeded wrapped with the stage name once the
// ceiling has been passed.
func (g *Guard) Check(stage string) error {
	elapsed := g.Elapsed()
	if elapsed > g.ceiling {
		return fmt.Errorf("%s after %.1fs: %w", stage, elapsed.Seconds(), domain.ErrBudgetExceeded)
	}
	return nil
}

// Elapsed reports wall time since the guard was created.
func (g *Guard) Elapsed() time.Duration {
	return g.now().Sub(g.start)
}
