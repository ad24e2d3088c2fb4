package usecase

import (
	"context"
	"log/slog"
	"time"

	"TrafficSync/internal/domain"
	"TrafficSync/internal/ports"
)

const (
	standardMaxBytes = 2_000_000_000
	fallbackMaxBytes = 1_000_000_000
	minimalMaxBytes  = 500_000_000

	standardMaxPolls = 10
	fallbackMaxPolls = 8

	fallbackDefaultLimit = 2000
	minimalDefaultLimit  = 500

	defaultPollInterval = 6 * time.Second
	partitionSuffixFmt  = "20060102"
)

// tier is one query strategy in the degradation ladder.
type tier struct {
	name     string
	days     int
	maxBytes int64
	maxPolls int // zero means a single blocking result call
	rowLimit int
	strict   bool
}

// fetchOutcome is the explicit result of one tier attempt; the driving loop
// selects the next tier from it instead of unwinding through errors.
type fetchOutcome struct {
	rows     []domain.RawMetricAggregate
	timedOut bool
	err      error
}

func (o fetchOutcome) ok() bool {
	return o.err == nil && !o.timedOut
}

// Fetcher pulls raw per-URL event aggregates with three degrading tiers. Tier
// order is monotonic within a run: once a tier has failed it is never retried.
type Fetcher struct {
	warehouse    ports.AnalyticsWarehouse
	rowLimit     int
	pollInterval time.Duration
	sleep        ports.SleepFunc
	now          func() time.Time
	logger       *slog.Logger
}

// NewFetcher wires the warehouse port. rowLimit zero means unlimited for the
// standard tier; the cheaper tiers keep their own defaults in that case. Nil
// sleep and now fall back to real time.
func NewFetcher(warehouse ports.AnalyticsWarehouse, rowLimit int, sleep ports.SleepFunc, now func() time.Time, logger *slog.Logger) *Fetcher {
	if sleep == nil {
		sleep = sleepContext
	}
	if now == nil {
		now = time.Now
	}
	return &Fetcher{
		warehouse:    warehouse,
		rowLimit:     rowLimit,
		pollInterval: defaultPollInterval,
		sleep:        sleep,
		now:          now,
		logger:       logger,
	}
}

// Fetch returns raw aggregates for the look-back window, or an empty slice when
// every tier has failed. It never returns an error; the pipeline treats an
// empty result as a soft failure.
func (f *Fetcher) Fetch(ctx context.Context, daysBack int) []domain.RawMetricAggregate {
	partitions := f.availablePartitions(ctx, daysBack+2)
	available := existingSuffixes(partitions)
	if len(available) == 0 {
		f.warn("no event partitions available", "window_days", daysBack+2)
		return nil
	}

	fallbackDays := daysBack
	if fallbackDays < 3 {
		fallbackDays = 3
	}

	tiers := []tier{
		{name: "standard", days: daysBack, maxBytes: standardMaxBytes, maxPolls: standardMaxPolls, rowLimit: f.rowLimit, strict: true},
		{name: "fallback", days: fallbackDays, maxBytes: fallbackMaxBytes, maxPolls: fallbackMaxPolls, rowLimit: orDefault(f.rowLimit, fallbackDefaultLimit), strict: true},
		{name: "minimal", days: 1, maxBytes: minimalMaxBytes, maxPolls: 0, rowLimit: orDefault(f.rowLimit, minimalDefaultLimit), strict: false},
	}

	for _, t := range tiers {
		parts := available
		if len(parts) > t.days {
			parts = parts[:t.days]
		}
		if len(parts) == 0 {
			continue
		}

		out := f.attempt(ctx, t, parts)
		if out.ok() {
			f.info("tier succeeded", "tier", t.name, "partitions", len(parts), "rows", len(out.rows))
			return out.rows
		}

		if out.timedOut {
			f.warn("tier exceeded poll ceiling", "tier", t.name, "partitions", len(parts))
		} else {
			f.warn("tier failed", "tier", t.name, "partitions", len(parts), "error", out.err)
		}

		if ctx.Err() != nil {
			return nil
		}
	}

	f.warn("all fetch tiers exhausted")
	return nil
}

// attempt submits one tier query and drives it to completion, cancellation, or
// failure.
func (f *Fetcher) attempt(ctx context.Context, t tier, partitions []string) fetchOutcome {
	job, err := f.warehouse.Submit(ctx, ports.AnalyticsQuery{
		Partitions: partitions,
		MaxBytes:   t.maxBytes,
		RowLimit:   t.rowLimit,
		PathFilter: t.strict,
	})
	if err != nil {
		return fetchOutcome{err: err}
	}

	if t.maxPolls == 0 {
		rows, err := job.Result(ctx)
		if err != nil {
			return fetchOutcome{err: err}
		}
		return fetchOutcome{rows: rows}
	}

	done := false
	for polls := 0; polls < t.maxPolls; polls++ {
		finished, err := job.Done(ctx)
		if err != nil {
			return fetchOutcome{err: err}
		}
		if finished {
			done = true
			break
		}
		if err := f.sleep(ctx, f.pollInterval); err != nil {
			return fetchOutcome{err: err}
		}
		f.debug("query running", "tier", t.name, "job", job.ID(),
			"waited", (time.Duration(polls+1) * f.pollInterval).String())
	}

	if !done {
		// Free the engine before degrading; the cancel itself is best effort.
		if err := job.Cancel(ctx); err != nil {
			f.warn("cancel failed", "tier", t.name, "job", job.ID(), "error", err)
		}
		return fetchOutcome{timedOut: true}
	}

	rows, err := job.Result(ctx)
	if err != nil {
		return fetchOutcome{err: err}
	}
	return fetchOutcome{rows: rows}
}

// availablePartitions probes the daily partition tables over the window,
// newest first. Probe errors count as absent.
func (f *Fetcher) availablePartitions(ctx context.Context, windowDays int) []domain.PartitionDescriptor {
	descriptors := make([]domain.PartitionDescriptor, 0, windowDays)
	today := f.now()

	for i := 0; i < windowDays; i++ {
		suffix := today.AddDate(0, 0, -i).Format(partitionSuffixFmt)
		exists, err := f.warehouse.PartitionExists(ctx, suffix)
		if err != nil {
			f.warn("partition probe failed", "suffix", suffix, "error", err)
			exists = false
		}
		descriptors = append(descriptors, domain.PartitionDescriptor{DateSuffix: suffix, Exists: exists})
	}

	return descriptors
}

func existingSuffixes(descriptors []domain.PartitionDescriptor) []string {
	suffixes := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Exists {
			suffixes = append(suffixes, d.DateSuffix)
		}
	}
	return suffixes
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *Fetcher) info(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Info(msg, args...)
	}
}

func (f *Fetcher) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
