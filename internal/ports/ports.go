package ports

import (
	"context"
	"time"

	"TrafficSync/internal/domain"
)

// AnalyticsQuery describes one aggregation request against the event warehouse.
type AnalyticsQuery struct {
	// Partitions lists the date suffixes of the daily tables to scan,
	// most recent first.
	Partitions []string
	// MaxBytes caps the bytes the remote engine may process for this query.
	MaxBytes int64
	// RowLimit caps the result set; zero means unlimited.
	RowLimit int
	// PathFilter applies the strict content-path pattern filter. The cheapest
	// tier drops it to keep the query trivial for the engine.
	PathFilter bool
}

// AnalyticsJob is a handle to a submitted warehouse query.
type AnalyticsJob interface {
	ID() string
	// Done polls the remote job state once.
	Done(ctx context.Context) (bool, error)
	// Result fetches the aggregated rows, blocking until the job completes or
	// the engine-side timeout fires.
	Result(ctx context.Context) ([]domain.RawMetricAggregate, error)
	// Cancel asks the engine to abandon the job. Best effort.
	Cancel(ctx context.Context) error
}

// AnalyticsWarehouse is the query surface of the raw traffic-event store.
type AnalyticsWarehouse interface {
	PartitionExists(ctx context.Context, dateSuffix string) (bool, error)
	Submit(ctx context.Context, query AnalyticsQuery) (AnalyticsJob, error)
}

// ContentCatalog is the query/update surface of the article warehouse.
type ContentCatalog interface {
	CountArticles(ctx context.Context) (int, error)
	CountCourses(ctx context.Context) (int, error)
	// MappingRows returns catalog articles joined with their courses, capped
	// at limit rows. Pattern is left empty; the loader derives it.
	MappingRows(ctx context.Context, limit int) ([]domain.ContentMappingEntry, error)
	// ApplyBatch writes one batch of deltas as a single conditional update.
	ApplyBatch(ctx context.Context, deltas []domain.MetricsDelta) error
	// ApplyOne writes a single delta; the fallback path when a batch fails.
	ApplyOne(ctx context.Context, delta domain.MetricsDelta) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// SleepFunc suspends between job-status polls. Tests substitute one that
// advances a fake clock instead of waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error
