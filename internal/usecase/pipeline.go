package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"TrafficSync/internal/budget"
	"TrafficSync/internal/domain"
)

// Consumer-side contracts, so runs are testable with fakes.
type mappingLoader interface {
	Load(ctx context.Context) (map[string]domain.ContentMappingEntry, error)
}

type metricsFetcher interface {
	Fetch(ctx context.Context, daysBack int) []domain.RawMetricAggregate
}

type deltaReconciler interface {
	Run(raw []domain.RawMetricAggregate, mapping map[string]domain.ContentMappingEntry) []domain.MetricsDelta
}

type deltaDispatcher interface {
	Apply(ctx context.Context, guard *budget.Guard, deltas []domain.MetricsDelta) int
}

// PipelineDeps wires all collaborators into the reconciliation pipeline.
type PipelineDeps struct {
	Loader     mappingLoader
	Fetcher    metricsFetcher
	Reconciler deltaReconciler
	Dispatcher deltaDispatcher
	Budget     time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// Pipeline drives one reconciliation run through its stages:
// load mapping, fetch metrics, reconcile, apply updates. Each stage is
// sequential and the budget guard is consulted before every stage; the guard
// cannot interrupt a remote call already in flight.
type Pipeline struct {
	loader     mappingLoader
	fetcher    metricsFetcher
	reconciler deltaReconciler
	dispatcher deltaDispatcher
	budgetCap  time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	budgetCap := deps.Budget
	if budgetCap <= 0 {
		budgetCap = 480 * time.Second
	}
	return &Pipeline{
		loader:     deps.Loader,
		fetcher:    deps.Fetcher,
		reconciler: deps.Reconciler,
		dispatcher: deps.Dispatcher,
		budgetCap:  budgetCap,
		now:        deps.Now,
		logger:     deps.Logger,
	}
}

// Run executes one reconciliation pass and always returns a structured result,
// including on every failure path. Re-running with unchanged upstream data
// yields zero deltas, so runs are idempotent with respect to the catalog.
func (p *Pipeline) Run(ctx context.Context, daysBack int) domain.SyncResult {
	guard := budget.New(p.budgetCap, p.now)
	logger := p.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("run_id", uuid.NewString())

	res := domain.SyncResult{}

	logger.Info("sync started", "days_back", daysBack, "budget", p.budgetCap.String())

	if err := guard.Check("load mapping"); err != nil {
		return p.abort(logger, guard, res, domain.StatusTimeout, err)
	}

	mapping, err := p.loader.Load(ctx)
	if err != nil {
		logger.Warn("mapping load degraded to empty", "error", err)
	}
	if len(mapping) == 0 {
		return p.abort(logger, guard, res, domain.StatusFailed, domain.ErrNoData)
	}
	res.MappedArticles = len(mapping)

	if err := guard.Check("fetch metrics"); err != nil {
		return p.abort(logger, guard, res, domain.StatusTimeout, err)
	}

	raw := p.fetcher.Fetch(ctx, daysBack)
	res.TotalRawRecords = len(raw)
	if len(raw) == 0 {
		return p.abort(logger, guard, res, domain.StatusFailed, domain.ErrNoData)
	}
	if err := ctx.Err(); err != nil {
		return p.abort(logger, guard, res, domain.StatusError, err)
	}

	if err := guard.Check("reconcile"); err != nil {
		return p.abort(logger, guard, res, domain.StatusTimeout, err)
	}

	deltas := p.reconciler.Run(raw, mapping)

	if err := guard.Check("apply updates"); err != nil {
		return p.abort(logger, guard, res, domain.StatusTimeout, err)
	}

	res.UpdatedRecords = p.dispatcher.Apply(ctx, guard, deltas)
	res.Status = domain.StatusSuccess
	res.ElapsedSeconds = guard.Elapsed().Seconds()

	logger.Info("sync finished",
		"status", res.Status,
		"raw_records", res.TotalRawRecords,
		"mapped_articles", res.MappedArticles,
		"updated_records", res.UpdatedRecords,
		"elapsed_seconds", res.ElapsedSeconds)

	return res
}

func (p *Pipeline) abort(logger *slog.Logger, guard *budget.Guard, res domain.SyncResult, status domain.SyncStatus, err error) domain.SyncResult {
	res.Status = status
	res.ElapsedSeconds = guard.Elapsed().Seconds()
	if err != nil {
		res.ErrorMessage = err.Error()
	}

	logger.Warn("sync aborted",
		"status", res.Status,
		"raw_records", res.TotalRawRecords,
		"mapped_articles", res.MappedArticles,
		"updated_records", res.UpdatedRecords,
		"elapsed_seconds", res.ElapsedSeconds,
		"error", res.ErrorMessage)

	return res
}
