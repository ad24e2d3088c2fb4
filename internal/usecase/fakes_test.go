package usecase

import (
	"context"
	"io"
	"log/slog"

	"TrafficSync/internal/budget"
	"TrafficSync/internal/domain"
	"TrafficSync/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCatalog implements ports.ContentCatalog in memory.
type fakeCatalog struct {
	articles   int
	courses    int
	countErr   error
	rows       []domain.ContentMappingEntry
	rowsErr    error
	batchErr   error
	batchCalls [][]domain.MetricsDelta
	oneErrFor  map[string]error
	oneApplied []string
}

var _ ports.ContentCatalog = (*fakeCatalog)(nil)

func (f *fakeCatalog) CountArticles(context.Context) (int, error) {
	return f.articles, f.countErr
}

func (f *fakeCatalog) CountCourses(context.Context) (int, error) {
	return f.courses, f.countErr
}

func (f *fakeCatalog) MappingRows(context.Context, int) ([]domain.ContentMappingEntry, error) {
	return f.rows, f.rowsErr
}

func (f *fakeCatalog) ApplyBatch(_ context.Context, deltas []domain.MetricsDelta) error {
	f.batchCalls = append(f.batchCalls, deltas)
	return f.batchErr
}

func (f *fakeCatalog) ApplyOne(_ context.Context, delta domain.MetricsDelta) error {
	if err, ok := f.oneErrFor[delta.ArticleID]; ok {
		return err
	}
	f.oneApplied = append(f.oneApplied, delta.ArticleID)
	return nil
}

// fakeJob drives the fetcher poll loop deterministically.
type fakeJob struct {
	id        string
	doneAfter int // completed Done calls before reporting done
	polls     int
	doneErr   error
	rows      []domain.RawMetricAggregate
	resultErr error
	cancelled bool
}

var _ ports.AnalyticsJob = (*fakeJob)(nil)

func (j *fakeJob) ID() string { return j.id }

func (j *fakeJob) Done(context.Context) (bool, error) {
	if j.doneErr != nil {
		return false, j.doneErr
	}
	j.polls++
	return j.polls > j.doneAfter, nil
}

func (j *fakeJob) Result(context.Context) ([]domain.RawMetricAggregate, error) {
	return j.rows, j.resultErr
}

func (j *fakeJob) Cancel(context.Context) error {
	j.cancelled = true
	return nil
}

// fakeWarehouse records submitted queries and replays canned jobs in order.
type fakeWarehouse struct {
	missing    map[string]bool // partitions that do not exist
	probeErr   error
	jobs       []*fakeJob
	submitErrs []error
	submits    []ports.AnalyticsQuery
}

var _ ports.AnalyticsWarehouse = (*fakeWarehouse)(nil)

func (w *fakeWarehouse) PartitionExists(_ context.Context, suffix string) (bool, error) {
	if w.probeErr != nil {
		return false, w.probeErr
	}
	return !w.missing[suffix], nil
}

func (w *fakeWarehouse) Submit(_ context.Context, q ports.AnalyticsQuery) (ports.AnalyticsJob, error) {
	i := len(w.submits)
	w.submits = append(w.submits, q)

	if i < len(w.submitErrs) && w.submitErrs[i] != nil {
		return nil, w.submitErrs[i]
	}
	if i < len(w.jobs) && w.jobs[i] != nil {
		return w.jobs[i], nil
	}
	return &fakeJob{id: "job-default"}, nil
}

// Pipeline collaborator fakes.

type fakeLoader struct {
	mapping map[string]domain.ContentMappingEntry
	err     error
	called  bool
}

func (f *fakeLoader) Load(context.Context) (map[string]domain.ContentMappingEntry, error) {
	f.called = true
	return f.mapping, f.err
}

type fakeFetcher struct {
	rows     []domain.RawMetricAggregate
	called   bool
	daysBack int
}

func (f *fakeFetcher) Fetch(_ context.Context, daysBack int) []domain.RawMetricAggregate {
	f.called = true
	f.daysBack = daysBack
	return f.rows
}

type fakeDeltaReconciler struct {
	deltas []domain.MetricsDelta
	called bool
}

func (f *fakeDeltaReconciler) Run([]domain.RawMetricAggregate, map[string]domain.ContentMappingEntry) []domain.MetricsDelta {
	f.called = true
	return f.deltas
}

type fakeDispatcher struct {
	applied int
	called  bool
	got     []domain.MetricsDelta
}

func (f *fakeDispatcher) Apply(_ context.Context, _ *budget.Guard, deltas []domain.MetricsDelta) int {
	f.called = true
	f.got = deltas
	return f.applied
}
