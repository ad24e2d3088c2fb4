package usecase

import (
	"context"
	"log/slog"

	"TrafficSync/internal/budget"
	"TrafficSync/internal/domain"
	"TrafficSync/internal/ports"
)

// Dispatcher persists deltas to the catalog in fixed-size batches. A failed
// batch statement degrades to per-row updates; a failed row is logged and
// skipped. Partial success is acceptable, so Apply never aborts the run.
type Dispatcher struct {
	catalog   ports.ContentCatalog
	batchSize int
	logger    *slog.Logger
}

// NewDispatcher wires the catalog port; batchSize defaults to 500.
func NewDispatcher(catalog ports.ContentCatalog, batchSize int, logger *slog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Dispatcher{catalog: catalog, batchSize: batchSize, logger: logger}
}

// Apply writes the deltas batch by batch, in list order, and returns the count
// of successfully applied deltas. The guard is consulted between batches; on
// exceeding the budget the remaining batches are dropped.
func (d *Dispatcher) Apply(ctx context.Context, guard *budget.Guard, deltas []domain.MetricsDelta) int {
	if len(deltas) == 0 {
		d.info("no deltas to apply")
		return 0
	}

	applied := 0
	for start := 0; start < len(deltas); start += d.batchSize {
		if err := guard.Check("apply updates"); err != nil {
			d.warn("stopping batch updates", "applied", applied, "remaining", len(deltas)-start, "error", err)
			break
		}

		end := start + d.batchSize
		if end > len(deltas) {
			end = len(deltas)
		}
		batch := deltas[start:end]

		if err := d.catalog.ApplyBatch(ctx, batch); err != nil {
			d.warn("batch update failed, falling back to per-row updates",
				"batch_start", start, "size", len(batch), "error", err)
			applied += d.applyIndividually(ctx, guard, batch)
			continue
		}

		applied += len(batch)
		d.info("batch applied", "applied", applied, "total", len(deltas))
	}

	return applied
}

func (d *Dispatcher) applyIndividually(ctx context.Context, guard *budget.Guard, batch []domain.MetricsDelta) int {
	applied := 0
	for _, delta := range batch {
		if err := guard.Check("individual update"); err != nil {
			d.warn("stopping individual updates", "applied", applied, "error", err)
			break
		}

		if err := d.catalog.ApplyOne(ctx, delta); err != nil {
			d.warn("row update failed, skipping", "article_id", delta.ArticleID, "error", err)
			continue
		}
		applied++
	}

	return applied
}

func (d *Dispatcher) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
