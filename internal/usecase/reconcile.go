package usecase

import (
	"log/slog"

	"TrafficSync/internal/domain"
	"TrafficSync/internal/normalize"
)

const (
	// engagementEpsilonSeconds is the materiality threshold for the average
	// engagement time; counters are material on any non-zero difference.
	engagementEpsilonSeconds = 0.1

	titleExcerptLen  = 50
	reconcileChunk   = 1000
	progressLogChunk = 2000
	msPerSecond      = 1000
)

// pathTotals accumulates metrics across duplicate rows for one normalized path.
type pathTotals struct {
	pageviews       int
	organicSessions int
	engagedSessions int
	engagementMs    int64
	sessions        int
}

// Reconciler joins normalized analytics aggregates against the mapping index
// and emits deltas for materially changed articles.
type Reconciler struct {
	host    string
	section string
	logger  *slog.Logger
}

// NewReconciler pins the host and section marker shared with the normalizer.
func NewReconciler(host, section string, logger *slog.Logger) *Reconciler {
	return &Reconciler{host: host, section: section, logger: logger}
}

// Run normalizes and aggregates the raw rows, joins them against the mapping,
// and keeps only material changes. Unmatched paths are skipped silently;
// running twice against an unchanged snapshot yields no deltas.
func (r *Reconciler) Run(raw []domain.RawMetricAggregate, mapping map[string]domain.ContentMappingEntry) []domain.MetricsDelta {
	totals := map[string]pathTotals{}

	// Chunked purely for progress logging; chunk size has no effect on output.
	for start := 0; start < len(raw); start += reconcileChunk {
		end := start + reconcileChunk
		if end > len(raw) {
			end = len(raw)
		}

		for _, row := range raw[start:end] {
			path, ok := normalize.Path(row.PageLocation, r.host, r.section)
			if !ok {
				continue
			}

			t := totals[path]
			t.pageviews += row.Pageviews
			t.organicSessions += row.OrganicSessions
			t.engagedSessions += row.EngagedSessions
			t.engagementMs += row.TotalEngagementTimeMs
			t.sessions += row.TotalSessions
			totals[path] = t
		}

		if start > 0 && start%progressLogChunk == 0 {
			r.debug("normalization progress", "processed", start, "total", len(raw))
		}
	}

	deltas := make([]domain.MetricsDelta, 0)
	matched := 0

	for path, t := range totals {
		entry, ok := mapping[path]
		if !ok {
			continue
		}
		matched++

		avgEngagement := 0.0
		if t.sessions > 0 {
			avgEngagement = float64(t.engagementMs) / float64(t.sessions*msPerSecond)
		}

		if !material(entry, t, avgEngagement) {
			continue
		}

		deltas = append(deltas, domain.MetricsDelta{
			ArticleID:            entry.ArticleID,
			NewPageviews:         t.pageviews,
			NewOrganicSessions:   t.organicSessions,
			NewEngagedSessions:   t.engagedSessions,
			NewAvgEngagementTime: avgEngagement,
			CourseSlug:           entry.CourseSlug,
			TitleExcerpt:         excerpt(entry.Title),
		})
	}

	r.info("reconcile done",
		"raw_rows", len(raw),
		"unique_paths", len(totals),
		"matched", matched,
		"deltas", len(deltas))

	return deltas
}

func material(entry domain.ContentMappingEntry, t pathTotals, avgEngagement float64) bool {
	if entry.CurrentPageviews != t.pageviews {
		return true
	}
	if entry.CurrentOrganicSessions != t.organicSessions {
		return true
	}
	if entry.CurrentEngagedSessions != t.engagedSessions {
		return true
	}
	diff := entry.CurrentAvgEngagementTime - avgEngagement
	if diff < 0 {
		diff = -diff
	}
	return diff > engagementEpsilonSeconds
}

func excerpt(title string) string {
	runes := []rune(title)
	if len(runes) <= titleExcerptLen {
		return title
	}
	return string(runes[:titleExcerptLen]) + "..."
}

func (r *Reconciler) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Reconciler) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}
