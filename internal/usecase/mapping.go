package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"TrafficSync/internal/domain"
	"TrafficSync/internal/normalize"
	"TrafficSync/internal/ports"
)

// MappingLoader builds the in-memory index from normalized content path to
// article identity plus the current metric snapshot. Errors result in an empty
// mapping (the pipeline short-circuits with a failed status), never a crash.
type MappingLoader struct {
	catalog ports.ContentCatalog
	section string
	limit   int
	logger  *slog.Logger
}

// NewMappingLoader wires the catalog port and the shared section marker.
func NewMappingLoader(catalog ports.ContentCatalog, section string, limit int, logger *slog.Logger) *MappingLoader {
	if limit <= 0 {
		limit = 10000
	}
	return &MappingLoader{catalog: catalog, section: section, limit: limit, logger: logger}
}

// Load probes both source tables, then issues the join query and keys every row
// by its path pattern. An empty map with a nil error means the catalog had no
// usable rows.
func (l *MappingLoader) Load(ctx context.Context) (map[string]domain.ContentMappingEntry, error) {
	mapping := map[string]domain.ContentMappingEntry{}

	articles, err := l.catalog.CountArticles(ctx)
	if err != nil {
		return mapping, fmt.Errorf("probe articles: %w", err)
	}
	courses, err := l.catalog.CountCourses(ctx)
	if err != nil {
		return mapping, fmt.Errorf("probe courses: %w", err)
	}

	if articles == 0 || courses == 0 {
		l.warn("catalog tables empty", "articles", articles, "courses", courses)
		return mapping, nil
	}

	rows, err := l.catalog.MappingRows(ctx, l.limit)
	if err != nil {
		return mapping, fmt.Errorf("load mapping rows: %w", err)
	}

	for _, row := range rows {
		row.Link = normalize.Link(row.Link)
		pattern := normalize.Pattern(row.CourseSlug, l.section, row.Link)
		if prev, ok := mapping[pattern]; ok && prev.ArticleID != row.ArticleID {
			// Two articles normalizing to the same path; last write wins.
			l.warn("mapping pattern collision",
				"pattern", pattern,
				"kept", row.ArticleID,
				"dropped", prev.ArticleID)
		}

		row.Pattern = pattern
		mapping[pattern] = row
	}

	l.debug("mapping loaded", "rows", len(rows), "patterns", len(mapping))
	return mapping, nil
}

func (l *MappingLoader) debug(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

func (l *MappingLoader) warn(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
