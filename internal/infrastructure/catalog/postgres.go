// Package catalog implements the ContentCatalog port on the article warehouse.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"TrafficSync/internal/domain"
	"TrafficSync/internal/ports"
)

const (
	articlesTable = "articles"
	coursesTable  = "courses"
)

// PostgresCatalog reads the article/course tables and writes metric updates.
type PostgresCatalog struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

var _ ports.ContentCatalog = (*PostgresCatalog)(nil)

// NewPostgresCatalog wires a sql.DB implementation.
func NewPostgresCatalog(db *sql.DB, logger *slog.Logger) *PostgresCatalog {
	return &PostgresCatalog{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

// CountArticles probes the article table.
func (c *PostgresCatalog) CountArticles(ctx context.Context) (int, error) {
	return c.count(ctx, articlesTable)
}

// CountCourses probes the course table.
func (c *PostgresCatalog) CountCourses(ctx context.Context) (int, error) {
	return c.count(ctx, coursesTable)
}

func (c *PostgresCatalog) count(ctx context.Context, table string) (int, error) {
	query, args, err := c.sb.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count %s: %w", table, err)
	}

	var count int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &domain.RemoteError{Op: "count " + table, Err: err}
	}

	return count, nil
}

// MappingRows joins articles with their courses, capped at limit rows.
// Pattern is left empty; the mapping loader derives it.
func (c *PostgresCatalog) MappingRows(ctx context.Context, limit int) ([]domain.ContentMappingEntry, error) {
	query, args, err := c.sb.
		Select(
			"c.slug",
			"a.id",
			"a.link",
			"a.title",
			"COALESCE(a.pageviews, 0)",
			"COALESCE(a.organic_sessions, 0)",
			"COALESCE(a.engaged_sessions, 0)",
			"COALESCE(a.avg_engagement_time, 0)",
		).
		From(coursesTable + " c").
		Join(articlesTable + " a ON c.id = a.course_id").
		Where("c.slug IS NOT NULL AND c.slug <> ''").
		Where("a.link IS NOT NULL AND a.link <> ''").
		Where("a.id IS NOT NULL").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build mapping query: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.RemoteError{Op: "mapping query", Err: err}
	}
	defer rows.Close()

	var entries []domain.ContentMappingEntry
	for rows.Next() {
		var entry domain.ContentMappingEntry
		if err := rows.Scan(
			&entry.CourseSlug,
			&entry.ArticleID,
			&entry.Link,
			&entry.Title,
			&entry.CurrentPageviews,
			&entry.CurrentOrganicSessions,
			&entry.CurrentEngagedSessions,
			&entry.CurrentAvgEngagementTime,
		); err != nil {
			return nil, fmt.Errorf("scan mapping row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mapping rows iteration: %w", err)
	}

	return entries, nil
}

// ApplyBatch writes one batch of deltas as a single conditional update: every
// metric column becomes a CASE mapping keyed by article id, so articles outside
// the batch keep their values.
func (c *PostgresCatalog) ApplyBatch(ctx context.Context, deltas []domain.MetricsDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	ids := make([]string, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.ArticleID)
	}

	query, args, err := c.sb.
		Update(articlesTable).
		Set("pageviews", caseExpr("pageviews", deltas, func(d domain.MetricsDelta) any { return d.NewPageviews })).
		Set("organic_sessions", caseExpr("organic_sessions", deltas, func(d domain.MetricsDelta) any { return d.NewOrganicSessions })).
		Set("engaged_sessions", caseExpr("engaged_sessions", deltas, func(d domain.MetricsDelta) any { return d.NewEngagedSessions })).
		Set("avg_engagement_time", caseExpr("avg_engagement_time", deltas, func(d domain.MetricsDelta) any { return d.NewAvgEngagementTime })).
		Set("last_synced", sq.Expr("NOW()")).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build batch update: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.RemoteError{Op: "batch update", Err: err}
	}

	c.debug("batch update applied", "size", len(deltas))
	return nil
}

// ApplyOne writes a single delta; the fallback path when a batch fails.
func (c *PostgresCatalog) ApplyOne(ctx context.Context, delta domain.MetricsDelta) error {
	query, args, err := c.sb.
		Update(articlesTable).
		Set("pageviews", delta.NewPageviews).
		Set("organic_sessions", delta.NewOrganicSessions).
		Set("engaged_sessions", delta.NewEngagedSessions).
		Set("avg_engagement_time", delta.NewAvgEngagementTime).
		Set("last_synced", sq.Expr("NOW()")).
		Where(sq.Eq{"id": delta.ArticleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build row update: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.RemoteError{Op: "row update", Err: err}
	}

	return nil
}

// caseExpr renders "CASE id WHEN ? THEN ? ... ELSE <column> END" with bound
// parameters, one WHEN arm per delta.
func caseExpr(column string, deltas []domain.MetricsDelta, value func(domain.MetricsDelta) any) sq.Sqlizer {
	var sb strings.Builder
	args := make([]any, 0, len(deltas)*2)

	sb.WriteString("CASE id")
	for _, d := range deltas {
		sb.WriteString(" WHEN ? THEN ?")
		args = append(args, d.ArticleID, value(d))
	}
	sb.WriteString(" ELSE ")
	sb.WriteString(column)
	sb.WriteString(" END")

	return sq.Expr(sb.String(), args...)
}

func (c *PostgresCatalog) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
