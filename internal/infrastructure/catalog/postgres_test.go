package catalog

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrafficSync/internal/domain"
)

func newMockCatalog(t *testing.T) (*PostgresCatalog, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgresCatalog(db, nil), mock
}

func TestCountArticles(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM articles")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := catalog.CountArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountCoursesRemoteError(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses")).
		WillReturnError(sql.ErrConnDone)

	_, err := catalog.CountCourses(context.Background())
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestMappingRows(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	rows := sqlmock.NewRows([]string{
		"slug", "id", "link", "title",
		"pageviews", "organic_sessions", "engaged_sessions", "avg_engagement_time",
	}).
		AddRow("accounting", "a1", "vat-basics", "VAT basics", 100, 40, 30, 10.5).
		AddRow("accounting", "a2", "payroll", "Payroll intro", 0, 0, 0, 0.0)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses c JOIN articles a ON c.id = a.course_id")).
		WillReturnRows(rows)

	entries, err := catalog.MappingRows(context.Background(), 10000)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "accounting", entries[0].CourseSlug)
	assert.Equal(t, "a1", entries[0].ArticleID)
	assert.Equal(t, "vat-basics", entries[0].Link)
	assert.Equal(t, 100, entries[0].CurrentPageviews)
	assert.Equal(t, 10.5, entries[0].CurrentAvgEngagementTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyOne(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE articles SET pageviews = $1, organic_sessions = $2, engaged_sessions = $3, avg_engagement_time = $4, last_synced = NOW() WHERE id = $5",
	)).
		WithArgs(120, 40, 30, 30.0, "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := catalog.ApplyOne(context.Background(), domain.MetricsDelta{
		ArticleID:            "a1",
		NewPageviews:         120,
		NewOrganicSessions:   40,
		NewEngagedSessions:   30,
		NewAvgEngagementTime: 30.0,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatchBuildsCaseUpdate(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET pageviews = CASE id WHEN $1 THEN $2 ELSE pageviews END")).
		WithArgs(
			"a1", 120,
			"a1", 40,
			"a1", 30,
			"a1", 30.0,
			"a1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := catalog.ApplyBatch(context.Background(), []domain.MetricsDelta{{
		ArticleID:            "a1",
		NewPageviews:         120,
		NewOrganicSessions:   40,
		NewEngagedSessions:   30,
		NewAvgEngagementTime: 30.0,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatchEmptyIsNoop(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	require.NoError(t, catalog.ApplyBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatchRemoteError(t *testing.T) {
	catalog, mock := newMockCatalog(t)

	mock.ExpectExec("UPDATE articles").WillReturnError(errors.New("deadlock detected"))

	err := catalog.ApplyBatch(context.Background(), []domain.MetricsDelta{{ArticleID: "a1"}})
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "batch update", remote.Op)
}
