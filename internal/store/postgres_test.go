package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/db"
	"github.com/sells-group/ohss-collector/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func testArrests() []model.ActivityRecord {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []model.ActivityRecord{
		&model.Arrest{Timestamp: ts, State: strPtr("CA"), ArrestCount: intPtr(120), DataSource: "OHSS", SourceURL: "https://ohss.dhs.gov/a.csv", Key: "ohss_2026-01-01_ca__"},
		&model.Arrest{Timestamp: ts, State: strPtr("TX"), ArrestCount: intPtr(80), DataSource: "OHSS", SourceURL: "https://ohss.dhs.gov/a.csv", Key: "ohss_2026-01-01_tx__"},
	}
}

func TestPostgres_CommitBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{db.TempTable("arrests")}, arrestColumns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO \"arrests\"").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	s := NewPostgresFromPool(mock)
	n, err := s.CommitBatch(context.Background(), model.KindArrests, testArrests())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CommitBatch_Duplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{db.TempTable("arrests")}, arrestColumns).WillReturnResult(2)
	mock.ExpectExec("INSERT INTO \"arrests\"").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := NewPostgresFromPool(mock).CommitBatch(context.Background(), model.KindArrests, testArrests())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPostgres_CommitBatch_Failure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	n, err := NewPostgresFromPool(mock).CommitBatch(context.Background(), model.KindArrests, testArrests())
	require.Error(t, err)
	assert.Equal(t, int64(0), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CommitBatch_KindMismatch(t *testing.T) {
	_, err := NewPostgresFromPool(nil).CommitBatch(context.Background(), model.KindRemovals, testArrests())
	require.Error(t, err)

	_, err = NewPostgresFromPool(nil).CommitBatch(context.Background(), model.KindUnknown, nil)
	require.Error(t, err)
}

func TestPostgres_AppendHealth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 10, 16, 2, 0, 0, 0, time.UTC)
	rec := model.HealthRecord{
		RunID:               "run-1",
		SourceName:          "OHSS",
		LastAttempt:         now,
		LastSuccessfulFetch: &now,
		Status:              model.HealthSuccess,
		RecordsFetched:      1,
	}
	mock.ExpectExec("INSERT INTO data_source_health").
		WithArgs("run-1", "OHSS", &now, now, "success", (*string)(nil), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresFromPool(mock).AppendHealth(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LatestHealth(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 10, 16, 2, 0, 0, 0, time.UTC)
	msg := "listing unreachable"
	rows := pgxmock.NewRows([]string{
		"id", "run_id", "source_name", "last_successful_fetch", "last_attempt",
		"status", "error_message", "records_fetched", "created_at",
	}).AddRow(int64(7), "run-7", "OHSS", (*time.Time)(nil), now, "failed", &msg, 0, now)
	mock.ExpectQuery("SELECT DISTINCT ON \\(source_name\\)").WillReturnRows(rows)

	got, err := NewPostgresFromPool(mock).LatestHealth(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.HealthFailed, got[0].Status)
	assert.Nil(t, got[0].LastSuccessfulFetch)
	require.NotNil(t, got[0].ErrorMessage)
	assert.Equal(t, msg, *got[0].ErrorMessage)
}

func TestPostgres_ListArrests(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "timestamp", "state", "county", "city",
		"arrest_count", "criminal_arrests", "non_criminal_arrests",
		"data_source", "source_url", "dedup_key", "created_at",
	}).AddRow(int64(1), ts, strPtr("CA"), (*string)(nil), (*string)(nil),
		intPtr(120), (*int)(nil), (*int)(nil),
		"OHSS", "https://ohss.dhs.gov/a.csv", "ohss_2026-01-01_ca__", ts)

	mock.ExpectQuery("FROM arrests\\s+WHERE state = \\$1").
		WithArgs("CA", 100).
		WillReturnRows(rows)

	got, err := NewPostgresFromPool(mock).ListArrests(context.Background(), RecordFilter{State: "ca"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CA", *got[0].State)
	assert.Equal(t, 120, *got[0].ArrestCount)
	assert.Nil(t, got[0].County)
}

func TestPostgres_Aggregate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SUM\\(arrest_count\\)").
		WithArgs(start, end, start, end, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"a", "d", "r"}).AddRow(int64(200), int64(35), int64(12)))

	agg, err := NewPostgresFromPool(mock).Aggregate(context.Background(), "", start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(200), agg.TotalArrests)
	assert.Equal(t, int64(35), agg.TotalDetentions)
	assert.Equal(t, int64(12), agg.TotalRemovals)
	assert.Equal(t, "custom", agg.Period)
}

func TestPostgres_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	names, err := migrationFiles("postgres")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	mock.ExpectExec("SELECT pg_advisory_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow(names[0]))
	for _, name := range names[1:] {
		mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("EXEC", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(name).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("SELECT pg_advisory_unlock").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, NewPostgresFromPool(mock).Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_MigrateLockFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WillReturnError(errors.New("timeout"))
	err = NewPostgresFromPool(mock).Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration lock")
}

func TestPostgres_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, NewPostgresFromPool(mock).Ping(context.Background()))
	assert.NoError(t, NewPostgresFromPool(mock).Close())
}
