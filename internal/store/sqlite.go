package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ohss-collector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Ping checks that the database file is open.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Migrate applies any pending embedded migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrateSQLite(ctx, s.db)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CommitBatch inserts recs with INSERT OR IGNORE inside one transaction.
func (s *SQLiteStore) CommitBatch(ctx context.Context, kind model.EntityKind, recs []model.ActivityRecord) (int64, error) {
	table, cols, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	rows, err := rowValues(kind, recs)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert into %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	var inserted int64
	for i, row := range rows {
		res, err := stmt.ExecContext(ctx, row...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert %s row %d", table, i)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return inserted, nil
}

// AppendHealth inserts one run health row.
func (s *SQLiteStore) AppendHealth(ctx context.Context, rec model.HealthRecord) error {
	var lastSuccess any
	if rec.LastSuccessfulFetch != nil {
		lastSuccess = rec.LastSuccessfulFetch.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO data_source_health
			(run_id, source_name, last_successful_fetch, last_attempt, status, error_message, records_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SourceName, lastSuccess, rec.LastAttempt.UTC(),
		string(rec.Status), opt(rec.ErrorMessage), rec.RecordsFetched,
	)
	return eris.Wrap(err, "sqlite: append health")
}

// LatestHealth returns the most recent health row per source.
func (s *SQLiteStore) LatestHealth(ctx context.Context) ([]model.HealthRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+healthColumns+`
		FROM data_source_health h
		WHERE id = (SELECT MAX(id) FROM data_source_health WHERE source_name = h.source_name)
		ORDER BY source_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest health")
	}
	return collectSQL(rows, scanHealth)
}

// ListHealth returns up to limit health rows, newest first.
func (s *SQLiteStore) ListHealth(ctx context.Context, limit int) ([]model.HealthRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+healthColumns+`
		FROM data_source_health
		ORDER BY id DESC
		LIMIT ?`, RecordFilter{Limit: limit}.limit())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list health")
	}
	return collectSQL(rows, scanHealth)
}

func (s *SQLiteStore) ListArrests(ctx context.Context, f RecordFilter) ([]model.Arrest, error) {
	q, args := listQuery(question, model.KindArrests, f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list arrests")
	}
	return collectSQL(rows, scanArrest)
}

func (s *SQLiteStore) ListDetentions(ctx context.Context, f RecordFilter) ([]model.Detention, error) {
	q, args := listQuery(question, model.KindDetentions, f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list detentions")
	}
	return collectSQL(rows, scanDetention)
}

func (s *SQLiteStore) ListRemovals(ctx context.Context, f RecordFilter) ([]model.Removal, error) {
	q, args := listQuery(question, model.KindRemovals, f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list removals")
	}
	return collectSQL(rows, scanRemoval)
}

func (s *SQLiteStore) Aggregate(ctx context.Context, state string, start, end time.Time) (*Aggregate, error) {
	q, args := aggregateQuery(question, state, start, end)
	agg := &Aggregate{Period: aggregatePeriod(state), StartDate: start, EndDate: end}
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&agg.TotalArrests, &agg.TotalDetentions, &agg.TotalRemovals); err != nil {
		return nil, eris.Wrap(err, "sqlite: aggregate")
	}
	return agg, nil
}

func collectSQL[T any](rows *sql.Rows, scan func(scannable) (T, error)) ([]T, error) {
	defer rows.Close() //nolint:errcheck
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rows")
}
