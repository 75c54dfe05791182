package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/db"
	"github.com/sells-group/ohss-collector/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(5)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate applies any pending embedded migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CommitBatch stages recs with COPY and inserts the new ones in one transaction.
func (s *PostgresStore) CommitBatch(ctx context.Context, kind model.EntityKind, recs []model.ActivityRecord) (int64, error) {
	table, cols, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	rows, err := rowValues(kind, recs)
	if err != nil {
		return 0, err
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, db.InsertConfig{
		Table:        table,
		Columns:      cols,
		ConflictKeys: conflictKeys,
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: commit %s batch", kind)
	}

	zap.L().Debug("postgres: batch committed",
		zap.String("table", table),
		zap.Int("records", len(recs)),
		zap.Int64("inserted", n),
	)
	return n, nil
}

// AppendHealth inserts one run health row.
func (s *PostgresStore) AppendHealth(ctx context.Context, rec model.HealthRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO data_source_health
			(run_id, source_name, last_successful_fetch, last_attempt, status, error_message, records_fetched)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.RunID, rec.SourceName, rec.LastSuccessfulFetch, rec.LastAttempt,
		string(rec.Status), rec.ErrorMessage, rec.RecordsFetched,
	)
	return eris.Wrap(err, "postgres: append health")
}

// LatestHealth returns the most recent health row per source.
func (s *PostgresStore) LatestHealth(ctx context.Context) ([]model.HealthRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (source_name) `+healthColumns+`
		FROM data_source_health
		ORDER BY source_name, created_at DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest health")
	}
	return collectPG(rows, scanHealth)
}

// ListHealth returns up to limit health rows, newest first.
func (s *PostgresStore) ListHealth(ctx context.Context, limit int) ([]model.HealthRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+healthColumns+`
		FROM data_source_health
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, RecordFilter{Limit: limit}.limit())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list health")
	}
	return collectPG(rows, scanHealth)
}

func (s *PostgresStore) ListArrests(ctx context.Context, f RecordFilter) ([]model.Arrest, error) {
	q, args := listQuery(dollar, model.KindArrests, f)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list arrests")
	}
	return collectPG(rows, scanArrest)
}

func (s *PostgresStore) ListDetentions(ctx context.Context, f RecordFilter) ([]model.Detention, error) {
	q, args := listQuery(dollar, model.KindDetentions, f)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list detentions")
	}
	return collectPG(rows, scanDetention)
}

func (s *PostgresStore) ListRemovals(ctx context.Context, f RecordFilter) ([]model.Removal, error) {
	q, args := listQuery(dollar, model.KindRemovals, f)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list removals")
	}
	return collectPG(rows, scanRemoval)
}

func (s *PostgresStore) Aggregate(ctx context.Context, state string, start, end time.Time) (*Aggregate, error) {
	q, args := aggregateQuery(dollar, state, start, end)
	agg := &Aggregate{Period: aggregatePeriod(state), StartDate: start, EndDate: end}
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&agg.TotalArrests, &agg.TotalDetentions, &agg.TotalRemovals); err != nil {
		return nil, eris.Wrap(err, "postgres: aggregate")
	}
	return agg, nil
}

func collectPG[T any](rows pgx.Rows, scan func(scannable) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate rows")
}
