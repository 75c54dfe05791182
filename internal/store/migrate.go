package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/db"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// migrationLockID serializes concurrent Postgres migrations.
const migrationLockID = 4711_2026

func migrationFiles(dialect string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s migrations", dialect)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// migratePostgres applies pending files from migrations/postgres in
// lexicographic order under an advisory lock, recording each in
// schema_migrations.
func migratePostgres(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: failed to release migration lock", zap.Error(err))
		}
	}()

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	rows, err := pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: query applied migrations")
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: iterate migrations")
	}

	names, err := migrationFiles("postgres")
	if err != nil {
		return err
	}
	for _, name := range names {
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/postgres/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := pool.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

// migrateSQLite applies pending files from migrations/sqlite. SQLite has a
// single writer, so no lock is taken.
func migrateSQLite(ctx context.Context, conn *sql.DB) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	names, err := migrationFiles("sqlite")
	if err != nil {
		return err
	}
	for _, name := range names {
		var n int
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&n); err != nil {
			return eris.Wrapf(err, "sqlite: check migration %s", name)
		}
		if n > 0 {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/sqlite/" + name)
		if err != nil {
			return eris.Wrapf(err, "sqlite: read migration %s", name)
		}
		if _, err := conn.ExecContext(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", name)
		}
		if _, err := conn.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}
