package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// The collector owns these tables in production. Migrate exists so a local SQLite
// file or a fresh Postgres database has the schema the catalog reads.
var migrations = []migration{
	{
		Version:     1,
		Description: "Temperature log",
		SQL: `
CREATE TABLE IF NOT EXISTS temp_log (
    date TIMESTAMP NOT NULL,
    temp DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_temp_log_date ON temp_log(date);
CREATE INDEX IF NOT EXISTS idx_temp_log_temp ON temp_log(temp);
`,
	},
	{
		Version:     2,
		Description: "Humidity log, written alongside temperature since humidity collection began",
		SQL: `
CREATE TABLE IF NOT EXISTS hum_log (
    date TIMESTAMP NOT NULL,
    temp DOUBLE PRECISION,
    humidity DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_hum_log_date ON hum_log(date);
`,
	},
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		s.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO schema_migrations (version, description, applied_at) VALUES (%s, %s, %s)",
				s.placeholder(1), s.placeholder(2), s.placeholder(3)),
			m.Version, m.Description, time.Now().UTC().Format(sqlTimeLayout),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TEXT
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
