// Package postgres implements the remote row store and a LISTEN/NOTIFY change
// feed on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// notifyChannel carries every row change. Payloads name their owner and
// listeners filter on it.
const notifyChannel = "fitsync_changes"

// DB wraps a *sql.DB and implements domain.RemoteStore.
type DB struct {
	sql *sql.DB
}

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := New(s)
	if err := d.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// New wraps an open database without migrating it.
func New(s *sql.DB) *DB {
	return &DB{sql: s}
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks that the server is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS weight_logs (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		unit TEXT NOT NULL CHECK(unit IN ('kg','lb')),
		day TEXT NOT NULL,
		logged_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS daily_metrics (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL,
		date TEXT NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		water_liters DOUBLE PRECISION NOT NULL DEFAULT 0,
		active_minutes INTEGER NOT NULL DEFAULT 0,
		calories_burned DOUBLE PRECISION NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS body_metrics (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL,
		date TEXT NOT NULL,
		body_fat_percent DOUBLE PRECISION,
		muscle_mass_kg DOUBLE PRECISION,
		waist_cm DOUBLE PRECISION,
		hip_cm DOUBLE PRECISION,
		chest_cm DOUBLE PRECISION,
		notes TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		birth_date TEXT NOT NULL DEFAULT '',
		sex TEXT NOT NULL DEFAULT '',
		height_cm DOUBLE PRECISION,
		goal_weight DOUBLE PRECISION,
		preferred_unit TEXT NOT NULL DEFAULT '',
		daily_step_goal INTEGER,
		daily_water_goal DOUBLE PRECISION,
		timezone TEXT NOT NULL DEFAULT ''
	);`,
	"CREATE INDEX IF NOT EXISTS idx_weight_logs_owner ON weight_logs(owner_id);",
	"CREATE INDEX IF NOT EXISTS idx_daily_metrics_owner ON daily_metrics(owner_id);",
	"CREATE INDEX IF NOT EXISTS idx_body_metrics_owner ON body_metrics(owner_id);",
	"CREATE INDEX IF NOT EXISTS idx_user_profiles_owner ON user_profiles(owner_id);",
	`CREATE OR REPLACE FUNCTION fitsync_notify() RETURNS trigger AS $$
	DECLARE
		new_row JSON;
		prev_row JSON;
		row_owner TEXT;
	BEGIN
		IF TG_OP <> 'DELETE' THEN
			new_row := row_to_json(NEW);
			row_owner := NEW.owner_id;
		END IF;
		IF TG_OP <> 'INSERT' THEN
			prev_row := row_to_json(OLD);
			row_owner := OLD.owner_id;
		END IF;
		PERFORM pg_notify('` + notifyChannel + `', json_build_object(
			'event', lower(TG_OP),
			'table', TG_TABLE_NAME,
			'owner', row_owner,
			'origin', current_setting('fitsync.origin', true),
			'record', new_row,
			'old_record', prev_row
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;`,
}

// Migrate creates the synchronized tables and their change triggers.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, table := range tables() {
		trigger := table + "_notify"
		stmts := []string{
			fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;", trigger, table),
			fmt.Sprintf("CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION fitsync_notify();", trigger, table),
		}
		for _, stmt := range stmts {
			if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %s trigger: %w", table, err)
			}
		}
	}
	return nil
}
