// Package sqlite implements the on-device record cache and queue store on an
// embedded SQLite database.
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"fitsync/internal/adapter/sqlite/migrations"
	"fitsync/internal/domain"
)

// Sealer encrypts cached payloads at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// DB is the local store. It implements domain.LocalCache and
// domain.QueueStore.
type DB struct {
	sql    *sql.DB
	sealer Sealer
}

var _ domain.LocalCache = (*DB)(nil)
var _ domain.QueueStore = (*DB)(nil)

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*DB, error) {
	s, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(1)

	if err := runMigrations(ctx, s); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &DB{sql: s}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.sql.Close()
}

// SetSealer encrypts payloads written from now on and decrypts payloads read.
func (d *DB) SetSealer(s Sealer) {
	d.sealer = s
}

// Salt returns the per-database key derivation salt, creating it on first use.
func (d *DB) Salt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'salt';").Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	salt = make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if _, err := d.sql.ExecContext(ctx, "INSERT INTO meta(key, value) VALUES('salt', ?);", salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (d *DB) seal(b []byte) ([]byte, error) {
	if d.sealer == nil {
		return b, nil
	}
	return d.sealer.Seal(b)
}

func (d *DB) open(b []byte) ([]byte, error) {
	if d.sealer == nil {
		return b, nil
	}
	return d.sealer.Open(b)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
