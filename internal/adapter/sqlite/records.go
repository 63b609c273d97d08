package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fitsync/internal/domain"
)

// SaveRecord inserts or replaces a cached record.
func (d *DB) SaveRecord(ctx context.Context, r domain.Record) error {
	row, err := domain.MarshalRow(r)
	if err != nil {
		return err
	}
	payload, err := d.seal(row)
	if err != nil {
		return fmt.Errorf("seal %s %s: %w", r.Kind(), r.ID, err)
	}
	_, err = d.sql.ExecContext(ctx,
		`INSERT INTO records(kind, id, owner_id, payload, sync_status, is_deleted, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   payload = excluded.payload,
		   sync_status = excluded.sync_status,
		   is_deleted = excluded.is_deleted,
		   updated_at = excluded.updated_at;`,
		string(r.Kind()), r.ID, r.Owner, payload, string(r.SyncStatus), r.IsDeleted, formatTime(r.UpdatedAt),
	)
	return err
}

// GetRecord returns the cached record or nil.
func (d *DB) GetRecord(ctx context.Context, kind domain.Kind, id string) (*domain.Record, error) {
	row := d.sql.QueryRowContext(ctx,
		"SELECT kind, payload, sync_status FROM records WHERE kind = ? AND id = ?;", string(kind), id)
	rec, err := d.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// DeleteRecord removes a cached record.
func (d *DB) DeleteRecord(ctx context.Context, kind domain.Kind, id string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM records WHERE kind = ? AND id = ?;", string(kind), id)
	return err
}

// ListRecords returns the owner's records of kind, tombstones included.
func (d *DB) ListRecords(ctx context.Context, kind domain.Kind, owner string) ([]domain.Record, error) {
	return d.query(ctx,
		"SELECT kind, payload, sync_status FROM records WHERE kind = ? AND owner_id = ? ORDER BY id;",
		string(kind), owner)
}

// UnsyncedRecords returns every pending record, oldest change first.
func (d *DB) UnsyncedRecords(ctx context.Context) ([]domain.Record, error) {
	return d.query(ctx,
		"SELECT kind, payload, sync_status FROM records WHERE sync_status = 'pending' ORDER BY updated_at, id;")
}

func (d *DB) query(ctx context.Context, q string, args ...any) ([]domain.Record, error) {
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := d.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (d *DB) scanRecord(s scanner) (domain.Record, error) {
	var (
		kind, status string
		payload      []byte
	)
	if err := s.Scan(&kind, &payload, &status); err != nil {
		return domain.Record{}, err
	}
	plain, err := d.open(payload)
	if err != nil {
		return domain.Record{}, fmt.Errorf("open cached %s: %w", kind, err)
	}
	rec, err := domain.UnmarshalRow(domain.Kind(kind), plain)
	if err != nil {
		return domain.Record{}, err
	}
	rec.SyncStatus = domain.SyncStatus(status)
	return rec, nil
}
