package sqlite

import (
	"context"
	"fmt"

	"fitsync/internal/domain"
)

// LoadQueue returns the persisted change queue in order.
func (d *DB) LoadQueue(ctx context.Context) ([]domain.QueuedChange, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, kind, operation, record, enqueued_at, retry_count FROM change_queue ORDER BY position;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueuedChange
	for rows.Next() {
		var (
			c          domain.QueuedChange
			kind, op   string
			record     []byte
			enqueuedAt string
		)
		if err := rows.Scan(&c.ID, &kind, &op, &record, &enqueuedAt, &c.RetryCount); err != nil {
			return nil, err
		}
		c.Kind = domain.Kind(kind)
		c.Op = domain.Operation(op)
		if c.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
			return nil, fmt.Errorf("queued change %s: %w", c.ID, err)
		}
		plain, err := d.open(record)
		if err != nil {
			return nil, fmt.Errorf("open queued change %s: %w", c.ID, err)
		}
		if c.Record, err = domain.UnmarshalRow(c.Kind, plain); err != nil {
			return nil, fmt.Errorf("queued change %s: %w", c.ID, err)
		}
		c.Record.SyncStatus = domain.StatusPending
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveQueue replaces the persisted queue in one transaction.
func (d *DB) SaveQueue(ctx context.Context, changes []domain.QueuedChange) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM change_queue;"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO change_queue(position, id, kind, operation, record, enqueued_at, retry_count) VALUES(?, ?, ?, ?, ?, ?, ?);")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range changes {
		row, err := domain.MarshalRow(c.Record)
		if err != nil {
			return fmt.Errorf("queued change %s: %w", c.ID, err)
		}
		record, err := d.seal(row)
		if err != nil {
			return fmt.Errorf("seal queued change %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, c.ID, string(c.Kind), string(c.Op), record, formatTime(c.EnqueuedAt), c.RetryCount); err != nil {
			return err
		}
	}
	return tx.Commit()
}
