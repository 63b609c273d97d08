package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"fitsync/internal/domain"
)

var _ domain.RemoteStore = (*DB)(nil)

// headerColumns are shared by every synchronized table.
var headerColumns = []string{"id", "owner_id", "origin", "is_deleted", "updated_at"}

var payloadColumns = map[domain.Kind][]string{
	domain.KindWeightLog:   {"value", "unit", "day", "logged_at"},
	domain.KindDailyMetric: {"date", "steps", "water_liters", "active_minutes", "calories_burned"},
	domain.KindBodyMetric:  {"date", "body_fat_percent", "muscle_mass_kg", "waist_cm", "hip_cm", "chest_cm", "notes"},
	domain.KindProfile: {"display_name", "birth_date", "sex", "height_cm", "goal_weight",
		"preferred_unit", "daily_step_goal", "daily_water_goal", "timezone"},
}

func tables() []string {
	out := make([]string, 0, len(domain.Kinds()))
	for _, k := range domain.Kinds() {
		out = append(out, k.Table())
	}
	return out
}

func columns(k domain.Kind) []string {
	return append(append([]string{}, headerColumns...), payloadColumns[k]...)
}

// rowArgs returns the table, column list and matching arguments for r.
func rowArgs(r domain.Record) (string, []string, []any, error) {
	kind := r.Kind()
	if !kind.Valid() {
		return "", nil, nil, fmt.Errorf("unknown record kind %q", kind)
	}
	values, err := domain.RowValues(r)
	if err != nil {
		return "", nil, nil, err
	}
	cols := columns(kind)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	return kind.Table(), cols, args, nil
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}

// Select returns every row of kind owned by owner.
func (d *DB) Select(ctx context.Context, kind domain.Kind, owner string) ([]domain.Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	rows, err := d.sql.QueryContext(ctx,
		"SELECT row_to_json(t) FROM "+kind.Table()+" t WHERE owner_id = $1 ORDER BY updated_at, id;", owner)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", kind.Table(), err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec, err := domain.UnmarshalRow(kind, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Insert adds a new row. It returns domain.ErrConflict when the id exists.
func (d *DB) Insert(ctx context.Context, r domain.Record) error {
	table, cols, args, err := rowArgs(r)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", table, strings.Join(cols, ", "), placeholders(len(cols)))
	return d.withOrigin(ctx, r.Origin, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, args...)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrConflict
		}
		return err
	})
}

// Update replaces an existing row of the same owner. It returns
// domain.ErrNotFound when no such row exists.
func (d *DB) Update(ctx context.Context, r domain.Record) error {
	table, cols, args, err := rowArgs(r)
	if err != nil {
		return err
	}
	// $1 is id and $2 owner_id; both stay fixed.
	sets := make([]string, 0, len(cols)-2)
	for i, c := range cols[2:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+3))
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 AND owner_id = $2;", table, strings.Join(sets, ", "))
	return d.withOrigin(ctx, r.Origin, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		return expectRow(res)
	})
}

// Delete removes a row of the same owner. It returns domain.ErrNotFound when
// no such row exists.
func (d *DB) Delete(ctx context.Context, r domain.Record) error {
	kind := r.Kind()
	if !kind.Valid() {
		return fmt.Errorf("unknown record kind %q", kind)
	}
	q := "DELETE FROM " + kind.Table() + " WHERE id = $1 AND owner_id = $2;"
	return d.withOrigin(ctx, r.Origin, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q, r.ID, r.Owner)
		if err != nil {
			return err
		}
		return expectRow(res)
	})
}

// Upsert inserts the row or replaces it when a row of the same owner exists.
func (d *DB) Upsert(ctx context.Context, r domain.Record) error {
	table, cols, args, err := rowArgs(r)
	if err != nil {
		return err
	}
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s WHERE %s.owner_id = EXCLUDED.owner_id;",
		table, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(sets, ", "), table)
	return d.withOrigin(ctx, r.Origin, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
}

// withOrigin runs fn in a transaction whose change notifications carry origin.
func (d *DB) withOrigin(ctx context.Context, origin string, fn func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT set_config('fitsync.origin', $1, true);", origin); err != nil {
		return fmt.Errorf("set origin: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
