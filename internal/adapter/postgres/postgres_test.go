package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitsync/internal/domain"
	"fitsync/internal/feed"
)

func newDBWithMock(t *testing.T) (*DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock, db
}

func weightLog() domain.Record {
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return domain.Record{
		ID:        "w1",
		Owner:     "u1",
		Origin:    "session-a",
		UpdatedAt: at,
		Payload:   domain.WeightLog{Value: 70.5, Unit: "kg", Day: "2026-06-01", LoggedAt: at},
	}
}

func expectOrigin(mock sqlmock.Sqlmock, origin string) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config('fitsync.origin', $1, true);")).
		WithArgs(origin).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestSelect(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	row := `{"id":"w1","owner_id":"u1","origin":"session-b","is_deleted":false,
		"updated_at":"2026-06-01T09:00:00+00:00","value":70.5,"unit":"kg",
		"day":"2026-06-01","logged_at":"2026-06-01T08:59:00+00:00"}`
	mock.ExpectQuery(`(?s)^SELECT\s+row_to_json\(t\)\s+FROM\s+weight_logs\s+t\s+WHERE\s+owner_id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"row_to_json"}).AddRow([]byte(row)))

	got, err := d.Select(context.Background(), domain.KindWeightLog, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "w1", got[0].ID)
	assert.Equal(t, "session-b", got[0].Origin)
	assert.Equal(t, domain.StatusSynced, got[0].SyncStatus)
	assert.Equal(t, 70.5, got[0].Payload.(domain.WeightLog).Value)
}

func TestSelect_UnknownKind(t *testing.T) {
	d, _, _ := newDBWithMock(t)
	_, err := d.Select(context.Background(), domain.Kind("steps"), "u1")
	assert.Error(t, err)
}

func TestInsert(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	expectOrigin(mock, "session-a")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weight_logs (id, owner_id, origin, is_deleted, updated_at, value, unit, day, logged_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);")).
		WithArgs("w1", "u1", "session-a", false, sqlmock.AnyArg(), sqlmock.AnyArg(), "kg", "2026-06-01", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, d.Insert(context.Background(), weightLog()))
}

func TestInsert_DuplicateIsConflict(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	expectOrigin(mock, "session-a")
	mock.ExpectExec(`^INSERT INTO weight_logs`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := d.Insert(context.Background(), weightLog())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdate_MissingRowIsNotFound(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	expectOrigin(mock, "session-a")
	mock.ExpectExec(regexp.QuoteMeta("UPDATE weight_logs SET origin = $3, is_deleted = $4, updated_at = $5, value = $6, unit = $7, day = $8, logged_at = $9 WHERE id = $1 AND owner_id = $2;")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := d.Update(context.Background(), weightLog())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	expectOrigin(mock, "session-a")
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM weight_logs WHERE id = $1 AND owner_id = $2;")).
		WithArgs("w1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, d.Delete(context.Background(), weightLog()))
}

func TestUpsert_KeepsOwnerScope(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	rec := weightLog()
	rec.Payload = domain.Profile{DisplayName: "Sam"}
	rec.ID = "u1"
	expectOrigin(mock, "session-a")
	mock.ExpectExec(`(?s)^INSERT INTO user_profiles .* ON CONFLICT \(id\) DO UPDATE SET .*display_name = EXCLUDED\.display_name.* WHERE user_profiles\.owner_id = EXCLUDED\.owner_id;$`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, d.Upsert(context.Background(), rec))
}

func TestWrite_OriginFailureRollsBack(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`set_config`).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := d.Upsert(context.Background(), weightLog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestMigrate(t *testing.T) {
	d, mock, _ := newDBWithMock(t)

	for range schema {
		mock.ExpectExec(`.`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for _, table := range tables() {
		mock.ExpectExec(regexp.QuoteMeta("DROP TRIGGER IF EXISTS " + table + "_notify ON " + table + ";")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("CREATE TRIGGER " + table + "_notify AFTER INSERT OR UPDATE OR DELETE ON " + table)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, d.Migrate(context.Background()))
}

func TestDecodeNotification(t *testing.T) {
	payload := `{"event":"delete","table":"weight_logs","owner":"u1","origin":"session-b",
		"record":null,"old_record":{"id":"w1","owner_id":"u1"}}`

	n, ok := decodeNotification(payload, "u1")
	require.True(t, ok)
	assert.Equal(t, feed.EventDelete, n.Event)
	assert.Equal(t, "weight_logs", n.Table)
	assert.Equal(t, "session-b", n.Origin)
	assert.Nil(t, n.Record)
	assert.JSONEq(t, `{"id":"w1","owner_id":"u1"}`, string(n.OldRecord))

	_, ok = decodeNotification(payload, "u2")
	assert.False(t, ok, "other owners are filtered")

	_, ok = decodeNotification("not json", "u1")
	assert.False(t, ok)
}
