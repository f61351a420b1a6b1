package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

var (
	entryColumns = []string{"id", "patient_id", "display_name", "age", "phone_number", "complaint",
		"lane", "status", "queue_number", "admitted_at", "updated_at"}
	fixedNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
)

const (
	sqlSelectByID = `FROM queue_entry WHERE id = \?`
	sqlUpdateCond = `UPDATE queue_entry SET status = \?, updated_at = \? WHERE id = \? AND status = \?`
)

func newMockMySQLStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewMySQLStore(db)
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

func mysqlEntryRow(id string, patientID, age driver.Value, status models.Status, number int) *sqlmock.Rows {
	return sqlmock.NewRows(entryColumns).AddRow(id, patientID, "Ibu Sari", age, "0812", "demam",
		"Regular", string(status), number, fixedNow.Add(-time.Hour), fixedNow.Add(-time.Hour))
}

func TestMySQLStore_InsertNullableColumns(t *testing.T) {
	store, mock := newMockMySQLStore(t)
	entry := newEntry("e1", models.LaneRegular, 1, fixedNow)

	mock.ExpectExec(`INSERT INTO queue_entry`).
		WithArgs("e1", nil, entry.DisplayName, nil, entry.PhoneNumber, entry.Complaint,
			"Regular", "Waiting", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := store.Insert(context.Background(), entry)
	require.NoError(t, err)

	age := 40
	entry = newEntry("e2", models.LaneRegular, 2, fixedNow)
	entry.PatientID = "P-1"
	entry.Age = &age
	mock.ExpectExec(`INSERT INTO queue_entry`).
		WithArgs("e2", "P-1", entry.DisplayName, 40, entry.PhoneNumber, entry.Complaint,
			"Regular", "Waiting", 2, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err = store.Insert(context.Background(), entry)
	assert.ErrorIs(t, err, models.ErrDuplicateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_GetScansNulls(t *testing.T) {
	store, mock := newMockMySQLStore(t)
	ctx := context.Background()

	mock.ExpectQuery(sqlSelectByID).WithArgs("walkin").
		WillReturnRows(mysqlEntryRow("walkin", nil, nil, models.StatusWaiting, 3))
	got, err := store.Get(ctx, "walkin")
	require.NoError(t, err)
	assert.Equal(t, "", got.PatientID)
	assert.Nil(t, got.Age)
	assert.True(t, got.IsNewPatient())
	assert.Equal(t, models.LaneRegular, got.Lane)
	assert.Equal(t, time.UTC, got.AdmittedAt.Location())

	mock.ExpectQuery(sqlSelectByID).WithArgs("known").
		WillReturnRows(mysqlEntryRow("known", "P-9", int64(61), models.StatusInProgress, 4))
	got, err = store.Get(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, "P-9", got.PatientID)
	require.NotNil(t, got.Age)
	assert.Equal(t, 61, *got.Age)
	assert.Equal(t, models.StatusInProgress, got.Status)

	mock.ExpectQuery(sqlSelectByID).WithArgs("missing").WillReturnRows(sqlmock.NewRows(entryColumns))
	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_UpdateStatusConditional(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	mock.ExpectQuery(sqlSelectByID).WithArgs("e1").
		WillReturnRows(mysqlEntryRow("e1", nil, nil, models.StatusWaiting, 1))
	mock.ExpectExec(sqlUpdateCond).
		WithArgs("In Progress", fixedNow, "e1", "Waiting").
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := store.UpdateStatus(context.Background(), "e1", models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_UpdateStatusLostRace(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	// Another writer cancels the entry between the read and the update.
	mock.ExpectQuery(sqlSelectByID).WithArgs("e1").
		WillReturnRows(mysqlEntryRow("e1", nil, nil, models.StatusWaiting, 1))
	mock.ExpectExec(sqlUpdateCond).
		WithArgs("In Progress", fixedNow, "e1", "Waiting").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(sqlSelectByID).WithArgs("e1").
		WillReturnRows(mysqlEntryRow("e1", nil, nil, models.StatusCancelled, 1))

	_, err := store.UpdateStatus(context.Background(), "e1", models.StatusInProgress)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	var se *models.StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, models.StatusCancelled, se.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_UpdateStatusRejectsBeforeWriting(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	mock.ExpectQuery(sqlSelectByID).WithArgs("e1").
		WillReturnRows(mysqlEntryRow("e1", nil, nil, models.StatusCompleted, 1))

	_, err := store.UpdateStatus(context.Background(), "e1", models.StatusCancelled)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet(), "no UPDATE is issued for a disallowed transition")
}

func TestMySQLStore_ListByLaneOrdering(t *testing.T) {
	store, mock := newMockMySQLStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows(entryColumns).
		AddRow("a", nil, "A", nil, "", "", "Regular", "In Progress", 1, fixedNow, fixedNow).
		AddRow("b", nil, "B", nil, "", "", "Regular", "Waiting", 2, fixedNow, fixedNow).
		AddRow("c", "P-3", "C", int64(30), "", "", "Regular", "Waiting", 3, fixedNow.Add(time.Minute), fixedNow)
	mock.ExpectQuery(`WHERE lane = \? AND status IN \(\?, \?\)\s+ORDER BY admitted_at ASC, queue_number ASC`).
		WithArgs("Regular", "Waiting", "In Progress").
		WillReturnRows(rows)

	got, err := store.ListByLane(ctx, models.LaneRegular, models.LiveStatuses...)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})

	none, err := store.ListByLane(ctx, models.LaneRegular)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_NextQueueNumberLocksCounter(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT IGNORE INTO queue_counter`).WithArgs("Priority").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT last_number FROM queue_counter WHERE lane = \? FOR UPDATE`).WithArgs("Priority").
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(4))
	mock.ExpectExec(`UPDATE queue_counter SET last_number = \? WHERE lane = \?`).WithArgs(5, "Priority").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.NextQueueNumber(context.Background(), models.LanePriority)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_NextQueueNumberRollsBack(t *testing.T) {
	store, mock := newMockMySQLStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT IGNORE INTO queue_counter`).WithArgs("Regular").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("Regular").
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, err := store.NextQueueNumber(context.Background(), models.LaneRegular)
	assert.ErrorContains(t, err, "lock wait timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}
