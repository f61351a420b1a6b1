package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

const pgSelectByID = `FROM queue_entry WHERE id = \$1`

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := NewPostgresStore(mock)
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

func pgEntryRows(id string, patientID *string, age *int32, status models.Status, number int) *pgxmock.Rows {
	return pgxmock.NewRows(entryColumns).AddRow(id, patientID, "Pak Budi", age, "0813", "batuk",
		"Priority", string(status), number, fixedNow.Add(-time.Hour), fixedNow.Add(-time.Hour))
}

func TestPostgresStore_InsertNullableColumns(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	entry := newEntry("e1", models.LanePriority, 1, fixedNow)

	mock.ExpectExec(`INSERT INTO queue_entry`).
		WithArgs("e1", (*string)(nil), entry.DisplayName, (*int)(nil), entry.PhoneNumber, entry.Complaint,
			"Priority", "Waiting", 1, fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	_, err := store.Insert(context.Background(), entry)
	require.NoError(t, err)

	entry = newEntry("e1", models.LanePriority, 2, fixedNow)
	mock.ExpectExec(`INSERT INTO queue_entry`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = store.Insert(context.Background(), entry)
	assert.ErrorIs(t, err, models.ErrDuplicateID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetScansNulls(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectQuery(pgSelectByID).WithArgs("walkin").
		WillReturnRows(pgEntryRows("walkin", nil, nil, models.StatusWaiting, 1))
	got, err := store.Get(ctx, "walkin")
	require.NoError(t, err)
	assert.Equal(t, "", got.PatientID)
	assert.Nil(t, got.Age)

	pid, age := "P-2", int32(7)
	mock.ExpectQuery(pgSelectByID).WithArgs("known").
		WillReturnRows(pgEntryRows("known", &pid, &age, models.StatusWaiting, 2))
	got, err = store.Get(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, "P-2", got.PatientID)
	require.NotNil(t, got.Age)
	assert.Equal(t, 7, *got.Age)

	mock.ExpectQuery(pgSelectByID).WithArgs("missing").WillReturnRows(pgxmock.NewRows(entryColumns))
	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatusConditional(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(pgSelectByID).WithArgs("e1").
		WillReturnRows(pgEntryRows("e1", nil, nil, models.StatusInProgress, 1))
	mock.ExpectQuery(`UPDATE queue_entry SET status = \$3, updated_at = \$4\s+WHERE id = \$1 AND status = \$2\s+RETURNING`).
		WithArgs("e1", "In Progress", "Completed", fixedNow).
		WillReturnRows(pgEntryRows("e1", nil, nil, models.StatusCompleted, 1))

	got, err := store.UpdateStatus(context.Background(), "e1", models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatusLostRace(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(pgSelectByID).WithArgs("e1").
		WillReturnRows(pgEntryRows("e1", nil, nil, models.StatusWaiting, 1))
	mock.ExpectQuery(`UPDATE queue_entry SET status`).
		WithArgs("e1", "Waiting", "In Progress", fixedNow).
		WillReturnRows(pgxmock.NewRows(entryColumns))
	mock.ExpectQuery(pgSelectByID).WithArgs("e1").
		WillReturnRows(pgEntryRows("e1", nil, nil, models.StatusCancelled, 1))

	_, err := store.UpdateStatus(context.Background(), "e1", models.StatusInProgress)
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	var se *models.StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, models.StatusCancelled, se.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByLaneOrdering(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows(entryColumns).
		AddRow("a", nil, "A", nil, "", "", "Priority", "Waiting", 1, fixedNow, fixedNow).
		AddRow("b", nil, "B", nil, "", "", "Priority", "Waiting", 2, fixedNow, fixedNow)
	mock.ExpectQuery(`WHERE lane = \$1 AND status = ANY\(\$2\)\s+ORDER BY admitted_at ASC, queue_number ASC`).
		WithArgs("Priority", []string{"Waiting"}).
		WillReturnRows(rows)

	got, err := store.ListByLane(context.Background(), models.LanePriority, models.StatusWaiting)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_NextQueueNumberUpsert(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO queue_counter \(lane, last_number\) VALUES \(\$1, 1\)\s+ON CONFLICT \(lane\) DO UPDATE SET last_number = queue_counter.last_number \+ 1\s+RETURNING last_number`).
		WithArgs("Priority").
		WillReturnRows(pgxmock.NewRows([]string{"last_number"}).AddRow(8))

	n, err := store.NextQueueNumber(context.Background(), models.LanePriority)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	mock.ExpectQuery(`INSERT INTO queue_counter`).WithArgs("Regular").
		WillReturnError(errors.New("connection reset"))
	_, err = store.NextQueueNumber(context.Background(), models.LaneRegular)
	assert.ErrorContains(t, err, "next queue number")

	mock.ExpectPing()
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
