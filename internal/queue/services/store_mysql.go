package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

const mysqlDuplicateEntry = 1062

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS queue_entry (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		patient_id   VARCHAR(64)  NULL,
		display_name VARCHAR(255) NOT NULL,
		age          INT          NULL,
		phone_number VARCHAR(32)  NOT NULL DEFAULT '',
		complaint    TEXT         NOT NULL,
		lane         VARCHAR(16)  NOT NULL,
		status       VARCHAR(16)  NOT NULL,
		queue_number INT          NOT NULL,
		admitted_at  DATETIME(6)  NOT NULL,
		updated_at   DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_queue_entry_lane_number (lane, queue_number),
		KEY idx_queue_entry_lane_status (lane, status, admitted_at)
	)`,
	`CREATE TABLE IF NOT EXISTS queue_counter (
		lane        VARCHAR(16) NOT NULL PRIMARY KEY,
		last_number INT         NOT NULL
	)`,
}

const mysqlEntryCols = `id, patient_id, display_name, age, phone_number, complaint,
	lane, status, queue_number, admitted_at, updated_at`

// MySQLStore menyimpan antrian di MariaDB/MySQL.
type MySQLStore struct {
	DB  *sql.DB
	now func() time.Time
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{DB: db, now: time.Now}
}

// Migrate membuat tabel antrian jika belum ada.
func (s *MySQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql migrate: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMySQLEntry(row rowScanner) (*models.QueueEntry, error) {
	var (
		e         models.QueueEntry
		patientID sql.NullString
		age       sql.NullInt64
		lane      string
		status    string
	)
	err := row.Scan(&e.ID, &patientID, &e.DisplayName, &age, &e.PhoneNumber, &e.Complaint,
		&lane, &status, &e.QueueNumber, &e.AdmittedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.PatientID = patientID.String
	if age.Valid {
		a := int(age.Int64)
		e.Age = &a
	}
	e.Lane = models.Lane(lane)
	e.Status = models.Status(status)
	e.AdmittedAt = e.AdmittedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func isMySQLDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func (s *MySQLStore) Insert(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	var patientID sql.NullString
	if entry.PatientID != "" {
		patientID = sql.NullString{String: entry.PatientID, Valid: true}
	}
	var age sql.NullInt64
	if entry.Age != nil {
		age = sql.NullInt64{Int64: int64(*entry.Age), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO queue_entry (`+mysqlEntryCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, patientID, entry.DisplayName, age, entry.PhoneNumber, entry.Complaint,
		string(entry.Lane), string(entry.Status), entry.QueueNumber, entry.AdmittedAt, entry.UpdatedAt)
	if err != nil {
		if isMySQLDuplicate(err) {
			return nil, fmt.Errorf("insert %s: %w", entry.ID, models.ErrDuplicateID)
		}
		return nil, fmt.Errorf("insert %s: %w", entry.ID, err)
	}
	return entry, nil
}

func (s *MySQLStore) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	e, err := scanMySQLEntry(s.DB.QueryRowContext(ctx,
		`SELECT `+mysqlEntryCols+` FROM queue_entry WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return e, nil
}

func (s *MySQLStore) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.QueueEntry, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(cur.Status, status) {
		return nil, models.NewInvalidTransitionError(id, cur.Status, status)
	}

	now := s.now().UTC()
	// Update bersyarat: hanya berhasil jika status belum diubah proses lain.
	res, err := s.DB.ExecContext(ctx,
		`UPDATE queue_entry SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), now, id, string(cur.Status))
	if err != nil {
		return nil, fmt.Errorf("update status %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update status %s: %w", id, err)
	}
	if affected == 0 {
		fresh, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, models.NewInvalidTransitionError(id, fresh.Status, status)
	}

	cur.Status = status
	cur.UpdatedAt = now
	return cur, nil
}

func (s *MySQLStore) ListByLane(ctx context.Context, lane models.Lane, statuses ...models.Status) ([]*models.QueueEntry, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []interface{}{string(lane)}
	placeholders := make([]string, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+mysqlEntryCols+`
		FROM queue_entry
		WHERE lane = ? AND status IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY admitted_at ASC, queue_number ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s lane: %w", lane, err)
	}
	defer rows.Close()

	var out []*models.QueueEntry
	for rows.Next() {
		e, err := scanMySQLEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s lane: %w", lane, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *MySQLStore) NextQueueNumber(ctx context.Context, lane models.Lane) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO queue_counter (lane, last_number) VALUES (?, 0)`, string(lane)); err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	var last int
	if err := tx.QueryRowContext(ctx,
		`SELECT last_number FROM queue_counter WHERE lane = ? FOR UPDATE`, string(lane)).Scan(&last); err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	last++
	if _, err := tx.ExecContext(ctx,
		`UPDATE queue_counter SET last_number = ? WHERE lane = ?`, last, string(lane)); err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	return last, nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
