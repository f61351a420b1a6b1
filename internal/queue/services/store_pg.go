package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

const pgUniqueViolation = "23505"

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS queue_entry (
		id           TEXT        PRIMARY KEY,
		patient_id   TEXT        NULL,
		display_name TEXT        NOT NULL,
		age          INTEGER     NULL,
		phone_number TEXT        NOT NULL DEFAULT '',
		complaint    TEXT        NOT NULL DEFAULT '',
		lane         TEXT        NOT NULL,
		status       TEXT        NOT NULL,
		queue_number INTEGER     NOT NULL,
		admitted_at  TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL,
		UNIQUE (lane, queue_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_entry_lane_status ON queue_entry (lane, status, admitted_at)`,
	`CREATE TABLE IF NOT EXISTS queue_counter (
		lane        TEXT    PRIMARY KEY,
		last_number INTEGER NOT NULL
	)`,
}

const pgEntryCols = `id, patient_id, display_name, age, phone_number, complaint,
	lane, status, queue_number, admitted_at, updated_at`

// PgxPool is the part of *pgxpool.Pool the store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type PostgresStore struct {
	pool PgxPool
	now  func() time.Time
}

func NewPostgresStore(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range pgSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

func scanPGEntry(row pgx.Row) (*models.QueueEntry, error) {
	var (
		e         models.QueueEntry
		patientID *string
		age       *int32
		lane      string
		status    string
	)
	err := row.Scan(&e.ID, &patientID, &e.DisplayName, &age, &e.PhoneNumber, &e.Complaint,
		&lane, &status, &e.QueueNumber, &e.AdmittedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if patientID != nil {
		e.PatientID = *patientID
	}
	if age != nil {
		a := int(*age)
		e.Age = &a
	}
	e.Lane = models.Lane(lane)
	e.Status = models.Status(status)
	e.AdmittedAt = e.AdmittedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func isPGDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (s *PostgresStore) Insert(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	var patientID *string
	if entry.PatientID != "" {
		patientID = &entry.PatientID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_entry (`+pgEntryCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		entry.ID, patientID, entry.DisplayName, entry.Age, entry.PhoneNumber, entry.Complaint,
		string(entry.Lane), string(entry.Status), entry.QueueNumber, entry.AdmittedAt, entry.UpdatedAt)
	if err != nil {
		if isPGDuplicate(err) {
			return nil, fmt.Errorf("insert %s: %w", entry.ID, models.ErrDuplicateID)
		}
		return nil, fmt.Errorf("insert %s: %w", entry.ID, err)
	}
	return entry, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	e, err := scanPGEntry(s.pool.QueryRow(ctx, `SELECT `+pgEntryCols+` FROM queue_entry WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return e, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.Status) (*models.QueueEntry, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(cur.Status, status) {
		return nil, models.NewInvalidTransitionError(id, cur.Status, status)
	}

	updated, err := scanPGEntry(s.pool.QueryRow(ctx, `
		UPDATE queue_entry SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+pgEntryCols,
		id, string(cur.Status), string(status), s.now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Changed underneath us; report against the status it has now.
			fresh, getErr := s.Get(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, models.NewInvalidTransitionError(id, fresh.Status, status)
		}
		return nil, fmt.Errorf("update status %s: %w", id, err)
	}
	return updated, nil
}

func (s *PostgresStore) ListByLane(ctx context.Context, lane models.Lane, statuses ...models.Status) ([]*models.QueueEntry, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+pgEntryCols+`
		FROM queue_entry
		WHERE lane = $1 AND status = ANY($2)
		ORDER BY admitted_at ASC, queue_number ASC`, string(lane), names)
	if err != nil {
		return nil, fmt.Errorf("list %s lane: %w", lane, err)
	}
	defer rows.Close()

	var out []*models.QueueEntry
	for rows.Next() {
		e, err := scanPGEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s lane: %w", lane, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) NextQueueNumber(ctx context.Context, lane models.Lane) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue_counter (lane, last_number) VALUES ($1, 1)
		ON CONFLICT (lane) DO UPDATE SET last_number = queue_counter.last_number + 1
		RETURNING last_number`, string(lane)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next queue number: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
