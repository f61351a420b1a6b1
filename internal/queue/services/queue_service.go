package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

// Topics the service publishes snapshots on.
const (
	TopicOperator = "operator"
	TopicDisplay  = "display"
)

const broadcastTimeout = 5 * time.Second

// Publisher fans a payload out to every subscriber of a topic. It must not
// block and has no error to report back to the caller.
type Publisher interface {
	Publish(topic string, payload interface{})
}

type staffIDKey struct{}

// WithStaffID attaches the authenticated operator id to ctx for audit logs.
func WithStaffID(ctx context.Context, staffID string) context.Context {
	return context.WithValue(ctx, staffIDKey{}, staffID)
}

func staffIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(staffIDKey{}).(string)
	return id
}

// QueueService adalah satu-satunya komponen yang boleh mengubah status antrian.
// Every mutation holds its lane's lock for the whole read-modify-write.
type QueueService struct {
	store     Store
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
	newID     func() string
	resync    time.Duration

	lanes     map[models.Lane]*sync.RWMutex
	publishMu sync.Mutex
}

type Option func(*QueueService)

func WithPublisher(p Publisher) Option {
	return func(s *QueueService) { s.publisher = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *QueueService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *QueueService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *QueueService) { s.newID = newID }
}

// WithResyncInterval sets the fallback poll interval advertised in snapshots.
func WithResyncInterval(d time.Duration) Option {
	return func(s *QueueService) { s.resync = d }
}

func NewQueueService(store Store, opts ...Option) *QueueService {
	s := &QueueService{
		store:  store,
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		resync: 30 * time.Second,
		lanes:  make(map[models.Lane]*sync.RWMutex),
	}
	for _, lane := range models.Lanes() {
		s.lanes[lane] = &sync.RWMutex{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *QueueService) laneLock(lane models.Lane) (*sync.RWMutex, error) {
	mu, ok := s.lanes[lane]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidLane, lane)
	}
	return mu, nil
}

// Enqueue admits a walk-in patient at the back of the lane.
func (s *QueueService) Enqueue(ctx context.Context, lane models.Lane, patient models.PatientSnapshot) (*models.QueueEntry, error) {
	mu, err := s.laneLock(lane)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	patient, err = patient.Normalize(now)
	if err != nil {
		return nil, err
	}

	entry, err := func() (*models.QueueEntry, error) {
		mu.Lock()
		defer mu.Unlock()

		number, err := s.store.NextQueueNumber(ctx, lane)
		if err != nil {
			return nil, err
		}
		return s.store.Insert(ctx, &models.QueueEntry{
			ID:          s.newID(),
			PatientID:   patient.PatientID,
			DisplayName: patient.DisplayName,
			Age:         patient.Age,
			PhoneNumber: patient.PhoneNumber,
			Complaint:   patient.Complaint,
			Lane:        lane,
			Status:      models.StatusWaiting,
			QueueNumber: number,
			AdmittedAt:  now,
			UpdatedAt:   now,
		})
	}()
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", lane, err)
	}

	s.logger.Info().
		Str("entry_id", entry.ID).
		Str("lane", string(lane)).
		Int("queue_number", entry.QueueNumber).
		Bool("new_patient", entry.IsNewPatient()).
		Str("staff_id", staffIDFrom(ctx)).
		Msg("patient admitted to queue")
	s.broadcast(ctx)
	return entry, nil
}

// mutate looks the entry up, takes its lane lock, re-reads it under the lock
// and hands it to fn.
func (s *QueueService) mutate(ctx context.Context, id string, fn func(e *models.QueueEntry) (*models.QueueEntry, error)) (*models.QueueEntry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	mu, err := s.laneLock(e.Lane)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	e, err = s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return fn(e)
}

// Accept moves a waiting entry into service. A lane serves one patient at a
// time: while another entry of the lane is in progress Accept fails with
// models.ErrLaneBusy and nothing changes.
func (s *QueueService) Accept(ctx context.Context, id string) (*models.QueueEntry, error) {
	updated, err := s.mutate(ctx, id, func(e *models.QueueEntry) (*models.QueueEntry, error) {
		if e.Status != models.StatusWaiting {
			return nil, models.NewInvalidStateError("accept", id, e.Status)
		}
		if err := s.ensureLaneFree(ctx, e.Lane); err != nil {
			return nil, fmt.Errorf("accept %s: %w", id, err)
		}
		return s.store.UpdateStatus(ctx, id, models.StatusInProgress)
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, updated, "patient accepted")
	s.broadcast(ctx)
	return updated, nil
}

// AcceptNext accepts the earliest waiting entry of the lane.
func (s *QueueService) AcceptNext(ctx context.Context, lane models.Lane) (*models.QueueEntry, error) {
	mu, err := s.laneLock(lane)
	if err != nil {
		return nil, err
	}

	updated, err := func() (*models.QueueEntry, error) {
		mu.Lock()
		defer mu.Unlock()

		if err := s.ensureLaneFree(ctx, lane); err != nil {
			return nil, err
		}
		waiting, err := s.store.ListByLane(ctx, lane, models.StatusWaiting)
		if err != nil {
			return nil, err
		}
		if len(waiting) == 0 {
			return nil, fmt.Errorf("%w: %s", models.ErrLaneEmpty, lane)
		}
		return s.store.UpdateStatus(ctx, waiting[0].ID, models.StatusInProgress)
	}()
	if err != nil {
		return nil, fmt.Errorf("accept next %s: %w", lane, err)
	}
	s.logTransition(ctx, updated, "patient accepted")
	s.broadcast(ctx)
	return updated, nil
}

func (s *QueueService) ensureLaneFree(ctx context.Context, lane models.Lane) error {
	serving, err := s.store.ListByLane(ctx, lane, models.StatusInProgress)
	if err != nil {
		return err
	}
	if len(serving) > 0 {
		return fmt.Errorf("%w: %s lane is serving #%d", models.ErrLaneBusy, lane, serving[0].QueueNumber)
	}
	return nil
}

// Complete finishes the entry currently in service.
func (s *QueueService) Complete(ctx context.Context, id string) (*models.QueueEntry, error) {
	updated, err := s.mutate(ctx, id, func(e *models.QueueEntry) (*models.QueueEntry, error) {
		if e.Status != models.StatusInProgress {
			return nil, models.NewInvalidStateError("complete", id, e.Status)
		}
		return s.store.UpdateStatus(ctx, id, models.StatusCompleted)
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, updated, "patient completed")
	s.broadcast(ctx)
	return updated, nil
}

// Cancel removes a waiting or in-progress entry from the queue. Cancelling
// an entry that already finished reports its terminal status.
func (s *QueueService) Cancel(ctx context.Context, id string) (*models.QueueEntry, error) {
	updated, err := s.mutate(ctx, id, func(e *models.QueueEntry) (*models.QueueEntry, error) {
		if e.Status.IsTerminal() {
			return nil, models.NewInvalidStateError("cancel", id, e.Status)
		}
		return s.store.UpdateStatus(ctx, id, models.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(ctx, updated, "patient cancelled")
	s.broadcast(ctx)
	return updated, nil
}

func (s *QueueService) logTransition(ctx context.Context, e *models.QueueEntry, msg string) {
	s.logger.Info().
		Str("entry_id", e.ID).
		Str("lane", string(e.Lane)).
		Int("queue_number", e.QueueNumber).
		Str("status", string(e.Status)).
		Str("staff_id", staffIDFrom(ctx)).
		Msg(msg)
}

func (s *QueueService) Get(ctx context.Context, id string) (*models.QueueEntry, error) {
	return s.store.Get(ctx, id)
}

func (s *QueueService) liveEntries(ctx context.Context, lane models.Lane) ([]*models.QueueEntry, error) {
	mu, err := s.laneLock(lane)
	if err != nil {
		return nil, err
	}
	mu.RLock()
	defer mu.RUnlock()
	return s.store.ListByLane(ctx, lane, models.LiveStatuses...)
}

// LaneView returns the current / on-deck view of one lane.
func (s *QueueService) LaneView(ctx context.Context, lane models.Lane) (models.LaneView, error) {
	live, err := s.liveEntries(ctx, lane)
	if err != nil {
		return models.LaneView{}, err
	}
	return SelectLane(lane, live), nil
}

func (s *QueueService) OperatorSnapshot(ctx context.Context) (*models.OperatorSnapshot, error) {
	priority, err := s.LaneView(ctx, models.LanePriority)
	if err != nil {
		return nil, err
	}
	regular, err := s.LaneView(ctx, models.LaneRegular)
	if err != nil {
		return nil, err
	}
	return &models.OperatorSnapshot{
		Priority:           priority,
		Regular:            regular,
		GeneratedAt:        s.now().UTC(),
		ResyncAfterSeconds: int(s.resync / time.Second),
	}, nil
}

func (s *QueueService) DisplaySnapshot(ctx context.Context) (*models.DisplaySnapshot, error) {
	priority, err := s.liveEntries(ctx, models.LanePriority)
	if err != nil {
		return nil, err
	}
	regular, err := s.liveEntries(ctx, models.LaneRegular)
	if err != nil {
		return nil, err
	}
	return &models.DisplaySnapshot{
		PriorityQueue:      DisplayList(priority),
		RegularQueue:       DisplayList(regular),
		GeneratedAt:        s.now().UTC(),
		ResyncAfterSeconds: int(s.resync / time.Second),
	}, nil
}

// PublishSnapshots pushes both views to subscribers. It runs after every
// mutation and once at startup so new subscribers get a first paint.
func (s *QueueService) PublishSnapshots(ctx context.Context) {
	s.broadcast(ctx)
}

// broadcast is serialized so the last snapshot published is always the
// newest state. Failures are logged and never reach the mutation caller.
// The snapshot is read detached from the caller's cancellation: once a
// mutation has committed, subscribers must see it even if the request that
// made it is already gone.
func (s *QueueService) broadcast(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if op, err := s.OperatorSnapshot(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("build operator snapshot")
	} else {
		s.publisher.Publish(TopicOperator, op)
	}
	if display, err := s.DisplaySnapshot(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("build display snapshot")
	} else {
		s.publisher.Publish(TopicDisplay, display)
	}
}

// Ping reports whether the backing store is reachable.
func (s *QueueService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
