package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

// MemoryStore keeps the queue in process memory. Entries survive until the
// process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]*models.QueueEntry
	counters map[models.Lane]int
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]*models.QueueEntry),
		counters: make(map[models.Lane]int),
		now:      time.Now,
	}
}

func (s *MemoryStore) Insert(_ context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.ID]; exists {
		return nil, fmt.Errorf("insert %s: %w", entry.ID, models.ErrDuplicateID)
	}
	s.entries[entry.ID] = entry.Clone()
	return entry, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, models.ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status models.Status) (*models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("update status %s: %w", id, models.ErrNotFound)
	}
	if !models.CanTransition(e.Status, status) {
		return nil, models.NewInvalidTransitionError(id, e.Status, status)
	}
	e.Status = status
	e.UpdatedAt = s.now().UTC()
	return e.Clone(), nil
}

func (s *MemoryStore) ListByLane(_ context.Context, lane models.Lane, statuses ...models.Status) ([]*models.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.QueueEntry
	for _, e := range s.entries {
		if e.Lane == lane && statusIn(e.Status, statuses) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AdmittedAt.Equal(out[j].AdmittedAt) {
			return out[i].AdmittedAt.Before(out[j].AdmittedAt)
		}
		return out[i].QueueNumber < out[j].QueueNumber
	})
	return out, nil
}

func (s *MemoryStore) NextQueueNumber(_ context.Context, lane models.Lane) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[lane]++
	return s.counters[lane], nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
