package services

import (
	"context"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
)

// Store holds every queue entry, live and historical, keyed by id.
type Store interface {
	// Insert fails with models.ErrDuplicateID when the id is taken.
	Insert(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error)
	Get(ctx context.Context, id string) (*models.QueueEntry, error)
	// UpdateStatus fails with models.ErrNotFound or a *models.StateError
	// matching models.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id string, status models.Status) (*models.QueueEntry, error)
	// ListByLane returns entries of the lane whose status is one of statuses,
	// oldest admission first.
	ListByLane(ctx context.Context, lane models.Lane, statuses ...models.Status) ([]*models.QueueEntry, error)
	// NextQueueNumber advances the lane's persistent counter and returns the
	// new value. Numbers are never handed out twice.
	NextQueueNumber(ctx context.Context, lane models.Lane) (int, error)
	Ping(ctx context.Context) error
}

func statusIn(s models.Status, set []models.Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
