package exclusion

import (
	"context"
	"sort"
	"sync"
	"time"
)

// BroadcastStates answers whether a broadcast has been processed; the
// in-memory repository uses it in place of the SQL join the Postgres
// implementation performs.
type BroadcastStates interface {
	IsProcessed(ctx context.Context, broadcastID int64) (bool, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	exclusions map[int64]*Exclusion
	broadcasts BroadcastStates
}

// NewInMemoryRepository creates a new in-memory exclusion repository.
// broadcasts may be nil if DeletePendingBroadcastExclusionsForDevice is not
// exercised.
func NewInMemoryRepository(broadcasts BroadcastStates) *InMemoryRepository {
	return &InMemoryRepository{
		exclusions: make(map[int64]*Exclusion),
		broadcasts: broadcasts,
	}
}

// Create inserts a new exclusion, rejecting duplicate pairs.
func (r *InMemoryRepository) Create(_ context.Context, e *Exclusion) error {
	if err := e.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.exclusions {
		if existing.DeviceID != e.DeviceID {
			continue
		}
		if e.NotificationID != nil && existing.NotificationID != nil &&
			*existing.NotificationID == *e.NotificationID {
			return ErrDuplicateExclusion
		}
		if e.BroadcastNotificationID != nil && existing.BroadcastNotificationID != nil &&
			*existing.BroadcastNotificationID == *e.BroadcastNotificationID {
			return ErrDuplicateExclusion
		}
	}

	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = time.Now().UTC()

	cpy := *e
	r.exclusions[e.ID] = &cpy
	return nil
}

// ListForBroadcast retrieves every exclusion of a broadcast.
func (r *InMemoryRepository) ListForBroadcast(_ context.Context, broadcastID int64) ([]*Exclusion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Exclusion
	for _, e := range r.exclusions {
		if e.BroadcastNotificationID != nil && *e.BroadcastNotificationID == broadcastID {
			cpy := *e
			result = append(result, &cpy)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeleteByNotification removes the exclusion rows of a notification.
func (r *InMemoryRepository) DeleteByNotification(_ context.Context, notificationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.exclusions {
		if e.NotificationID != nil && *e.NotificationID == notificationID {
			delete(r.exclusions, id)
		}
	}
	return nil
}

// DeletePendingBroadcastExclusionsForDevice removes the device's exclusions
// whose broadcast has not been processed yet.
func (r *InMemoryRepository) DeletePendingBroadcastExclusionsForDevice(ctx context.Context, deviceID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.exclusions {
		if e.DeviceID != deviceID || e.BroadcastNotificationID == nil {
			continue
		}

		processed := false
		if r.broadcasts != nil {
			var err error
			processed, err = r.broadcasts.IsProcessed(ctx, *e.BroadcastNotificationID)
			if err != nil {
				return removed, err
			}
		}

		if !processed {
			delete(r.exclusions, id)
			removed++
		}
	}
	return removed, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
