package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu            sync.RWMutex
	nextID        int64
	notifications map[int64]*Notification
}

// NewInMemoryRepository creates a new in-memory notification repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{notifications: make(map[int64]*Notification)}
}

// Get retrieves a notification by ID.
func (r *InMemoryRepository) Get(_ context.Context, id int64) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}

	cpy := *n
	return &cpy, nil
}

// ListPending retrieves all pending notifications, oldest first.
func (r *InMemoryRepository) ListPending(_ context.Context) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*Notification
	for _, n := range r.notifications {
		if n.State == StatePending {
			cpy := *n
			pending = append(pending, &cpy)
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

// ListPendingByDevice retrieves the pending notifications owned by a device.
func (r *InMemoryRepository) ListPendingByDevice(_ context.Context, deviceID int64) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*Notification
	for _, n := range r.notifications {
		if n.State == StatePending && n.DeviceID == deviceID {
			cpy := *n
			pending = append(pending, &cpy)
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

// Create inserts a new notification and fills in its ID.
func (r *InMemoryRepository) Create(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	n.ID = r.nextID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.UpdatedAt = time.Now().UTC()

	cpy := *n
	r.notifications[n.ID] = &cpy
	return nil
}

// Update persists the mutable fields of an existing notification.
func (r *InMemoryRepository) Update(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[n.ID]; !ok {
		return ErrNotificationNotFound
	}

	n.UpdatedAt = time.Now().UTC()
	cpy := *n
	r.notifications[n.ID] = &cpy
	return nil
}

// Delete removes the notification.
func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notifications[id]; !ok {
		return ErrNotificationNotFound
	}

	delete(r.notifications, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)

// InMemoryBroadcastRepository is an in-memory implementation of
// BroadcastRepository for tests.
type InMemoryBroadcastRepository struct {
	mu         sync.RWMutex
	nextID     int64
	broadcasts map[int64]*BroadcastNotification
}

// NewInMemoryBroadcastRepository creates a new in-memory broadcast repository.
func NewInMemoryBroadcastRepository() *InMemoryBroadcastRepository {
	return &InMemoryBroadcastRepository{broadcasts: make(map[int64]*BroadcastNotification)}
}

// Get retrieves a broadcast by ID.
func (r *InMemoryBroadcastRepository) Get(_ context.Context, id int64) (*BroadcastNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.broadcasts[id]
	if !ok {
		return nil, ErrBroadcastNotFound
	}

	cpy := *b
	return &cpy, nil
}

// ListPending retrieves all pending broadcasts, oldest first.
func (r *InMemoryBroadcastRepository) ListPending(_ context.Context) ([]*BroadcastNotification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*BroadcastNotification
	for _, b := range r.broadcasts {
		if b.State == StatePending {
			cpy := *b
			pending = append(pending, &cpy)
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

// Create inserts a new broadcast and fills in its ID.
func (r *InMemoryBroadcastRepository) Create(_ context.Context, b *BroadcastNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	b.ID = r.nextID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = time.Now().UTC()

	cpy := *b
	r.broadcasts[b.ID] = &cpy
	return nil
}

// Update persists the mutable fields of an existing broadcast.
func (r *InMemoryBroadcastRepository) Update(_ context.Context, b *BroadcastNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.broadcasts[b.ID]; !ok {
		return ErrBroadcastNotFound
	}

	b.UpdatedAt = time.Now().UTC()
	cpy := *b
	r.broadcasts[b.ID] = &cpy
	return nil
}

// IsProcessed reports whether a broadcast has reached the processed state.
// Used by the in-memory exclusion repository to mirror the SQL join the
// Postgres implementation performs.
func (r *InMemoryBroadcastRepository) IsProcessed(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.broadcasts[id]
	if !ok {
		return false, ErrBroadcastNotFound
	}
	return b.State == StateProcessed, nil
}

// Ensure InMemoryBroadcastRepository implements BroadcastRepository interface.
var _ BroadcastRepository = (*InMemoryBroadcastRepository)(nil)
