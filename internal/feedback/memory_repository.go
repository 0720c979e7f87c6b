package feedback

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*Feedback
}

// NewInMemoryRepository creates a new in-memory feedback repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[int64]*Feedback)}
}

// Get retrieves a feedback record by ID.
func (r *InMemoryRepository) Get(_ context.Context, id int64) (*Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.records[id]
	if !ok {
		return nil, ErrFeedbackNotFound
	}

	cpy := *f
	return &cpy, nil
}

// LastProcessed retrieves the processed record with the highest ID.
func (r *InMemoryRepository) LastProcessed(_ context.Context) (*Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *Feedback
	for _, f := range r.records {
		if f.State != StateProcessed {
			continue
		}
		if last == nil || f.ID > last.ID {
			last = f
		}
	}

	if last == nil {
		return nil, ErrFeedbackNotFound
	}

	cpy := *last
	return &cpy, nil
}

// Create inserts a new record and fills in its ID.
func (r *InMemoryRepository) Create(_ context.Context, f *Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	f.ID = r.nextID
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.UpdatedAt = time.Now().UTC()

	cpy := *f
	r.records[f.ID] = &cpy
	return nil
}

// Update persists the mutable fields of an existing record.
func (r *InMemoryRepository) Update(_ context.Context, f *Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[f.ID]; !ok {
		return ErrFeedbackNotFound
	}

	f.UpdatedAt = time.Now().UTC()
	cpy := *f
	r.records[f.ID] = &cpy
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
