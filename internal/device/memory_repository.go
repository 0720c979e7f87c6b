package device

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
	devices map[int64]*Device
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{devices: make(map[int64]*Device)}
}

// Get retrieves a device by ID.
func (r *InMemoryRepository) Get(_ context.Context, id int64) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}

	cpy := *d
	return &cpy, nil
}

// GetByToken retrieves a device by its canonical stored token.
func (r *InMemoryRepository) GetByToken(_ context.Context, token string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.Token == token {
			cpy := *d
			return &cpy, nil
		}
	}
	return nil, ErrDeviceNotFound
}

// GetByProviderToken retrieves a device by a provider-form token.
func (r *InMemoryRepository) GetByProviderToken(ctx context.Context, providerToken string) (*Device, error) {
	return r.GetByToken(ctx, CanonicalFromProviderToken(providerToken))
}

// Create inserts a new device and fills in its ID.
func (r *InMemoryRepository) Create(_ context.Context, d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.devices {
		if existing.Token == d.Token {
			return ErrDuplicateToken
		}
	}

	r.nextID++
	d.ID = r.nextID
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.UpdatedAt = time.Now().UTC()

	cpy := *d
	r.devices[d.ID] = &cpy
	return nil
}

// Update persists the mutable fields of an existing device.
func (r *InMemoryRepository) Update(_ context.Context, d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.ID]; !ok {
		return ErrDeviceNotFound
	}

	d.UpdatedAt = time.Now().UTC()
	cpy := *d
	r.devices[d.ID] = &cpy
	return nil
}

// Delete removes the device.
func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return ErrDeviceNotFound
	}

	delete(r.devices, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
