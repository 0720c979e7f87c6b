package device

import "context"

// Repository defines the interface for device persistence.
type Repository interface {
	// Get retrieves a device by ID.
	Get(ctx context.Context, id int64) (*Device, error)

	// GetByToken retrieves a device by its canonical stored token.
	GetByToken(ctx context.Context, token string) (*Device, error)

	// GetByProviderToken retrieves a device by a provider-form token
	// (uppercase, no spaces), as reported by the feedback endpoint.
	GetByProviderToken(ctx context.Context, providerToken string) (*Device, error)

	// Create inserts a new device and fills in its ID.
	// Returns ErrDuplicateToken if the token is already registered.
	Create(ctx context.Context, d *Device) error

	// Update persists the mutable fields of an existing device.
	Update(ctx context.Context, d *Device) error

	// Delete removes the device row. Cascading cleanup of notifications and
	// exclusions is the service's responsibility and runs first.
	Delete(ctx context.Context, id int64) error
}
