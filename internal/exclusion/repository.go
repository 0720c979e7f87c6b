package exclusion

import "context"

// Repository defines the interface for exclusion persistence.
type Repository interface {
	// Create inserts a new exclusion and fills in its ID. Returns
	// ErrDuplicateExclusion when the pair already exists.
	Create(ctx context.Context, e *Exclusion) error

	// ListForBroadcast retrieves every exclusion of a broadcast.
	ListForBroadcast(ctx context.Context, broadcastID int64) ([]*Exclusion, error)

	// DeleteByNotification removes the exclusion rows of a single-device
	// notification.
	DeleteByNotification(ctx context.Context, notificationID int64) error

	// DeletePendingBroadcastExclusionsForDevice removes the device's
	// broadcast-targeted exclusions whose broadcast has not been processed
	// yet. Exclusions of processed broadcasts stay as historical record.
	// Returns the number of rows removed.
	DeletePendingBroadcastExclusionsForDevice(ctx context.Context, deviceID int64) (int, error)
}
