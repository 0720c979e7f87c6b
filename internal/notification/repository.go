package notification

import "context"

// Repository defines the interface for notification persistence.
type Repository interface {
	// Get retrieves a notification by ID.
	Get(ctx context.Context, id int64) (*Notification, error)

	// ListPending retrieves all pending notifications, oldest first.
	ListPending(ctx context.Context) ([]*Notification, error)

	// ListPendingByDevice retrieves the pending notifications owned by a
	// device.
	ListPendingByDevice(ctx context.Context, deviceID int64) ([]*Notification, error)

	// Create inserts a new notification and fills in its ID.
	Create(ctx context.Context, n *Notification) error

	// Update persists the mutable fields of an existing notification.
	Update(ctx context.Context, n *Notification) error

	// Delete removes the notification row.
	Delete(ctx context.Context, id int64) error
}

// BroadcastRepository defines the interface for broadcast persistence.
type BroadcastRepository interface {
	// Get retrieves a broadcast by ID.
	Get(ctx context.Context, id int64) (*BroadcastNotification, error)

	// ListPending retrieves all pending broadcasts, oldest first.
	ListPending(ctx context.Context) ([]*BroadcastNotification, error)

	// Create inserts a new broadcast and fills in its ID.
	Create(ctx context.Context, b *BroadcastNotification) error

	// Update persists the mutable fields of an existing broadcast.
	Update(ctx context.Context, b *BroadcastNotification) error
}
