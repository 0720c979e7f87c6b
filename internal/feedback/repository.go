package feedback

import "context"

// Repository defines the interface for feedback record persistence.
type Repository interface {
	// Get retrieves a feedback record by ID.
	Get(ctx context.Context, id int64) (*Feedback, error)

	// LastProcessed retrieves the most recently created processed record,
	// ordered by id descending. The watermark deliberately follows record
	// identity, not timestamps.
	LastProcessed(ctx context.Context) (*Feedback, error)

	// Create inserts a new record and fills in its ID.
	Create(ctx context.Context, f *Feedback) error

	// Update persists the mutable fields of an existing record.
	Update(ctx context.Context, f *Feedback) error
}
