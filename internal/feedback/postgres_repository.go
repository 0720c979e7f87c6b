package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pushdeck/pushdeck/internal/fsm"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL feedback repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const feedbackColumns = `id, state, code, message, body, created_at, updated_at`

// Get retrieves a feedback record by ID.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedbacks WHERE id = $1`
	return r.scanFeedback(ctx, query, id)
}

// LastProcessed retrieves the most recently created processed record.
func (r *PostgresRepository) LastProcessed(ctx context.Context) (*Feedback, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedbacks WHERE state = 'processed' ORDER BY id DESC LIMIT 1`
	return r.scanFeedback(ctx, query)
}

func (r *PostgresRepository) scanFeedback(ctx context.Context, query string, args ...interface{}) (*Feedback, error) {
	var (
		f     Feedback
		state string
	)

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&f.ID,
		&state,
		&f.Code,
		&f.Message,
		&f.Body,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeedbackNotFound
		}
		return nil, err
	}

	f.State = fsm.State(state)
	return &f, nil
}

// Create inserts a new record and fills in its ID.
func (r *PostgresRepository) Create(ctx context.Context, f *Feedback) error {
	query := `
		INSERT INTO feedbacks (state, code, message, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return r.pool.QueryRow(ctx, query,
		string(f.State),
		f.Code,
		f.Message,
		f.Body,
		f.CreatedAt,
		f.UpdatedAt,
	).Scan(&f.ID)
}

// Update persists the mutable fields of an existing record and stamps
// UpdatedAt.
func (r *PostgresRepository) Update(ctx context.Context, f *Feedback) error {
	query := `
		UPDATE feedbacks SET
			state = $2,
			code = $3,
			message = $4,
			body = $5,
			updated_at = $6
		WHERE id = $1
	`

	f.UpdatedAt = time.Now().UTC()
	result, err := r.pool.Exec(ctx, query,
		f.ID,
		string(f.State),
		f.Code,
		f.Message,
		f.Body,
		f.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrFeedbackNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
