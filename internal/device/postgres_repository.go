package device

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pushdeck/pushdeck/internal/fsm"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const deviceColumns = `
	id, token, state, response_code, response_message, response_body,
	alias, tags, last_registered_at, last_inactive_at, created_at, updated_at
`

// Get retrieves a device by ID.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Device, error) {
	query := `SELECT` + deviceColumns + `FROM devices WHERE id = $1`
	return r.scanDevice(ctx, query, id)
}

// GetByToken retrieves a device by its canonical stored token.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*Device, error) {
	query := `SELECT` + deviceColumns + `FROM devices WHERE token = $1`
	return r.scanDevice(ctx, query, token)
}

// GetByProviderToken retrieves a device by a provider-form token by mapping
// it back to the canonical stored form.
func (r *PostgresRepository) GetByProviderToken(ctx context.Context, providerToken string) (*Device, error) {
	return r.GetByToken(ctx, CanonicalFromProviderToken(providerToken))
}

func (r *PostgresRepository) scanDevice(ctx context.Context, query string, args ...interface{}) (*Device, error) {
	var (
		d     Device
		state string
	)

	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&d.ID,
		&d.Token,
		&state,
		&d.ResponseCode,
		&d.ResponseMessage,
		&d.ResponseBody,
		&d.Alias,
		&d.Tags,
		&d.LastRegisteredAt,
		&d.LastInactiveAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	d.State = fsm.State(state)
	return &d, nil
}

// Create inserts a new device and fills in its ID.
func (r *PostgresRepository) Create(ctx context.Context, d *Device) error {
	query := `
		INSERT INTO devices (
			token, state, response_code, response_message, response_body,
			alias, tags, last_registered_at, last_inactive_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		d.Token,
		string(d.State),
		d.ResponseCode,
		d.ResponseMessage,
		d.ResponseBody,
		d.Alias,
		d.Tags,
		d.LastRegisteredAt,
		d.LastInactiveAt,
		d.CreatedAt,
		d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateToken
		}
		return err
	}

	return nil
}

// Update persists the mutable fields of an existing device and stamps
// UpdatedAt.
func (r *PostgresRepository) Update(ctx context.Context, d *Device) error {
	d.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE devices SET
			token = $2,
			state = $3,
			response_code = $4,
			response_message = $5,
			response_body = $6,
			alias = $7,
			tags = $8,
			last_registered_at = $9,
			last_inactive_at = $10,
			updated_at = $11
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Token,
		string(d.State),
		d.ResponseCode,
		d.ResponseMessage,
		d.ResponseBody,
		d.Alias,
		d.Tags,
		d.LastRegisteredAt,
		d.LastInactiveAt,
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Delete removes the device row.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
