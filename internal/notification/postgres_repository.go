package notification

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

// NewPostgresRepository creates a new PostgreSQL notification repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const notificationColumns = `
	id, device_id, state, alert, badge, sound, custom_properties,
	last_response_code, sent_at, created_at, updated_at
`

// Get retrieves a notification by ID.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Notification, error) {
	query := `SELECT` + notificationColumns + `FROM notifications WHERE id = $1`

	n, err := scanNotification(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// ListPending retrieves all pending notifications, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*Notification, error) {
	query := `SELECT` + notificationColumns + `FROM notifications WHERE state = 'pending' ORDER BY id`
	return r.list(ctx, query)
}

// ListPendingByDevice retrieves the pending notifications owned by a device.
func (r *PostgresRepository) ListPendingByDevice(ctx context.Context, deviceID int64) ([]*Notification, error) {
	query := `SELECT` + notificationColumns + `FROM notifications WHERE state = 'pending' AND device_id = $1 ORDER BY id`
	return r.list(ctx, query, deviceID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...interface{}) ([]*Notification, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n     Notification
		state string
	)

	err := row.Scan(
		&n.ID,
		&n.DeviceID,
		&state,
		&n.Alert,
		&n.Badge,
		&n.Sound,
		&n.CustomProperties,
		&n.LastResponseCode,
		&n.SentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.State = fsm.State(state)
	return &n, nil
}

// Create inserts a new notification and fills in its ID.
func (r *PostgresRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (
			device_id, state, alert, badge, sound, custom_properties,
			last_response_code, sent_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	return r.pool.QueryRow(ctx, query,
		n.DeviceID,
		string(n.State),
		n.Alert,
		n.Badge,
		n.Sound,
		n.CustomProperties,
		n.LastResponseCode,
		n.SentAt,
		n.CreatedAt,
		n.UpdatedAt,
	).Scan(&n.ID)
}

// Update persists the mutable fields of an existing notification and stamps
// UpdatedAt.
func (r *PostgresRepository) Update(ctx context.Context, n *Notification) error {
	n.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE notifications SET
			state = $2,
			alert = $3,
			badge = $4,
			sound = $5,
			custom_properties = $6,
			last_response_code = $7,
			sent_at = $8,
			updated_at = $9
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		n.ID,
		string(n.State),
		n.Alert,
		n.Badge,
		n.Sound,
		n.CustomProperties,
		n.LastResponseCode,
		n.SentAt,
		n.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Delete removes the notification row.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

// PostgresBroadcastRepository is a PostgreSQL implementation of
// BroadcastRepository.
type PostgresBroadcastRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBroadcastRepository creates a new PostgreSQL broadcast repository.
func NewPostgresBroadcastRepository(pool *pgxpool.Pool) *PostgresBroadcastRepository {
	return &PostgresBroadcastRepository{pool: pool}
}

const broadcastColumns = `
	id, state, alert, badge, sound, custom_properties, device_language,
	errors_nb, last_response_code, sent_at, created_at, updated_at
`

// Get retrieves a broadcast by ID.
func (r *PostgresBroadcastRepository) Get(ctx context.Context, id int64) (*BroadcastNotification, error) {
	query := `SELECT` + broadcastColumns + `FROM broadcast_notifications WHERE id = $1`

	b, err := scanBroadcast(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBroadcastNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListPending retrieves all pending broadcasts, oldest first.
func (r *PostgresBroadcastRepository) ListPending(ctx context.Context) ([]*BroadcastNotification, error) {
	query := `SELECT` + broadcastColumns + `FROM broadcast_notifications WHERE state = 'pending' ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var broadcasts []*BroadcastNotification
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		broadcasts = append(broadcasts, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return broadcasts, nil
}

func scanBroadcast(row pgx.Row) (*BroadcastNotification, error) {
	var (
		b     BroadcastNotification
		state string
	)

	err := row.Scan(
		&b.ID,
		&state,
		&b.Alert,
		&b.Badge,
		&b.Sound,
		&b.CustomProperties,
		&b.DeviceLanguage,
		&b.ErrorsNb,
		&b.LastResponseCode,
		&b.SentAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.State = fsm.State(state)
	return &b, nil
}

// Create inserts a new broadcast and fills in its ID.
func (r *PostgresBroadcastRepository) Create(ctx context.Context, b *BroadcastNotification) error {
	query := `
		INSERT INTO broadcast_notifications (
			state, alert, badge, sound, custom_properties, device_language,
			errors_nb, last_response_code, sent_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	return r.pool.QueryRow(ctx, query,
		string(b.State),
		b.Alert,
		b.Badge,
		b.Sound,
		b.CustomProperties,
		b.DeviceLanguage,
		b.ErrorsNb,
		b.LastResponseCode,
		b.SentAt,
		b.CreatedAt,
		b.UpdatedAt,
	).Scan(&b.ID)
}

// Update persists the mutable fields of an existing broadcast and stamps
// UpdatedAt.
func (r *PostgresBroadcastRepository) Update(ctx context.Context, b *BroadcastNotification) error {
	b.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE broadcast_notifications SET
			state = $2,
			alert = $3,
			badge = $4,
			sound = $5,
			custom_properties = $6,
			device_language = $7,
			errors_nb = $8,
			last_response_code = $9,
			sent_at = $10,
			updated_at = $11
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		b.ID,
		string(b.State),
		b.Alert,
		b.Badge,
		b.Sound,
		b.CustomProperties,
		b.DeviceLanguage,
		b.ErrorsNb,
		b.LastResponseCode,
		b.SentAt,
		b.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrBroadcastNotFound
	}
	return nil
}

// Ensure PostgresBroadcastRepository implements BroadcastRepository interface.
var _ BroadcastRepository = (*PostgresBroadcastRepository)(nil)
