package exclusion

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL exclusion repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new exclusion. The unique indexes on
// (device_id, notification_id) and (device_id, broadcast_notification_id)
// reject duplicate pairs at the data-integrity level.
func (r *PostgresRepository) Create(ctx context.Context, e *Exclusion) error {
	if err := e.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO excluded_devices_for_notifications (
			device_id, notification_id, broadcast_notification_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		e.DeviceID,
		e.NotificationID,
		e.BroadcastNotificationID,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateExclusion
		}
		return err
	}

	return nil
}

// ListForBroadcast retrieves every exclusion of a broadcast.
func (r *PostgresRepository) ListForBroadcast(ctx context.Context, broadcastID int64) ([]*Exclusion, error) {
	query := `
		SELECT id, device_id, notification_id, broadcast_notification_id, created_at, updated_at
		FROM excluded_devices_for_notifications
		WHERE broadcast_notification_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, broadcastID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exclusions []*Exclusion
	for rows.Next() {
		var e Exclusion
		err := rows.Scan(
			&e.ID,
			&e.DeviceID,
			&e.NotificationID,
			&e.BroadcastNotificationID,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		exclusions = append(exclusions, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return exclusions, nil
}

// DeleteByNotification removes the exclusion rows of a notification.
func (r *PostgresRepository) DeleteByNotification(ctx context.Context, notificationID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM excluded_devices_for_notifications WHERE notification_id = $1`,
		notificationID,
	)
	return err
}

// DeletePendingBroadcastExclusionsForDevice removes the device's exclusions
// whose broadcast has not been processed yet.
func (r *PostgresRepository) DeletePendingBroadcastExclusionsForDevice(ctx context.Context, deviceID int64) (int, error) {
	query := `
		DELETE FROM excluded_devices_for_notifications e
		USING broadcast_notifications b
		WHERE e.broadcast_notification_id = b.id
		  AND e.device_id = $1
		  AND b.state <> 'processed'
	`

	result, err := r.pool.Exec(ctx, query, deviceID)
	if err != nil {
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
