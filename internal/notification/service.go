package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/device"
)

// DeviceGetter resolves owning devices during notification creation.
type DeviceGetter interface {
	Get(ctx context.Context, id int64) (*device.Device, error)
}

// ExclusionSweeper removes exclusion rows tied to a notification; used when a
// pending notification is destroyed alongside its device.
type ExclusionSweeper interface {
	DeleteByNotification(ctx context.Context, notificationID int64) error
}

// Service provides notification and broadcast operations.
type Service struct {
	repo       Repository
	broadcasts BroadcastRepository
	devices    DeviceGetter
	exclusions ExclusionSweeper
	logger     zerolog.Logger
}

// NewService creates a new notification service.
func NewService(repo Repository, broadcasts BroadcastRepository, devices DeviceGetter, exclusions ExclusionSweeper, logger zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		broadcasts: broadcasts,
		devices:    devices,
		exclusions: exclusions,
		logger:     logger,
	}
}

// CreateInput carries the caller-supplied fields of a new notification.
type CreateInput struct {
	DeviceID         int64
	Alert            string
	Badge            string
	Sound            string
	CustomProperties map[string]string
}

// Create validates and persists a new pending notification. A notification
// may never be queued against an unknown or inactive device; that is rejected
// here outright, stricter than the runtime skip during delivery.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Notification, error) {
	if input.DeviceID == 0 {
		return nil, ErrDeviceRequired
	}

	d, err := s.devices.Get(ctx, input.DeviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil, ErrDeviceRequired
		}
		return nil, fmt.Errorf("resolving device: %w", err)
	}
	if d.Inactive() {
		return nil, ErrDeviceInactive
	}

	n := &Notification{
		DeviceID:         input.DeviceID,
		State:            StatePending,
		Alert:            input.Alert,
		Badge:            input.Badge,
		Sound:            input.Sound,
		CustomProperties: input.CustomProperties,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return n, nil
}

// Get retrieves a notification by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Notification, error) {
	return s.repo.Get(ctx, id)
}

// BroadcastInput carries the caller-supplied fields of a new broadcast.
type BroadcastInput struct {
	Alert            string
	Badge            string
	Sound            string
	CustomProperties map[string]string
	DeviceLanguage   string
}

// CreateBroadcast persists a new pending broadcast.
func (s *Service) CreateBroadcast(ctx context.Context, input BroadcastInput) (*BroadcastNotification, error) {
	b := &BroadcastNotification{
		State:            StatePending,
		Alert:            input.Alert,
		Badge:            input.Badge,
		Sound:            input.Sound,
		CustomProperties: input.CustomProperties,
		DeviceLanguage:   input.DeviceLanguage,
	}

	if err := s.broadcasts.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("creating broadcast: %w", err)
	}
	return b, nil
}

// GetBroadcast retrieves a broadcast by ID.
func (s *Service) GetBroadcast(ctx context.Context, id int64) (*BroadcastNotification, error) {
	return s.broadcasts.Get(ctx, id)
}

// DestroyPendingForDevice removes a device's pending notifications together
// with their exclusion rows. Processed and inactive_device records stay as
// history. Returns the number of notifications destroyed.
func (s *Service) DestroyPendingForDevice(ctx context.Context, deviceID int64) (int, error) {
	pending, err := s.repo.ListPendingByDevice(ctx, deviceID)
	if err != nil {
		return 0, fmt.Errorf("listing pending notifications: %w", err)
	}

	destroyed := 0
	for _, n := range pending {
		if err := s.exclusions.DeleteByNotification(ctx, n.ID); err != nil {
			return destroyed, fmt.Errorf("deleting exclusions for notification %d: %w", n.ID, err)
		}
		if err := s.repo.Delete(ctx, n.ID); err != nil {
			return destroyed, fmt.Errorf("deleting notification %d: %w", n.ID, err)
		}
		destroyed++
	}

	if destroyed > 0 {
		s.logger.Info().
			Int64("device_id", deviceID).
			Int("count", destroyed).
			Msg("destroyed pending notifications for device")
	}
	return destroyed, nil
}
