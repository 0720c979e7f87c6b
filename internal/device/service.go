package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/fsm"
	"github.com/pushdeck/pushdeck/internal/provider"
	"github.com/pushdeck/pushdeck/internal/provider/urbanairship"
)

// Provider is the slice of the push provider API the registry needs.
type Provider interface {
	RegisterDevice(ctx context.Context, providerToken string, reg *urbanairship.Registration) (*provider.Response, error)
	UnregisterDevice(ctx context.Context, providerToken string) (*provider.Response, error)
	ReadDevice(ctx context.Context, providerToken string) (*urbanairship.DeviceInfo, *provider.Response, error)
}

// NotificationCleaner destroys a device's pending notifications (and their
// exclusion rows) when the device is destroyed.
type NotificationCleaner interface {
	DestroyPendingForDevice(ctx context.Context, deviceID int64) (int, error)
}

// ExclusionCleaner removes a device's exclusions from not-yet-processed
// broadcasts when the device is destroyed.
type ExclusionCleaner interface {
	DeletePendingBroadcastExclusionsForDevice(ctx context.Context, deviceID int64) (int, error)
}

// Service provides device registry operations.
type Service struct {
	repo          Repository
	provider      Provider
	notifications NotificationCleaner
	exclusions    ExclusionCleaner
	logger        zerolog.Logger
}

// NewService creates a new device service.
func NewService(repo Repository, p Provider, notifications NotificationCleaner, exclusions ExclusionCleaner, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		provider:      p,
		notifications: notifications,
		exclusions:    exclusions,
		logger:        logger,
	}
}

// RegisterInput carries the caller-supplied fields of a registration.
type RegisterInput struct {
	Token string
	Alias string
	Tags  []string
}

// Register normalizes the token, persists the device, registers it with the
// provider and applies the activation guard: 200/201 activates, anything else
// deactivates. An existing device with the same token is re-registered in
// place, which is how an inactive device comes back after a user re-enables
// pushes.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Device, error) {
	token, err := NormalizeToken(input.Token)
	if err != nil {
		return nil, err
	}

	d, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrDeviceNotFound) {
			return nil, fmt.Errorf("looking up device: %w", err)
		}
		now := time.Now().UTC()
		d = &Device{
			Token:            token,
			State:            StateCreated,
			LastRegisteredAt: &now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.Create(ctx, d); err != nil {
			return nil, fmt.Errorf("creating device: %w", err)
		}
	}

	d.Alias = input.Alias
	d.Tags = input.Tags

	var reg *urbanairship.Registration
	if input.Alias != "" || len(input.Tags) > 0 {
		reg = &urbanairship.Registration{Alias: input.Alias, Tags: input.Tags}
	}

	resp, err := s.provider.RegisterDevice(ctx, d.ProviderToken(), reg)
	if err != nil {
		// Transport failure: record nothing and leave the state alone; the
		// caller can retry registration.
		return nil, fmt.Errorf("registering device with provider: %w", err)
	}

	d.ResponseCode = resp.Code
	d.ResponseMessage = resp.Message
	d.ResponseBody = resp.Body

	if err := d.Activate(); err != nil {
		if !errors.Is(err, fsm.ErrGuardFailed) {
			return nil, err
		}
		// Provider rejected the registration; the device goes inactive.
		if err := d.Deactivate(); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("saving device: %w", err)
	}

	s.logger.Info().
		Int64("device_id", d.ID).
		Str("token_last4", d.TokenLast4()).
		Str("state", string(d.State)).
		Int("response_code", d.ResponseCode).
		Msg("device registered")

	return d, nil
}

// Get retrieves a device by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Device, error) {
	return s.repo.Get(ctx, id)
}

// GetByToken retrieves a device by any accepted token form.
func (s *Service) GetByToken(ctx context.Context, rawToken string) (*Device, error) {
	token, err := NormalizeToken(rawToken)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByToken(ctx, token)
}

// FindByProviderToken retrieves a device by a provider-form token, as the
// feedback endpoint reports them.
func (s *Service) FindByProviderToken(ctx context.Context, providerToken string) (*Device, error) {
	return s.repo.GetByProviderToken(ctx, providerToken)
}

// Read queries the provider for the device's alias and tags.
func (s *Service) Read(ctx context.Context, id int64) (*urbanairship.DeviceInfo, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	info, resp, err := s.provider.ReadDevice(ctx, d.ProviderToken())
	if err != nil {
		return nil, fmt.Errorf("reading device from provider: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("provider returned %d reading device %d", resp.Code, id)
	}
	return info, nil
}

// Deactivate marks the device inactive and persists it. Used by the feedback
// poller when the platform reports the token dead.
func (s *Service) Deactivate(ctx context.Context, d *Device) error {
	if err := d.Deactivate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return fmt.Errorf("saving device: %w", err)
	}

	s.logger.Info().
		Int64("device_id", d.ID).
		Str("token_last4", d.TokenLast4()).
		Msg("device deactivated")
	return nil
}

// Destroy removes a device after running its cleanup side effects in order:
// best-effort provider unregister, destroy pending notifications (and their
// exclusions), destroy exclusions of not-yet-processed broadcasts. Exclusions
// of processed broadcasts survive as delivery history.
func (s *Service) Destroy(ctx context.Context, id int64) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.provider.UnregisterDevice(ctx, d.ProviderToken()); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("device_id", d.ID).
			Msg("provider unregister failed, destroying device anyway")
	}

	destroyed, err := s.notifications.DestroyPendingForDevice(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("destroying pending notifications: %w", err)
	}

	removed, err := s.exclusions.DeletePendingBroadcastExclusionsForDevice(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("destroying broadcast exclusions: %w", err)
	}

	if err := s.repo.Delete(ctx, d.ID); err != nil {
		return err
	}

	s.logger.Info().
		Int64("device_id", d.ID).
		Str("token_last4", d.TokenLast4()).
		Int("notifications_destroyed", destroyed).
		Int("exclusions_removed", removed).
		Msg("device destroyed")
	return nil
}
