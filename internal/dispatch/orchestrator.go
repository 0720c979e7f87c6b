// Package dispatch batch-processes pending notifications and broadcasts:
// it builds provider payloads, pushes them through a bounded worker pool and
// applies the resulting state transitions. One bad record never aborts a
// sweep; every per-record failure is logged and the sweep moves on.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/fsm"
	"github.com/pushdeck/pushdeck/internal/notification"
	"github.com/pushdeck/pushdeck/internal/provider"
)

// DefaultConcurrency is the worker pool size for outbound pushes.
const DefaultConcurrency = 4

// Pusher is the slice of the push provider API the orchestrator needs.
type Pusher interface {
	Push(ctx context.Context, payload map[string]interface{}) (*provider.Response, error)
	PushBroadcast(ctx context.Context, payload map[string]interface{}) (*provider.Response, error)
}

// Config holds the orchestrator's collaborators.
type Config struct {
	Notifications notification.Repository
	Broadcasts    notification.BroadcastRepository
	Devices       device.Repository
	Exclusions    exclusion.Repository
	Pusher        Pusher
	Logger        zerolog.Logger

	// Concurrency bounds in-flight provider calls. Zero uses
	// DefaultConcurrency.
	Concurrency int
}

// Orchestrator drives pending records through delivery.
type Orchestrator struct {
	notifications notification.Repository
	broadcasts    notification.BroadcastRepository
	devices       device.Repository
	exclusions    exclusion.Repository
	pusher        Pusher
	logger        zerolog.Logger
	concurrency   int

	// sweepMu serializes sweeps against each other so a manual trigger
	// cannot overlap a scheduled one.
	sweepMu sync.Mutex

	// records guards each notification/broadcast id so a record is driven by
	// at most one worker at a time.
	records *keyedLock
}

// NewOrchestrator creates a delivery orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Orchestrator{
		notifications: cfg.Notifications,
		broadcasts:    cfg.Broadcasts,
		devices:       cfg.Devices,
		exclusions:    cfg.Exclusions,
		pusher:        cfg.Pusher,
		logger:        cfg.Logger,
		concurrency:   concurrency,
		records:       newKeyedLock(),
	}
}

// SweepResult summarizes one batch sweep.
type SweepResult struct {
	Selected  int
	Processed int
	Skipped   int
	Failed    int
}

// ProcessPendingNotifications pushes every pending notification whose device
// is not inactive. Device state is rechecked per record, not snapshotted for
// the batch.
func (o *Orchestrator) ProcessPendingNotifications(ctx context.Context) (*SweepResult, error) {
	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	pending, err := o.notifications.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending notifications: %w", err)
	}

	result := &SweepResult{Selected: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	o.logger.Info().
		Int("selected", len(pending)).
		Int("concurrency", o.concurrency).
		Msg("starting notification sweep")

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan *notification.Notification)
	)

	for i := 0; i < o.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range work {
				outcome := o.deliverNotification(ctx, n.ID)
				mu.Lock()
				switch outcome {
				case outcomeProcessed:
					result.Processed++
				case outcomeSkipped:
					result.Skipped++
				default:
					result.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, n := range pending {
		select {
		case <-ctx.Done():
			o.logger.Warn().Msg("notification sweep cancelled")
		case work <- n:
			continue
		}
		break
	}
	close(work)
	wg.Wait()

	o.logger.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("notification sweep completed")

	return result, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

// deliverNotification drives one notification under its record lock. The
// record is re-fetched after acquiring the lock so a concurrent sweep that
// already processed it is a clean no-op, keeping delivery at-most-once on
// success.
func (o *Orchestrator) deliverNotification(ctx context.Context, id int64) outcome {
	unlock := o.records.Lock("notification:" + strconv.FormatInt(id, 10))
	defer unlock()

	log := o.logger.With().Int64("notification_id", id).Logger()

	n, err := o.notifications.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("loading notification")
		return outcomeFailed
	}
	if n.State != notification.StatePending {
		return outcomeSkipped
	}

	d, err := o.devices.Get(ctx, n.DeviceID)
	if err != nil {
		log.Error().Err(err).Int64("device_id", n.DeviceID).Msg("loading device")
		return outcomeFailed
	}

	if d.Inactive() {
		if err := n.SetToInactive(); err != nil {
			log.Error().Err(err).Msg("marking notification inactive_device")
			return outcomeFailed
		}
		if err := o.notifications.Update(ctx, n); err != nil {
			log.Error().Err(err).Msg("saving notification")
			return outcomeFailed
		}
		log.Info().Int64("device_id", d.ID).Msg("device inactive, notification skipped")
		return outcomeSkipped
	}

	resp, err := o.pusher.Push(ctx, n.Payload(d.ProviderToken()))
	if err != nil {
		log.Error().Err(err).Msg("pushing notification")
		return outcomeFailed
	}

	n.LastResponseCode = resp.Code
	if err := o.notifications.Update(ctx, n); err != nil {
		log.Error().Err(err).Msg("saving notification")
		return outcomeFailed
	}

	if err := n.Process(); err != nil {
		// A non-200 fails the guard and leaves the record pending for the
		// next sweep.
		if errors.Is(err, fsm.ErrGuardFailed) {
			log.Warn().Int("response_code", resp.Code).Msg("push not accepted, notification left pending")
			return outcomeFailed
		}
		log.Error().Err(err).Msg("processing notification")
		return outcomeFailed
	}

	if err := o.notifications.Update(ctx, n); err != nil {
		log.Error().Err(err).Msg("saving notification")
		return outcomeFailed
	}

	log.Info().
		Int64("device_id", d.ID).
		Str("token_last4", d.TokenLast4()).
		Msg("notification processed")
	return outcomeProcessed
}

// ProcessPendingBroadcasts pushes every pending broadcast with its exclusion
// token list.
func (o *Orchestrator) ProcessPendingBroadcasts(ctx context.Context) (*SweepResult, error) {
	o.sweepMu.Lock()
	defer o.sweepMu.Unlock()

	pending, err := o.broadcasts.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending broadcasts: %w", err)
	}

	result := &SweepResult{Selected: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	o.logger.Info().Int("selected", len(pending)).Msg("starting broadcast sweep")

	for _, b := range pending {
		if ctx.Err() != nil {
			o.logger.Warn().Msg("broadcast sweep cancelled")
			break
		}
		switch o.deliverBroadcast(ctx, b.ID) {
		case outcomeProcessed:
			result.Processed++
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	o.logger.Info().
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("broadcast sweep completed")

	return result, nil
}

func (o *Orchestrator) deliverBroadcast(ctx context.Context, id int64) outcome {
	unlock := o.records.Lock("broadcast:" + strconv.FormatInt(id, 10))
	defer unlock()

	log := o.logger.With().Int64("broadcast_id", id).Logger()

	b, err := o.broadcasts.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("loading broadcast")
		return outcomeFailed
	}
	if b.State != notification.StatePending {
		return outcomeSkipped
	}

	excludeTokens, err := o.excludeTokens(ctx, b.ID)
	if err != nil {
		log.Error().Err(err).Msg("resolving exclusion tokens")
		return outcomeFailed
	}

	resp, err := o.pusher.PushBroadcast(ctx, b.Payload(excludeTokens))
	if err != nil {
		log.Error().Err(err).Msg("pushing broadcast")
		return outcomeFailed
	}

	b.LastResponseCode = resp.Code
	if err := o.broadcasts.Update(ctx, b); err != nil {
		log.Error().Err(err).Msg("saving broadcast")
		return outcomeFailed
	}

	if err := b.Process(); err != nil {
		if errors.Is(err, fsm.ErrGuardFailed) {
			log.Warn().Int("response_code", resp.Code).Msg("broadcast not accepted, left pending")
			return outcomeFailed
		}
		log.Error().Err(err).Msg("processing broadcast")
		return outcomeFailed
	}

	if err := o.broadcasts.Update(ctx, b); err != nil {
		log.Error().Err(err).Msg("saving broadcast")
		return outcomeFailed
	}

	log.Info().Int("excluded", len(excludeTokens)).Msg("broadcast processed")
	return outcomeProcessed
}

// excludeTokens resolves a broadcast's exclusion rows to provider-form device
// tokens.
func (o *Orchestrator) excludeTokens(ctx context.Context, broadcastID int64) ([]string, error) {
	exclusions, err := o.exclusions.ListForBroadcast(ctx, broadcastID)
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(exclusions))
	for _, e := range exclusions {
		d, err := o.devices.Get(ctx, e.DeviceID)
		if err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				continue
			}
			return nil, err
		}
		tokens = append(tokens, d.ProviderToken())
	}
	return tokens, nil
}
