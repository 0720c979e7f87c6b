package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/provider"
	"github.com/pushdeck/pushdeck/internal/provider/urbanairship"
)

// Provider is the slice of the push provider API the poller needs.
type Provider interface {
	Feedback(ctx context.Context, since time.Time) (*provider.Response, error)
}

// DeviceRegistry resolves and deactivates devices named in feedback reports.
type DeviceRegistry interface {
	FindByProviderToken(ctx context.Context, providerToken string) (*device.Device, error)
	Deactivate(ctx context.Context, d *device.Device) error
}

// Poller runs feedback queries against the provider. Runs are serialized by
// an internal mutex: only one query is active at a time, and deactivation
// writes never interleave with another poll.
type Poller struct {
	mu       sync.Mutex
	repo     Repository
	provider Provider
	devices  DeviceRegistry
	logger   zerolog.Logger
}

// NewPoller creates a new feedback poller.
func NewPoller(repo Repository, p Provider, devices DeviceRegistry, logger zerolog.Logger) *Poller {
	return &Poller{
		repo:     repo,
		provider: p,
		devices:  devices,
		logger:   logger,
	}
}

// RunResult summarizes one poll.
type RunResult struct {
	Feedback    *Feedback
	Reported    int
	Deactivated int
}

// Run creates a fresh feedback record and executes it.
func (p *Poller) Run(ctx context.Context) (*RunResult, error) {
	now := time.Now().UTC()
	rec := &Feedback{State: StatePending, CreatedAt: now, UpdatedAt: now}
	if err := p.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating feedback record: %w", err)
	}
	return p.RunRecord(ctx, rec)
}

// RunRecord executes a persisted feedback record: queries the provider since
// the watermark, records the raw reply, and on a 200 deactivates every
// reported device before marking the record processed. A non-200 reply or a
// parse failure leaves the record active with no deactivations applied; it
// stays visible for manual re-drive.
func (p *Poller) RunRecord(ctx context.Context, rec *Feedback) (*RunResult, error) {
	if rec.ID == 0 {
		return nil, ErrNotPersisted
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := rec.Activate(); err != nil {
		return nil, err
	}
	if err := p.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving feedback record: %w", err)
	}

	since := p.watermark(ctx)

	resp, err := p.provider.Feedback(ctx, since)
	if err != nil {
		// Transport failure: the record stays active for re-drive.
		return nil, fmt.Errorf("querying feedback: %w", err)
	}

	rec.Code = resp.Code
	rec.Message = resp.Message
	rec.Body = resp.Body
	if err := p.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving feedback record: %w", err)
	}

	result := &RunResult{Feedback: rec}

	if resp.Code != http.StatusOK {
		p.logger.Warn().
			Int64("feedback_id", rec.ID).
			Int("code", resp.Code).
			Msg("feedback query not accepted, record left active")
		return result, nil
	}

	entries, err := urbanairship.ParseFeedback(resp.Body)
	if err != nil {
		// Malformed body: no partial deactivation, record stays active.
		return nil, fmt.Errorf("feedback record %d: %w", rec.ID, err)
	}

	result.Reported = len(entries)
	for _, entry := range entries {
		d, err := p.devices.FindByProviderToken(ctx, entry.DeviceToken)
		if err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				continue
			}
			return result, fmt.Errorf("resolving device %q: %w", entry.DeviceToken, err)
		}

		if err := p.devices.Deactivate(ctx, d); err != nil {
			return result, fmt.Errorf("deactivating device %d: %w", d.ID, err)
		}
		result.Deactivated++
	}

	if err := rec.Process(); err != nil {
		return result, err
	}
	if err := p.repo.Update(ctx, rec); err != nil {
		return result, fmt.Errorf("saving feedback record: %w", err)
	}

	p.logger.Info().
		Int64("feedback_id", rec.ID).
		Time("since", since).
		Int("reported", result.Reported).
		Int("deactivated", result.Deactivated).
		Msg("feedback poll processed")

	return result, nil
}

// watermark returns the CreatedAt of the most recently created processed
// record, or the epoch when none exists.
func (p *Poller) watermark(ctx context.Context) time.Time {
	last, err := p.repo.LastProcessed(ctx)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return last.CreatedAt
}
