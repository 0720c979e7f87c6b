// Package worker provides background job processing for pushdeck: scheduled
// delivery sweeps, feedback polls and the Pub/Sub trigger surface.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/feedback"
)

// Jobs bundles the background jobs the worker can run. The orchestrator and
// poller serialize themselves internally, so a Pub/Sub trigger racing a cron
// tick just queues behind it.
type Jobs struct {
	orchestrator *dispatch.Orchestrator
	poller       *feedback.Poller
	logger       zerolog.Logger

	metrics *JobMetrics
}

// JobMetrics tracks job statistics across runs.
type JobMetrics struct {
	mu sync.RWMutex

	DeliveryRuns         int64
	NotificationsSent    int64
	BroadcastsSent       int64
	DeliveryFailures     int64
	FeedbackRuns         int64
	DevicesDeactivated   int64
	FeedbackFailures     int64
	LastDeliveryAt       time.Time
	LastDeliveryDuration time.Duration
	LastFeedbackAt       time.Time
	LastFeedbackDuration time.Duration
}

// JobsConfig holds configuration for creating Jobs.
type JobsConfig struct {
	Orchestrator *dispatch.Orchestrator
	Poller       *feedback.Poller
	Logger       zerolog.Logger
}

// NewJobs creates the worker job set.
func NewJobs(cfg JobsConfig) *Jobs {
	return &Jobs{
		orchestrator: cfg.Orchestrator,
		poller:       cfg.Poller,
		logger:       cfg.Logger,
		metrics:      &JobMetrics{},
	}
}

// DeliveryResult contains the result of one delivery run.
type DeliveryResult struct {
	Notifications *dispatch.SweepResult
	Broadcasts    *dispatch.SweepResult
	Duration      time.Duration
}

// RunDeliveries sweeps pending notifications and then pending broadcasts.
func (j *Jobs) RunDeliveries(ctx context.Context) (*DeliveryResult, error) {
	start := time.Now()

	notifications, err := j.orchestrator.ProcessPendingNotifications(ctx)
	if err != nil {
		j.recordDeliveryFailure()
		return nil, err
	}

	broadcasts, err := j.orchestrator.ProcessPendingBroadcasts(ctx)
	if err != nil {
		j.recordDeliveryFailure()
		return nil, err
	}

	result := &DeliveryResult{
		Notifications: notifications,
		Broadcasts:    broadcasts,
		Duration:      time.Since(start),
	}

	j.metrics.mu.Lock()
	j.metrics.DeliveryRuns++
	j.metrics.NotificationsSent += int64(notifications.Processed)
	j.metrics.BroadcastsSent += int64(broadcasts.Processed)
	j.metrics.LastDeliveryAt = time.Now()
	j.metrics.LastDeliveryDuration = result.Duration
	j.metrics.mu.Unlock()

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("notifications_processed", notifications.Processed).
		Int("broadcasts_processed", broadcasts.Processed).
		Int("failed", notifications.Failed+broadcasts.Failed).
		Msg("delivery run completed")

	return result, nil
}

// RunFeedback executes one feedback poll.
func (j *Jobs) RunFeedback(ctx context.Context) (*feedback.RunResult, error) {
	start := time.Now()

	result, err := j.poller.Run(ctx)
	if err != nil {
		j.metrics.mu.Lock()
		j.metrics.FeedbackFailures++
		j.metrics.mu.Unlock()
		return nil, err
	}

	j.metrics.mu.Lock()
	j.metrics.FeedbackRuns++
	j.metrics.DevicesDeactivated += int64(result.Deactivated)
	j.metrics.LastFeedbackAt = time.Now()
	j.metrics.LastFeedbackDuration = time.Since(start)
	j.metrics.mu.Unlock()

	return result, nil
}

func (j *Jobs) recordDeliveryFailure() {
	j.metrics.mu.Lock()
	j.metrics.DeliveryFailures++
	j.metrics.mu.Unlock()
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *Jobs) MetricsSnapshot() map[string]interface{} {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return map[string]interface{}{
		"delivery_runs":          j.metrics.DeliveryRuns,
		"notifications_sent":     j.metrics.NotificationsSent,
		"broadcasts_sent":        j.metrics.BroadcastsSent,
		"delivery_failures":      j.metrics.DeliveryFailures,
		"feedback_runs":          j.metrics.FeedbackRuns,
		"devices_deactivated":    j.metrics.DevicesDeactivated,
		"feedback_failures":      j.metrics.FeedbackFailures,
		"last_delivery_at":       j.metrics.LastDeliveryAt,
		"last_delivery_duration": j.metrics.LastDeliveryDuration.String(),
		"last_feedback_at":       j.metrics.LastFeedbackAt,
		"last_feedback_duration": j.metrics.LastFeedbackDuration.String(),
	}
}
