package worker

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Default schedules. Deliveries run often; feedback is polled the way Apple
// recommends, a few times a day at most.
const (
	DefaultDeliverySchedule = "@every 1m"
	DefaultFeedbackSchedule = "@every 6h"
)

// SchedulerConfig holds configuration for the cron scheduler.
type SchedulerConfig struct {
	// DeliverySchedule is the cron spec for delivery sweeps.
	DeliverySchedule string

	// FeedbackSchedule is the cron spec for feedback polls.
	FeedbackSchedule string

	Jobs   *Jobs
	Logger zerolog.Logger
}

// SchedulerConfigFromEnv builds a SchedulerConfig from environment variables.
func SchedulerConfigFromEnv(jobs *Jobs, logger zerolog.Logger) SchedulerConfig {
	deliverySchedule := os.Getenv("DELIVERY_SCHEDULE")
	if deliverySchedule == "" {
		deliverySchedule = DefaultDeliverySchedule
	}
	feedbackSchedule := os.Getenv("FEEDBACK_SCHEDULE")
	if feedbackSchedule == "" {
		feedbackSchedule = DefaultFeedbackSchedule
	}

	return SchedulerConfig{
		DeliverySchedule: deliverySchedule,
		FeedbackSchedule: feedbackSchedule,
		Jobs:             jobs,
		Logger:           logger,
	}
}

// Scheduler runs the worker jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger zerolog.Logger
}

// NewScheduler creates a scheduler with the delivery and feedback jobs
// registered. Jobs that are still running when their next tick arrives are
// skipped rather than stacked.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		jobs:   cfg.Jobs,
		logger: cfg.Logger,
	}

	if _, err := s.cron.AddFunc(cfg.DeliverySchedule, s.runDeliveries); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.FeedbackSchedule, s.runFeedback); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("delivery_schedule", cfg.DeliverySchedule).
		Str("feedback_schedule", cfg.FeedbackSchedule).
		Msg("scheduler configured")

	return s, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runDeliveries() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.jobs.RunDeliveries(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled delivery run failed")
	}
}

func (s *Scheduler) runFeedback() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := s.jobs.RunFeedback(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled feedback poll failed")
	}
}
