package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/feedback"
	"github.com/pushdeck/pushdeck/internal/notification"
	"github.com/pushdeck/pushdeck/internal/provider"
)

// okPusher accepts every push.
type okPusher struct{}

func (okPusher) Push(context.Context, map[string]interface{}) (*provider.Response, error) {
	return &provider.Response{Code: 200, Message: "OK"}, nil
}

func (okPusher) PushBroadcast(context.Context, map[string]interface{}) (*provider.Response, error) {
	return &provider.Response{Code: 200, Message: "OK"}, nil
}

// emptyFeedback reports no inactive tokens.
type emptyFeedback struct{}

func (emptyFeedback) Feedback(context.Context, time.Time) (*provider.Response, error) {
	return &provider.Response{Code: 200, Message: "OK", Body: "[]"}, nil
}

type registryStub struct{}

func (registryStub) FindByProviderToken(context.Context, string) (*device.Device, error) {
	return nil, device.ErrDeviceNotFound
}

func (registryStub) Deactivate(context.Context, *device.Device) error { return nil }

func newTestJobs(t *testing.T) (*Jobs, *device.InMemoryRepository, *notification.InMemoryRepository) {
	t.Helper()

	devices := device.NewInMemoryRepository()
	notifications := notification.NewInMemoryRepository()
	broadcasts := notification.NewInMemoryBroadcastRepository()

	orchestrator := dispatch.NewOrchestrator(dispatch.Config{
		Notifications: notifications,
		Broadcasts:    broadcasts,
		Devices:       devices,
		Exclusions:    exclusion.NewInMemoryRepository(broadcasts),
		Pusher:        okPusher{},
		Logger:        zerolog.Nop(),
	})

	poller := feedback.NewPoller(
		feedback.NewInMemoryRepository(),
		emptyFeedback{},
		registryStub{},
		zerolog.Nop(),
	)

	jobs := NewJobs(JobsConfig{
		Orchestrator: orchestrator,
		Poller:       poller,
		Logger:       zerolog.Nop(),
	})
	return jobs, devices, notifications
}

func TestRunDeliveries_CountsBothSweeps(t *testing.T) {
	jobs, devices, notifications := newTestJobs(t)

	d := &device.Device{
		Token: "fe66489f 304dc75b 8d6e8200 dff8a456 e8daeace c428b427 e5b6f173 31c82746",
		State: device.StateActivated,
	}
	require.NoError(t, devices.Create(context.Background(), d))
	require.NoError(t, notifications.Create(context.Background(), &notification.Notification{
		DeviceID: d.ID,
		State:    notification.StatePending,
		Alert:    "Hi",
	}))

	result, err := jobs.RunDeliveries(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Notifications.Processed)
	assert.Zero(t, result.Broadcasts.Selected)

	snap := jobs.MetricsSnapshot()
	assert.Equal(t, int64(1), snap["delivery_runs"])
	assert.Equal(t, int64(1), snap["notifications_sent"])
	assert.Equal(t, int64(0), snap["delivery_failures"])
}

func TestRunFeedback_UpdatesMetrics(t *testing.T) {
	jobs, _, _ := newTestJobs(t)

	result, err := jobs.RunFeedback(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Deactivated)

	snap := jobs.MetricsSnapshot()
	assert.Equal(t, int64(1), snap["feedback_runs"])
	assert.Equal(t, int64(0), snap["devices_deactivated"])
}
