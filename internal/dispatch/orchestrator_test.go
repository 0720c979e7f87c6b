package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/fsm"
	"github.com/pushdeck/pushdeck/internal/notification"
	"github.com/pushdeck/pushdeck/internal/provider"
)

const (
	canonicalTokenA = "fe66489f 304dc75b 8d6e8200 dff8a456 e8daeace c428b427 e5b6f173 31c82746"
	canonicalTokenB = "ab12489f 304dc75b 8d6e8200 dff8a456 e8daeace c428b427 e5b6f173 31c82746"
)

// recordingPusher captures payloads and returns canned response codes.
type recordingPusher struct {
	mu             sync.Mutex
	pushCode       int
	broadcastCode  int
	pushed         []map[string]interface{}
	broadcastsSent []map[string]interface{}
}

func (p *recordingPusher) Push(_ context.Context, payload map[string]interface{}) (*provider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, payload)
	return &provider.Response{Code: p.pushCode, Message: "OK"}, nil
}

func (p *recordingPusher) PushBroadcast(_ context.Context, payload map[string]interface{}) (*provider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcastsSent = append(p.broadcastsSent, payload)
	return &provider.Response{Code: p.broadcastCode, Message: "OK"}, nil
}

type env struct {
	orchestrator  *Orchestrator
	notifications *notification.InMemoryRepository
	broadcasts    *notification.InMemoryBroadcastRepository
	devices       *device.InMemoryRepository
	exclusions    *exclusion.InMemoryRepository
	pusher        *recordingPusher
}

func newEnv(t *testing.T) *env {
	t.Helper()

	broadcasts := notification.NewInMemoryBroadcastRepository()
	e := &env{
		notifications: notification.NewInMemoryRepository(),
		broadcasts:    broadcasts,
		devices:       device.NewInMemoryRepository(),
		exclusions:    exclusion.NewInMemoryRepository(broadcasts),
		pusher:        &recordingPusher{pushCode: 200, broadcastCode: 200},
	}
	e.orchestrator = NewOrchestrator(Config{
		Notifications: e.notifications,
		Broadcasts:    e.broadcasts,
		Devices:       e.devices,
		Exclusions:    e.exclusions,
		Pusher:        e.pusher,
		Logger:        zerolog.Nop(),
		Concurrency:   2,
	})
	return e
}

func (e *env) addDevice(t *testing.T, token string, state fsm.State) *device.Device {
	t.Helper()
	d := &device.Device{Token: token, State: state}
	require.NoError(t, e.devices.Create(context.Background(), d))
	return d
}

func (e *env) addNotification(t *testing.T, deviceID int64, alert string) *notification.Notification {
	t.Helper()
	n := &notification.Notification{DeviceID: deviceID, State: notification.StatePending, Alert: alert}
	require.NoError(t, e.notifications.Create(context.Background(), n))
	return n
}

func TestProcessPendingNotifications_Delivers(t *testing.T) {
	e := newEnv(t)
	d := e.addDevice(t, canonicalTokenA, device.StateActivated)
	n := e.addNotification(t, d.ID, "Hi")

	result, err := e.orchestrator.ProcessPendingNotifications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Selected)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Failed)

	require.Len(t, e.pusher.pushed, 1)
	assert.Equal(t, map[string]interface{}{
		"aps":           map[string]interface{}{"alert": "Hi"},
		"device_tokens": d.ProviderToken(),
	}, e.pusher.pushed[0])

	got, err := e.notifications.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StateProcessed, got.State)
	assert.Equal(t, 200, got.LastResponseCode)
	assert.NotNil(t, got.SentAt)
}

func TestProcessPendingNotifications_RejectedStaysPending(t *testing.T) {
	e := newEnv(t)
	e.pusher.pushCode = 503
	d := e.addDevice(t, canonicalTokenA, device.StateActivated)
	n := e.addNotification(t, d.ID, "Hi")

	result, err := e.orchestrator.ProcessPendingNotifications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Processed)

	// The response code is recorded, but the record stays pending for the
	// next sweep.
	got, err := e.notifications.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatePending, got.State)
	assert.Equal(t, 503, got.LastResponseCode)
	assert.Nil(t, got.SentAt)
}

func TestProcessPendingNotifications_InactiveDeviceSkipped(t *testing.T) {
	e := newEnv(t)
	d := e.addDevice(t, canonicalTokenA, device.StateInactive)
	n := e.addNotification(t, d.ID, "Hi")

	result, err := e.orchestrator.ProcessPendingNotifications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, e.pusher.pushed)

	got, err := e.notifications.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StateInactiveDevice, got.State)
}

func TestProcessPendingNotifications_AlreadyProcessedSkipped(t *testing.T) {
	e := newEnv(t)
	d := e.addDevice(t, canonicalTokenA, device.StateActivated)
	n := e.addNotification(t, d.ID, "Hi")

	// Simulate a concurrent sweep having processed the record after the
	// pending list was taken.
	n.LastResponseCode = 200
	require.NoError(t, n.Process())
	require.NoError(t, e.notifications.Update(context.Background(), n))

	result, err := e.orchestrator.ProcessPendingNotifications(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.Selected)
	assert.Empty(t, e.pusher.pushed)
}

func TestProcessPendingNotifications_MixedBatch(t *testing.T) {
	e := newEnv(t)
	active := e.addDevice(t, canonicalTokenA, device.StateActivated)
	inactive := e.addDevice(t, canonicalTokenB, device.StateInactive)
	e.addNotification(t, active.ID, "one")
	e.addNotification(t, inactive.ID, "two")

	result, err := e.orchestrator.ProcessPendingNotifications(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Selected)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, e.pusher.pushed, 1)
	assert.Equal(t, active.ProviderToken(), e.pusher.pushed[0]["device_tokens"])
}

func TestProcessPendingBroadcasts_ResolvesExclusions(t *testing.T) {
	e := newEnv(t)
	excluded := e.addDevice(t, canonicalTokenA, device.StateActivated)

	b := &notification.BroadcastNotification{State: notification.StatePending, Alert: "All hands"}
	require.NoError(t, e.broadcasts.Create(context.Background(), b))

	require.NoError(t, e.exclusions.Create(context.Background(), &exclusion.Exclusion{
		DeviceID:                excluded.ID,
		BroadcastNotificationID: &b.ID,
	}))
	// An exclusion whose device has been deleted is silently dropped.
	require.NoError(t, e.exclusions.Create(context.Background(), &exclusion.Exclusion{
		DeviceID:                999,
		BroadcastNotificationID: &b.ID,
	}))

	result, err := e.orchestrator.ProcessPendingBroadcasts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	require.Len(t, e.pusher.broadcastsSent, 1)
	assert.Equal(t, map[string]interface{}{
		"aps":            map[string]interface{}{"alert": "All hands"},
		"exclude_tokens": []string{excluded.ProviderToken()},
	}, e.pusher.broadcastsSent[0])

	got, err := e.broadcasts.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StateProcessed, got.State)
	assert.NotNil(t, got.SentAt)
}

func TestProcessPendingBroadcasts_NoExclusionsSendsEmptyList(t *testing.T) {
	e := newEnv(t)

	b := &notification.BroadcastNotification{State: notification.StatePending, Alert: "All hands"}
	require.NoError(t, e.broadcasts.Create(context.Background(), b))

	result, err := e.orchestrator.ProcessPendingBroadcasts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	require.Len(t, e.pusher.broadcastsSent, 1)
	assert.Equal(t, []string{}, e.pusher.broadcastsSent[0]["exclude_tokens"])
}

func TestProcessPendingBroadcasts_RejectedStaysPending(t *testing.T) {
	e := newEnv(t)
	e.pusher.broadcastCode = 400

	b := &notification.BroadcastNotification{State: notification.StatePending, Alert: "All hands"}
	require.NoError(t, e.broadcasts.Create(context.Background(), b))

	result, err := e.orchestrator.ProcessPendingBroadcasts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)

	got, err := e.broadcasts.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, notification.StatePending, got.State)
	assert.Equal(t, 400, got.LastResponseCode)
}
