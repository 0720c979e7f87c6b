package notification

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/pushdeck/internal/device"
)

// fakeExclusions records which notification IDs were swept.
type fakeExclusions struct {
	deleted []int64
}

func (f *fakeExclusions) DeleteByNotification(_ context.Context, notificationID int64) error {
	f.deleted = append(f.deleted, notificationID)
	return nil
}

func newTestService(t *testing.T) (*Service, *device.InMemoryRepository, *fakeExclusions) {
	t.Helper()
	devices := device.NewInMemoryRepository()
	exclusions := &fakeExclusions{}
	svc := NewService(NewInMemoryRepository(), NewInMemoryBroadcastRepository(), devices, exclusions, zerolog.Nop())
	return svc, devices, exclusions
}

func activeDevice(t *testing.T, devices *device.InMemoryRepository) *device.Device {
	t.Helper()
	d := &device.Device{
		Token: "fe66489f 304dc75b 8d6e8200 dff8a456 e8daeace c428b427 e5b6f173 31c82746",
		State: device.StateActivated,
	}
	require.NoError(t, devices.Create(context.Background(), d))
	return d
}

func TestCreate_QueuesPending(t *testing.T) {
	svc, devices, _ := newTestService(t)
	d := activeDevice(t, devices)

	n, err := svc.Create(context.Background(), CreateInput{DeviceID: d.ID, Alert: "Hi", Badge: "3"})
	require.NoError(t, err)

	assert.Equal(t, StatePending, n.State)
	assert.NotZero(t, n.ID)

	got, err := svc.Get(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Alert)
}

func TestCreate_RequiresDevice(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{Alert: "Hi"})
	assert.ErrorIs(t, err, ErrDeviceRequired)

	_, err = svc.Create(context.Background(), CreateInput{DeviceID: 999, Alert: "Hi"})
	assert.ErrorIs(t, err, ErrDeviceRequired)
}

func TestCreate_RejectsInactiveDevice(t *testing.T) {
	svc, devices, _ := newTestService(t)
	d := activeDevice(t, devices)
	d.State = device.StateInactive
	require.NoError(t, devices.Update(context.Background(), d))

	_, err := svc.Create(context.Background(), CreateInput{DeviceID: d.ID, Alert: "Hi"})
	assert.ErrorIs(t, err, ErrDeviceInactive)
}

func TestCreateBroadcast(t *testing.T) {
	svc, _, _ := newTestService(t)

	b, err := svc.CreateBroadcast(context.Background(), BroadcastInput{
		Alert:          "All hands",
		DeviceLanguage: "en",
	})
	require.NoError(t, err)

	assert.Equal(t, StatePending, b.State)
	assert.Equal(t, "en", b.DeviceLanguage)

	got, err := svc.GetBroadcast(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "All hands", got.Alert)
}

func TestDestroyPendingForDevice(t *testing.T) {
	svc, devices, exclusions := newTestService(t)
	d := activeDevice(t, devices)

	pending, err := svc.Create(context.Background(), CreateInput{DeviceID: d.ID, Alert: "one"})
	require.NoError(t, err)

	// A processed notification for the same device must survive.
	processed, err := svc.Create(context.Background(), CreateInput{DeviceID: d.ID, Alert: "two"})
	require.NoError(t, err)
	processed.LastResponseCode = 200
	require.NoError(t, processed.Process())
	require.NoError(t, svc.repo.Update(context.Background(), processed))

	destroyed, err := svc.DestroyPendingForDevice(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, []int64{pending.ID}, exclusions.deleted)

	_, err = svc.Get(context.Background(), pending.ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	got, err := svc.Get(context.Background(), processed.ID)
	require.NoError(t, err)
	assert.Equal(t, StateProcessed, got.State)
}
