package exclusion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBroadcastStates marks a fixed set of broadcast IDs as processed.
type stubBroadcastStates struct {
	processed map[int64]bool
}

func (s *stubBroadcastStates) IsProcessed(_ context.Context, id int64) (bool, error) {
	return s.processed[id], nil
}

func ptr(v int64) *int64 { return &v }

func TestCreate_Validation(t *testing.T) {
	repo := NewInMemoryRepository(nil)

	err := repo.Create(context.Background(), &Exclusion{NotificationID: ptr(1)})
	assert.ErrorIs(t, err, ErrDeviceRequired)

	err = repo.Create(context.Background(), &Exclusion{DeviceID: 1})
	assert.ErrorIs(t, err, ErrTargetRequired)

	err = repo.Create(context.Background(), &Exclusion{
		DeviceID:                1,
		NotificationID:          ptr(1),
		BroadcastNotificationID: ptr(2),
	})
	assert.ErrorIs(t, err, ErrTargetRequired)
}

func TestCreate_DuplicatePairRejected(t *testing.T) {
	repo := NewInMemoryRepository(nil)

	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, NotificationID: ptr(10)}))

	err := repo.Create(context.Background(), &Exclusion{DeviceID: 1, NotificationID: ptr(10)})
	assert.ErrorIs(t, err, ErrDuplicateExclusion)

	// Same device against a different notification is fine.
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, NotificationID: ptr(11)}))

	// Notification and broadcast pairs are independent uniqueness scopes.
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, BroadcastNotificationID: ptr(10)}))
	err = repo.Create(context.Background(), &Exclusion{DeviceID: 1, BroadcastNotificationID: ptr(10)})
	assert.ErrorIs(t, err, ErrDuplicateExclusion)
}

func TestListForBroadcast_OrderedByID(t *testing.T) {
	repo := NewInMemoryRepository(nil)

	for _, deviceID := range []int64{3, 1, 2} {
		require.NoError(t, repo.Create(context.Background(), &Exclusion{
			DeviceID:                deviceID,
			BroadcastNotificationID: ptr(7),
		}))
	}
	require.NoError(t, repo.Create(context.Background(), &Exclusion{
		DeviceID:                1,
		BroadcastNotificationID: ptr(8),
	}))

	got, err := repo.ListForBroadcast(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{got[0].DeviceID, got[1].DeviceID, got[2].DeviceID})
}

func TestDeleteByNotification(t *testing.T) {
	repo := NewInMemoryRepository(nil)

	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, NotificationID: ptr(10)}))
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 2, NotificationID: ptr(10)}))
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, NotificationID: ptr(11)}))

	require.NoError(t, repo.DeleteByNotification(context.Background(), 10))

	// The pair is free again after deletion.
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, NotificationID: ptr(10)}))

	err := repo.Create(context.Background(), &Exclusion{DeviceID: 1, NotificationID: ptr(11)})
	assert.ErrorIs(t, err, ErrDuplicateExclusion)
}

func TestDeletePendingBroadcastExclusions_ProcessedSurvive(t *testing.T) {
	states := &stubBroadcastStates{processed: map[int64]bool{100: true}}
	repo := NewInMemoryRepository(states)

	// One exclusion against a processed broadcast, one against a pending one.
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, BroadcastNotificationID: ptr(100)}))
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 1, BroadcastNotificationID: ptr(200)}))
	// Another device's pending exclusion stays untouched.
	require.NoError(t, repo.Create(context.Background(), &Exclusion{DeviceID: 2, BroadcastNotificationID: ptr(200)}))

	removed, err := repo.DeletePendingBroadcastExclusionsForDevice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// The processed broadcast's exclusion is still listed as history.
	got, err := repo.ListForBroadcast(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].DeviceID)

	got, err = repo.ListForBroadcast(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].DeviceID)
}
