// Package exclusion tracks the devices skipped for a specific push: each row
// ties a device to exactly one notification or broadcast. Uniqueness per
// (device, notification) and per (device, broadcast) pair is enforced by the
// storage layer, not just validated here.
package exclusion

import (
	"errors"
	"time"
)

// Errors.
var (
	ErrExclusionNotFound = errors.New("exclusion not found")

	// ErrDuplicateExclusion is returned when the (device, notification) or
	// (device, broadcast) pair already has a row.
	ErrDuplicateExclusion = errors.New("device already excluded for this notification")

	// ErrTargetRequired is returned when the row does not reference exactly
	// one notification or broadcast.
	ErrTargetRequired = errors.New("exactly one of notification or broadcast notification is required")

	// ErrDeviceRequired is returned when the device reference is missing.
	ErrDeviceRequired = errors.New("device is required")
)

// Exclusion marks a device as skipped for one notification or broadcast.
// Exactly one of NotificationID / BroadcastNotificationID is set.
type Exclusion struct {
	ID                      int64
	DeviceID                int64
	NotificationID          *int64
	BroadcastNotificationID *int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Validate checks the required references. Exactly one target must be set,
// mirroring the schema's CHECK constraint.
func (e *Exclusion) Validate() error {
	if e.DeviceID == 0 {
		return ErrDeviceRequired
	}
	if (e.NotificationID == nil) == (e.BroadcastNotificationID == nil) {
		return ErrTargetRequired
	}
	return nil
}

// ForBroadcast reports whether the exclusion targets a broadcast.
func (e *Exclusion) ForBroadcast() bool {
	return e.BroadcastNotificationID != nil
}
