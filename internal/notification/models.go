// Package notification holds the push notification records: single-device
// Notifications and BroadcastNotifications fanned out to every device minus
// an exclusion list. Both carry a state machine whose process transition is
// guarded on the provider having accepted the payload.
package notification

import (
	"errors"
	"time"

	"github.com/pushdeck/pushdeck/internal/fsm"
)

// Repository errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrBroadcastNotFound    = errors.New("broadcast notification not found")
)

// Validation errors.
var (
	ErrDeviceRequired = errors.New("device is required")
	ErrDeviceInactive = errors.New("device must not be marked as inactive")
)

// Notification states.
const (
	StatePending        fsm.State = "pending"
	StateProcessed      fsm.State = "processed"
	StateInactiveDevice fsm.State = "inactive_device"
)

// Notification events.
const (
	EventProcess       fsm.Event = "process"
	EventSetToInactive fsm.Event = "set_to_inactive"
)

// Notification is a push message targeted at a single device.
type Notification struct {
	ID       int64
	DeviceID int64
	State    fsm.State

	Alert string
	Badge string
	Sound string

	// CustomProperties are flattened into the top level of the payload.
	CustomProperties map[string]string

	LastResponseCode int
	SentAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CurrentState implements fsm.Stateful.
func (n *Notification) CurrentState() fsm.State { return n.State }

// SetState implements fsm.Stateful.
func (n *Notification) SetState(s fsm.State) { n.State = s }

var notificationMachine = fsm.New[*Notification]("notification").
	Transition(EventProcess,
		[]fsm.State{StatePending},
		StateProcessed,
		func(n *Notification) bool { return n.LastResponseCode == 200 },
	).
	Transition(EventSetToInactive,
		[]fsm.State{StatePending},
		StateInactiveDevice,
		nil,
	).
	OnEnter(StateProcessed, func(n *Notification) {
		now := time.Now().UTC()
		n.SentAt = &now
	})

// Process transitions the notification to processed if the last push was
// accepted (code 200) and stamps SentAt. Any other code fails the guard and
// leaves the record pending for a later sweep to re-drive.
func (n *Notification) Process() error {
	return notificationMachine.Fire(n, EventProcess)
}

// SetToInactive marks a pending notification as skipped because its device
// was inactive at processing time.
func (n *Notification) SetToInactive() error {
	return notificationMachine.Fire(n, EventSetToInactive)
}

// Payload builds the provider push body for this notification. providerToken
// is the owning device's token in provider form.
func (n *Notification) Payload(providerToken string) map[string]interface{} {
	result := buildAPSPayload(n.Alert, n.Badge, n.Sound, n.CustomProperties)
	result["device_tokens"] = providerToken
	return result
}

// BroadcastNotification is a push message fanned out to all devices except an
// exclusion set.
type BroadcastNotification struct {
	ID    int64
	State fsm.State

	Alert string
	Badge string
	Sound string

	CustomProperties map[string]string

	// DeviceLanguage narrows a broadcast to one localization.
	DeviceLanguage string

	// ErrorsNb counts feedback-reported errors for this broadcast.
	ErrorsNb int

	LastResponseCode int
	SentAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CurrentState implements fsm.Stateful.
func (b *BroadcastNotification) CurrentState() fsm.State { return b.State }

// SetState implements fsm.Stateful.
func (b *BroadcastNotification) SetState(s fsm.State) { b.State = s }

var broadcastMachine = fsm.New[*BroadcastNotification]("broadcast_notification").
	Transition(EventProcess,
		[]fsm.State{StatePending},
		StateProcessed,
		func(b *BroadcastNotification) bool { return b.LastResponseCode == 200 },
	).
	OnEnter(StateProcessed, func(b *BroadcastNotification) {
		now := time.Now().UTC()
		b.SentAt = &now
	})

// Process transitions the broadcast to processed if the last push was
// accepted (code 200) and stamps SentAt.
func (b *BroadcastNotification) Process() error {
	return broadcastMachine.Fire(b, EventProcess)
}

// Processed reports whether the broadcast has been delivered. Exclusions of a
// processed broadcast are immutable history.
func (b *BroadcastNotification) Processed() bool {
	return b.State == StateProcessed
}

// Payload builds the provider broadcast body. excludeTokens are the
// provider-form tokens of every excluded device.
func (b *BroadcastNotification) Payload(excludeTokens []string) map[string]interface{} {
	result := buildAPSPayload(b.Alert, b.Badge, b.Sound, b.CustomProperties)
	if excludeTokens == nil {
		excludeTokens = []string{}
	}
	result["exclude_tokens"] = excludeTokens
	return result
}
