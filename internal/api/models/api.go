// Package models defines the API request and response types.
package models

import (
	"time"

	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/feedback"
	"github.com/pushdeck/pushdeck/internal/notification"
)

// DeviceRegisterRequest is the body for POST /v1/devices.
type DeviceRegisterRequest struct {
	// Token is the APNS device token in any accepted form: canonical
	// space-delimited hex, compact hex, or either wrapped in angle brackets.
	Token string   `json:"token"`
	Alias string   `json:"alias,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Device is the API representation of a registered device. The raw token is
// never echoed back; callers get the last four characters for correlation.
type Device struct {
	ID               int64      `json:"id"`
	TokenLast4       string     `json:"tokenLast4"`
	State            string     `json:"state"`
	Alias            string     `json:"alias,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	ResponseCode     int        `json:"responseCode,omitempty"`
	LastRegisteredAt *time.Time `json:"lastRegisteredAt,omitempty"`
	LastInactiveAt   *time.Time `json:"lastInactiveAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// DeviceFromDomain maps a domain device to its API representation.
func DeviceFromDomain(d *device.Device) Device {
	return Device{
		ID:               d.ID,
		TokenLast4:       d.TokenLast4(),
		State:            string(d.State),
		Alias:            d.Alias,
		Tags:             d.Tags,
		ResponseCode:     d.ResponseCode,
		LastRegisteredAt: d.LastRegisteredAt,
		LastInactiveAt:   d.LastInactiveAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// DeviceInfo is the provider-side view of a device (alias and tags).
type DeviceInfo struct {
	Alias string   `json:"alias,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// NotificationCreateRequest is the body for POST /v1/notifications.
type NotificationCreateRequest struct {
	DeviceID         int64             `json:"deviceId"`
	Alert            string            `json:"alert,omitempty"`
	Badge            string            `json:"badge,omitempty"`
	Sound            string            `json:"sound,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
}

// Notification is the API representation of a queued notification.
type Notification struct {
	ID               int64             `json:"id"`
	DeviceID         int64             `json:"deviceId"`
	State            string            `json:"state"`
	Alert            string            `json:"alert,omitempty"`
	Badge            string            `json:"badge,omitempty"`
	Sound            string            `json:"sound,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
	LastResponseCode int               `json:"lastResponseCode,omitempty"`
	SentAt           *time.Time        `json:"sentAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// NotificationFromDomain maps a domain notification to its API representation.
func NotificationFromDomain(n *notification.Notification) Notification {
	return Notification{
		ID:               n.ID,
		DeviceID:         n.DeviceID,
		State:            string(n.State),
		Alert:            n.Alert,
		Badge:            n.Badge,
		Sound:            n.Sound,
		CustomProperties: n.CustomProperties,
		LastResponseCode: n.LastResponseCode,
		SentAt:           n.SentAt,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}

// BroadcastCreateRequest is the body for POST /v1/broadcasts.
type BroadcastCreateRequest struct {
	Alert            string            `json:"alert,omitempty"`
	Badge            string            `json:"badge,omitempty"`
	Sound            string            `json:"sound,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
	DeviceLanguage   string            `json:"deviceLanguage,omitempty"`
}

// Broadcast is the API representation of a broadcast notification.
type Broadcast struct {
	ID               int64             `json:"id"`
	State            string            `json:"state"`
	Alert            string            `json:"alert,omitempty"`
	Badge            string            `json:"badge,omitempty"`
	Sound            string            `json:"sound,omitempty"`
	CustomProperties map[string]string `json:"customProperties,omitempty"`
	DeviceLanguage   string            `json:"deviceLanguage,omitempty"`
	ErrorsNb         int               `json:"errorsNb"`
	LastResponseCode int               `json:"lastResponseCode,omitempty"`
	SentAt           *time.Time        `json:"sentAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// BroadcastFromDomain maps a domain broadcast to its API representation.
func BroadcastFromDomain(b *notification.BroadcastNotification) Broadcast {
	return Broadcast{
		ID:               b.ID,
		State:            string(b.State),
		Alert:            b.Alert,
		Badge:            b.Badge,
		Sound:            b.Sound,
		CustomProperties: b.CustomProperties,
		DeviceLanguage:   b.DeviceLanguage,
		ErrorsNb:         b.ErrorsNb,
		LastResponseCode: b.LastResponseCode,
		SentAt:           b.SentAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// ExclusionCreateRequest is the body for POST /v1/broadcasts/{id}/exclusions.
type ExclusionCreateRequest struct {
	DeviceID int64 `json:"deviceId"`
}

// Exclusion is the API representation of an exclusion row.
type Exclusion struct {
	ID                      int64     `json:"id"`
	DeviceID                int64     `json:"deviceId"`
	NotificationID          *int64    `json:"notificationId,omitempty"`
	BroadcastNotificationID *int64    `json:"broadcastNotificationId,omitempty"`
	CreatedAt               time.Time `json:"createdAt"`
}

// ExclusionFromDomain maps a domain exclusion to its API representation.
func ExclusionFromDomain(e *exclusion.Exclusion) Exclusion {
	return Exclusion{
		ID:                      e.ID,
		DeviceID:                e.DeviceID,
		NotificationID:          e.NotificationID,
		BroadcastNotificationID: e.BroadcastNotificationID,
		CreatedAt:               e.CreatedAt,
	}
}

// SweepResult summarizes one delivery sweep triggered through the API.
type SweepResult struct {
	Selected  int `json:"selected"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// SweepResultFromDomain maps a dispatch sweep result.
func SweepResultFromDomain(r *dispatch.SweepResult) SweepResult {
	return SweepResult{
		Selected:  r.Selected,
		Processed: r.Processed,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
	}
}

// FeedbackRun summarizes one feedback poll triggered through the API.
type FeedbackRun struct {
	ID          int64  `json:"id"`
	State       string `json:"state"`
	Code        int    `json:"code,omitempty"`
	Reported    int    `json:"reported"`
	Deactivated int    `json:"deactivated"`
}

// FeedbackRunFromDomain maps a poller run result.
func FeedbackRunFromDomain(r *feedback.RunResult) FeedbackRun {
	return FeedbackRun{
		ID:          r.Feedback.ID,
		State:       string(r.Feedback.State),
		Code:        r.Feedback.Code,
		Reported:    r.Reported,
		Deactivated: r.Deactivated,
	}
}

// Health is the response for health and readiness checks.
type Health struct {
	Status  string                 `json:"status"`
	Time    time.Time              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Health status values.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)
