package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pushdeck/pushdeck/internal/api/models"
	"github.com/pushdeck/pushdeck/internal/api/response"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/notification"
)

// NotificationHandler handles single-device notification endpoints.
type NotificationHandler struct {
	notifications *notification.Service
	exclusions    exclusion.Repository
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications *notification.Service, exclusions exclusion.Repository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, exclusions: exclusions}
}

// Create handles POST /v1/notifications - queue a notification for delivery.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.NotificationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	n, err := h.notifications.Create(r.Context(), notification.CreateInput{
		DeviceID:         input.DeviceID,
		Alert:            input.Alert,
		Badge:            input.Badge,
		Sound:            input.Sound,
		CustomProperties: input.CustomProperties,
	})
	if err != nil {
		switch {
		case errors.Is(err, notification.ErrDeviceRequired):
			response.BadRequest(w, r, "validation failed", []models.FieldError{
				{Field: "deviceId", Message: "must reference a registered device"},
			})
		case errors.Is(err, notification.ErrDeviceInactive):
			response.BadRequest(w, r, "validation failed", []models.FieldError{
				{Field: "deviceId", Message: "device must not be marked as inactive"},
			})
		default:
			response.InternalError(w, r, "failed to create notification")
		}
		return
	}

	location := fmt.Sprintf("/v1/notifications/%d", n.ID)
	response.Created(w, r, location, models.NotificationFromDomain(n))
}

// Get handles GET /v1/notifications/{notificationId}.
func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "notificationId")
	if !ok {
		return
	}

	n, err := h.notifications.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			response.NotFound(w, r, "notification not found")
			return
		}
		response.InternalError(w, r, "failed to load notification")
		return
	}
	response.JSON(w, r, http.StatusOK, models.NotificationFromDomain(n))
}

// CreateExclusion handles POST /v1/notifications/{notificationId}/exclusions -
// exclude a device from one queued notification.
func (h *NotificationHandler) CreateExclusion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "notificationId")
	if !ok {
		return
	}

	var input models.ExclusionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if _, err := h.notifications.Get(r.Context(), id); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			response.NotFound(w, r, "notification not found")
			return
		}
		response.InternalError(w, r, "failed to load notification")
		return
	}

	e := &exclusion.Exclusion{DeviceID: input.DeviceID, NotificationID: &id}
	if err := e.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if err := h.exclusions.Create(r.Context(), e); err != nil {
		if errors.Is(err, exclusion.ErrDuplicateExclusion) {
			response.Conflict(w, r, "device is already excluded for this notification")
			return
		}
		response.InternalError(w, r, "failed to create exclusion")
		return
	}

	location := fmt.Sprintf("/v1/notifications/%d/exclusions/%d", id, e.ID)
	response.Created(w, r, location, models.ExclusionFromDomain(e))
}
