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

// BroadcastHandler handles broadcast notification endpoints.
type BroadcastHandler struct {
	notifications *notification.Service
	exclusions    exclusion.Repository
}

// NewBroadcastHandler creates a new BroadcastHandler.
func NewBroadcastHandler(notifications *notification.Service, exclusions exclusion.Repository) *BroadcastHandler {
	return &BroadcastHandler{notifications: notifications, exclusions: exclusions}
}

// Create handles POST /v1/broadcasts - queue a broadcast for delivery.
func (h *BroadcastHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.BroadcastCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	b, err := h.notifications.CreateBroadcast(r.Context(), notification.BroadcastInput{
		Alert:            input.Alert,
		Badge:            input.Badge,
		Sound:            input.Sound,
		CustomProperties: input.CustomProperties,
		DeviceLanguage:   input.DeviceLanguage,
	})
	if err != nil {
		response.InternalError(w, r, "failed to create broadcast")
		return
	}

	location := fmt.Sprintf("/v1/broadcasts/%d", b.ID)
	response.Created(w, r, location, models.BroadcastFromDomain(b))
}

// Get handles GET /v1/broadcasts/{broadcastId}.
func (h *BroadcastHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "broadcastId")
	if !ok {
		return
	}

	b, err := h.notifications.GetBroadcast(r.Context(), id)
	if err != nil {
		if errors.Is(err, notification.ErrBroadcastNotFound) {
			response.NotFound(w, r, "broadcast not found")
			return
		}
		response.InternalError(w, r, "failed to load broadcast")
		return
	}
	response.JSON(w, r, http.StatusOK, models.BroadcastFromDomain(b))
}

// CreateExclusion handles POST /v1/broadcasts/{broadcastId}/exclusions -
// exclude a device from one broadcast.
func (h *BroadcastHandler) CreateExclusion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "broadcastId")
	if !ok {
		return
	}

	var input models.ExclusionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if _, err := h.notifications.GetBroadcast(r.Context(), id); err != nil {
		if errors.Is(err, notification.ErrBroadcastNotFound) {
			response.NotFound(w, r, "broadcast not found")
			return
		}
		response.InternalError(w, r, "failed to load broadcast")
		return
	}

	e := &exclusion.Exclusion{DeviceID: input.DeviceID, BroadcastNotificationID: &id}
	if err := e.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if err := h.exclusions.Create(r.Context(), e); err != nil {
		if errors.Is(err, exclusion.ErrDuplicateExclusion) {
			response.Conflict(w, r, "device is already excluded for this broadcast")
			return
		}
		response.InternalError(w, r, "failed to create exclusion")
		return
	}

	location := fmt.Sprintf("/v1/broadcasts/%d/exclusions/%d", id, e.ID)
	response.Created(w, r, location, models.ExclusionFromDomain(e))
}

// ListExclusions handles GET /v1/broadcasts/{broadcastId}/exclusions.
func (h *BroadcastHandler) ListExclusions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "broadcastId")
	if !ok {
		return
	}

	if _, err := h.notifications.GetBroadcast(r.Context(), id); err != nil {
		if errors.Is(err, notification.ErrBroadcastNotFound) {
			response.NotFound(w, r, "broadcast not found")
			return
		}
		response.InternalError(w, r, "failed to load broadcast")
		return
	}

	rows, err := h.exclusions.ListForBroadcast(r.Context(), id)
	if err != nil {
		response.InternalError(w, r, "failed to list exclusions")
		return
	}

	items := make([]models.Exclusion, 0, len(rows))
	for _, e := range rows {
		items = append(items, models.ExclusionFromDomain(e))
	}
	response.JSON(w, r, http.StatusOK, map[string]interface{}{"items": items})
}
