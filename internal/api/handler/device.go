package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/pushdeck/pushdeck/internal/api/models"
	"github.com/pushdeck/pushdeck/internal/api/response"
	"github.com/pushdeck/pushdeck/internal/device"
)

// DeviceHandler handles device registry endpoints.
type DeviceHandler struct {
	devices *device.Service
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *device.Service) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// Register handles POST /v1/devices - register or re-register a device.
// Registering an existing token updates the device in place.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input models.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.Token == "" {
		response.BadRequest(w, r, "validation failed", []models.FieldError{
			{Field: "token", Message: "is required"},
		})
		return
	}

	d, err := h.devices.Register(r.Context(), device.RegisterInput{
		Token: input.Token,
		Alias: input.Alias,
		Tags:  input.Tags,
	})
	if err != nil {
		if errors.Is(err, device.ErrInvalidToken) {
			response.BadRequest(w, r, "validation failed", []models.FieldError{
				{Field: "token", Message: "is not a valid device token"},
			})
			return
		}
		response.InternalError(w, r, "failed to register device")
		return
	}

	location := fmt.Sprintf("/v1/devices/%d", d.ID)
	response.Created(w, r, location, models.DeviceFromDomain(d))
}

// Get handles GET /v1/devices/{deviceId} - fetch one device.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "deviceId")
	if !ok {
		return
	}

	d, err := h.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "failed to load device")
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceFromDomain(d))
}

// GetByToken handles GET /v1/devices?token= - look a device up by token.
func (h *DeviceHandler) GetByToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.BadRequest(w, r, "token query parameter is required", nil)
		return
	}

	d, err := h.devices.GetByToken(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidToken):
			response.BadRequest(w, r, "token is not a valid device token", nil)
		case errors.Is(err, device.ErrDeviceNotFound):
			response.NotFound(w, r, "device not found")
		default:
			response.InternalError(w, r, "failed to load device")
		}
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceFromDomain(d))
}

// ReadProviderInfo handles GET /v1/devices/{deviceId}/provider - query the
// push provider for the device's current alias and tags.
func (h *DeviceHandler) ReadProviderInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "deviceId")
	if !ok {
		return
	}

	info, err := h.devices.Read(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.ServiceUnavailable(w, r, "provider lookup failed")
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceInfo{Alias: info.Alias, Tags: info.Tags})
}

// Destroy handles DELETE /v1/devices/{deviceId} - destroy a device with its
// cleanup side effects (provider unregister, pending notifications, pending
// broadcast exclusions).
func (h *DeviceHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "deviceId")
	if !ok {
		return
	}

	if err := h.devices.Destroy(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			response.NotFound(w, r, "device not found")
			return
		}
		response.InternalError(w, r, "failed to destroy device")
		return
	}
	response.NoContent(w, r)
}
