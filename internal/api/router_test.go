package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/pushdeck/internal/api/models"
	"github.com/pushdeck/pushdeck/internal/auth"
	"github.com/pushdeck/pushdeck/internal/device"
	"github.com/pushdeck/pushdeck/internal/dispatch"
	"github.com/pushdeck/pushdeck/internal/exclusion"
	"github.com/pushdeck/pushdeck/internal/feedback"
	"github.com/pushdeck/pushdeck/internal/notification"
	"github.com/pushdeck/pushdeck/internal/provider"
	"github.com/pushdeck/pushdeck/internal/provider/urbanairship"
)

// stubProvider fakes the push provider for end-to-end router tests.
type stubProvider struct {
	registerCode int
	pushCode     int
}

func (s *stubProvider) RegisterDevice(context.Context, string, *urbanairship.Registration) (*provider.Response, error) {
	return &provider.Response{Code: s.registerCode}, nil
}

func (s *stubProvider) UnregisterDevice(context.Context, string) (*provider.Response, error) {
	return &provider.Response{Code: 204}, nil
}

func (s *stubProvider) ReadDevice(context.Context, string) (*urbanairship.DeviceInfo, *provider.Response, error) {
	return &urbanairship.DeviceInfo{Alias: "reader"}, &provider.Response{Code: 200}, nil
}

func (s *stubProvider) Push(context.Context, map[string]interface{}) (*provider.Response, error) {
	return &provider.Response{Code: s.pushCode}, nil
}

func (s *stubProvider) PushBroadcast(context.Context, map[string]interface{}) (*provider.Response, error) {
	return &provider.Response{Code: s.pushCode}, nil
}

func (s *stubProvider) Feedback(context.Context, time.Time) (*provider.Response, error) {
	return &provider.Response{Code: 200, Body: "[]"}, nil
}

type testEnv struct {
	router http.Handler
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	stub := &stubProvider{registerCode: 201, pushCode: 200}

	deviceRepo := device.NewInMemoryRepository()
	notificationRepo := notification.NewInMemoryRepository()
	broadcastRepo := notification.NewInMemoryBroadcastRepository()
	exclusionRepo := exclusion.NewInMemoryRepository(broadcastRepo)
	feedbackRepo := feedback.NewInMemoryRepository()

	notificationService := notification.NewService(notificationRepo, broadcastRepo, deviceRepo, exclusionRepo, logger)
	deviceService := device.NewService(deviceRepo, stub, notificationService, exclusionRepo, logger)
	orchestrator := dispatch.NewOrchestrator(dispatch.Config{
		Notifications: notificationRepo,
		Broadcasts:    broadcastRepo,
		Devices:       deviceRepo,
		Exclusions:    exclusionRepo,
		Pusher:        stub,
		Logger:        logger,
	})
	poller := feedback.NewPoller(feedbackRepo, stub, deviceService, logger)

	authService := auth.NewService(auth.Config{
		SigningKey: "test-signing-key-that-is-long-enough",
		Issuer:     "https://api.pushdeck.dev",
		Audience:   "pushdeck-api",
	})
	token, _, err := authService.IssueToken("svc_test", time.Hour)
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Version:             "test",
		Logger:              logger,
		AuthService:         authService,
		DeviceService:       deviceService,
		NotificationService: notificationService,
		ExclusionRepo:       exclusionRepo,
		Orchestrator:        orchestrator,
		FeedbackPoller:      poller,
	})

	return &testEnv{router: router, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

const testToken = "FE66489F 304DC75B 8D6E8200 DFF8A456 E8DAEACE C428B427 E5B6F173 31C82746"

func (e *testEnv) registerDevice(t *testing.T) models.Device {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/devices", models.DeviceRegisterRequest{Token: testToken})
	require.Equal(t, http.StatusCreated, rec.Code)

	var d models.Device
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
	return d
}

func TestRouter_HealthIsPublic(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_DevicesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/1", http.NoBody)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RegisterDevice(t *testing.T) {
	env := newTestEnv(t)

	d := env.registerDevice(t)
	assert.Equal(t, "activated", d.State)
	assert.Equal(t, "2746", d.TokenLast4)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/v1/devices/%d", d.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RegisterDevice_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/devices", models.DeviceRegisterRequest{Token: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "token", problem.Errors[0].Field)
}

func TestRouter_CreateNotification(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t)

	rec := env.do(t, http.MethodPost, "/v1/notifications", models.NotificationCreateRequest{
		DeviceID: d.ID,
		Alert:    "Hi",
		Badge:    "3",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var n models.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))
	assert.Equal(t, "pending", n.State)
	assert.Equal(t, fmt.Sprintf("/v1/notifications/%d", n.ID), rec.Header().Get("Location"))
}

func TestRouter_CreateNotification_UnknownDevice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/notifications", models.NotificationCreateRequest{
		DeviceID: 999,
		Alert:    "Hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_BroadcastExclusionDuplicate(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t)

	rec := env.do(t, http.MethodPost, "/v1/broadcasts", models.BroadcastCreateRequest{Alert: "All hands"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var b models.Broadcast
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))

	path := fmt.Sprintf("/v1/broadcasts/%d/exclusions", b.ID)
	rec = env.do(t, http.MethodPost, path, models.ExclusionCreateRequest{DeviceID: d.ID})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, path, models.ExclusionCreateRequest{DeviceID: d.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_DeliverPendingJob(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t)

	rec := env.do(t, http.MethodPost, "/v1/notifications", models.NotificationCreateRequest{
		DeviceID: d.ID,
		Alert:    "Hi",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var n models.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))

	rec = env.do(t, http.MethodPost, "/v1/jobs/deliveries", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]models.SweepResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 1, result["notifications"].Selected)
	assert.Equal(t, 1, result["notifications"].Processed)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/notifications/%d", n.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))
	assert.Equal(t, "processed", n.State)
	assert.NotNil(t, n.SentAt)
}

func TestRouter_FeedbackJob(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/jobs/feedback", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.FeedbackRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "processed", result.State)
	assert.Zero(t, result.Reported)
}

func TestRouter_DestroyDevice_KeepsProcessedHistory(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t)

	// Deliver one notification so it becomes history.
	rec := env.do(t, http.MethodPost, "/v1/notifications", models.NotificationCreateRequest{
		DeviceID: d.ID,
		Alert:    "Hi",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var n models.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))

	// Process a broadcast the device was excluded from.
	rec = env.do(t, http.MethodPost, "/v1/broadcasts", models.BroadcastCreateRequest{Alert: "All hands"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var b models.Broadcast
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))

	exclusionsPath := fmt.Sprintf("/v1/broadcasts/%d/exclusions", b.ID)
	rec = env.do(t, http.MethodPost, exclusionsPath, models.ExclusionCreateRequest{DeviceID: d.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/jobs/deliveries", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/devices/%d", d.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The processed notification survives the device.
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/notifications/%d", n.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))
	assert.Equal(t, "processed", n.State)

	// So does the exclusion of the processed broadcast.
	rec = env.do(t, http.MethodGet, exclusionsPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Items []models.Exclusion `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.Len(t, listing.Items, 1)
	assert.Equal(t, d.ID, listing.Items[0].DeviceID)
}

func TestRouter_DestroyDevice(t *testing.T) {
	env := newTestEnv(t)
	d := env.registerDevice(t)

	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/v1/devices/%d", d.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/devices/%d", d.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
