package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/pushdeck/internal/api/models"
	"github.com/pushdeck/pushdeck/internal/auth"
)

func newAuthService() *auth.Service {
	return auth.NewService(auth.Config{
		SigningKey: "test-signing-key-that-is-long-enough",
		Issuer:     "https://api.pushdeck.dev",
		Audience:   "pushdeck-api",
	})
}

func authHandler(t *testing.T, svc *auth.Service) (http.Handler, *string) {
	t.Helper()
	var clientID string
	h := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID = GetClientID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return h, &clientID
}

func TestAuth_ValidToken(t *testing.T) {
	svc := newAuthService()
	h, clientID := authHandler(t, svc)

	token, _, err := svc.IssueToken("svc_campaigns", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/1", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "svc_campaigns", *clientID)
}

func TestAuth_MissingHeader(t *testing.T) {
	h, _ := authHandler(t, newAuthService())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/devices/1", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, http.StatusUnauthorized, problem.Status)
	assert.Equal(t, "/v1/devices/1", problem.Instance)
}

func TestAuth_MalformedHeader(t *testing.T) {
	h, _ := authHandler(t, newAuthService())

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/1", http.NoBody)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	h, _ := authHandler(t, newAuthService())

	req := httptest.NewRequest(http.MethodGet, "/v1/devices/1", http.NoBody)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
