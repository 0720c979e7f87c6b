// Package handler provides HTTP handlers for the pushdeck API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pushdeck/pushdeck/internal/api/response"
)

// pathID parses a numeric URL parameter. On failure it writes a 400 response
// and returns false.
func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, r, param+" must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
