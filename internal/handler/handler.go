// Package handler adapts the orchestrator to a JSON HTTP API. Handlers
// decode input, call one use case and map error kinds to status codes; they
// hold no business rules.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/choreledger/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrInvalidState, apperr.ErrDuplicateAssignment, apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrPhotoRequired,
		apperr.ErrInsufficientBalance,
		apperr.ErrInsufficientPoints,
		apperr.ErrOutOfStock,
		apperr.ErrRewardUnavailable,
		apperr.ErrBelowRedeemed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends {"error", "kind"}. Unkinded errors become a generic 500
// and are logged with their detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error": apperr.Message(err),
		"kind":  apperr.Code(err),
	})
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid JSON")
	}
	return nil
}

// emptyIfNil keeps list endpoints returning [] instead of null.
func emptyIfNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
