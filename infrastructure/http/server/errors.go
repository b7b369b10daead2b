package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	apperrors "cinematch/errors"
)

// statusOf maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 and only its presence is reported to the
// client; the chain goes to the log.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrEmptyContent),
		errors.Is(err, apperrors.ErrContentTooLong),
		errors.Is(err, apperrors.ErrInvalidUserID),
		errors.Is(err, apperrors.ErrNotMatchRoom):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrRevealLocked):
		return http.StatusPreconditionFailed
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
