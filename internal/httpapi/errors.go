package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"codebuddy/internal/common/fsutil"
	"codebuddy/internal/manager"
	"codebuddy/internal/training"
	"codebuddy/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps well-known errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case manager.IsInvalidRequest(err), manager.IsConfiguration(err):
		return http.StatusBadRequest
	case errors.Is(err, training.ErrIncomplete), errors.Is(err, fsutil.ErrUnsafeName):
		return http.StatusBadRequest
	case manager.IsModelNotFound(err), errors.Is(err, training.ErrNotFound):
		return http.StatusNotFound
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status and counts backpressure.
func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("queue")
	}
	writeJSONError(w, status, err.Error())
	return status
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("http event=encode_failed")
	}
}
