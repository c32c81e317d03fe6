package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusOf - maps domain errors to HTTP statuses. Unknown errors are internal.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrMalformedRequest):
		return http.StatusBadRequest, apperror.ErrMalformedRequest.Error()
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests, apperror.ErrRateLimited.Error()
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, apperror.ErrUnauthorized.Error()
	case errors.Is(err, apperror.ErrAlreadyInitialized):
		return http.StatusConflict, apperror.ErrAlreadyInitialized.Error()
	case errors.Is(err, apperror.ErrMatchNotFound):
		return http.StatusNotFound, apperror.ErrMatchNotFound.Error()
	case errors.Is(err, apperror.ErrDownstreamInit), errors.Is(err, apperror.ErrActorStopped):
		return http.StatusServiceUnavailable, apperror.ErrDownstreamInit.Error()
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, message := statusOf(err)

	var rateErr *apperror.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds()))
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}
