package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mbocsi/lightwaverf/account"
	"github.com/mbocsi/lightwaverf/app"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/queue"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e APIError) Error() string {
	return e.Message
}

const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeUnavailable  = "UNAVAILABLE"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeCanceled     = "CANCELED"
)

// statusClientClosedRequest marks requests whose caller went away before the
// hub answered.
const statusClientClosedRequest = 499

func invalidInput(msg string) APIError {
	return APIError{Code: ErrCodeInvalidInput, Message: msg}
}

// classify maps an error onto an API code and HTTP status.
func classify(err error) (APIError, int) {
	var apiErr APIError
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Code {
		case ErrCodeInvalidInput:
			return apiErr, http.StatusBadRequest
		case ErrCodeNotFound:
			return apiErr, http.StatusNotFound
		}
		return apiErr, http.StatusInternalServerError
	case errors.Is(err, queue.ErrExecutionExpired), errors.Is(err, queue.ErrRetryExpired), errors.Is(err, context.DeadlineExceeded):
		return APIError{Code: ErrCodeTimeout, Message: err.Error()}, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return APIError{Code: ErrCodeCanceled, Message: err.Error()}, statusClientClosedRequest
	case errors.Is(err, queue.ErrQueueDestroyed), errors.Is(err, client.ErrNotConnected):
		return APIError{Code: ErrCodeUnavailable, Message: err.Error()}, http.StatusServiceUnavailable
	case errors.Is(err, app.ErrNoAccount), errors.Is(err, account.ErrMissingCredentials):
		return APIError{Code: ErrCodeNotFound, Message: err.Error()}, http.StatusNotFound
	}
	return APIError{Code: ErrCodeInternal, Message: err.Error()}, http.StatusInternalServerError
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	apiErr, status := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "code", apiErr.Code, "error", err)
	} else {
		slog.Debug("Request rejected", "code", apiErr.Code, "error", err)
	}
	writeJSON(w, status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}
