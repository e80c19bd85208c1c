package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/serverdb"
)

// Error code constants for structured API error responses.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeValidation         = "validation"
	ErrCodeNotFound           = "not_found"
	ErrCodeInternal           = "internal"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeSignupDisabled     = "signup_disabled"
	ErrCodeUsernameTaken      = "username_taken"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeUnknownProcedure   = "unknown_procedure"
)

// APIError represents a structured error returned by the API.
type APIError struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Issues  models.FieldErrors `json:"issues,omitempty"`
}

// ErrorResponse wraps an APIError for JSON serialization.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeAPIError(w, status, APIError{Code: code, Message: message})
}

func writeAPIError(w http.ResponseWriter, status int, e APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: e}); err != nil {
		slog.Error("write error response", "err", err)
	}
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "err", err)
	}
}

// storeError classifies an error from the store into a status and API error.
// Validation failures carry their field issues; rows belonging to another
// user look the same as missing rows.
func storeError(err error) (int, APIError) {
	var fe models.FieldErrors
	switch {
	case errors.As(err, &fe):
		return http.StatusBadRequest, APIError{Code: ErrCodeValidation, Message: "invalid input", Issues: fe}
	case errors.Is(err, serverdb.ErrNotFound):
		return http.StatusNotFound, APIError{Code: ErrCodeNotFound, Message: err.Error()}
	default:
		return http.StatusInternalServerError, APIError{Code: ErrCodeInternal, Message: "internal server error"}
	}
}

// writeStoreError logs server-side failures and writes the classified error.
func writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, e := storeError(err)
	if status >= 500 {
		logFor(r.Context()).Error(op, "err", err)
	}
	writeAPIError(w, status, e)
}
