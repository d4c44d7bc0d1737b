package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/pkg/logger"
)

// ErrorResponse represents a structured JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Common error codes
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeRateLimit        = "RATE_LIMIT_EXCEEDED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInvalidState     = "INVALID_STATE"
	CodeNotApproved      = "NOT_APPROVED"
	CodeDuplicateVote    = "DUPLICATE_VOTE"
	CodeInvalidCandidate = "INVALID_CANDIDATE"
	CodeOTPInvalid       = "OTP_INVALID"
	CodeOTPRequired      = "OTP_REQUIRED"
)

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

// WriteJSON writes any payload as JSON
func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteDomainError maps a service error onto an HTTP status and code. The
// message is the error text itself; domain errors are user-safe.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, err.Error(), CodeUnauthorized)
	case errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrNationalIDTaken):
		WriteError(w, http.StatusConflict, err.Error(), CodeConflict)
	case errors.Is(err, domain.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, err.Error(), CodeInvalidState)
	case errors.Is(err, domain.ErrVoterNotApproved):
		WriteError(w, http.StatusForbidden, err.Error(), CodeNotApproved)
	case errors.Is(err, domain.ErrDuplicateVote):
		WriteError(w, http.StatusConflict, err.Error(), CodeDuplicateVote)
	case errors.Is(err, domain.ErrInvalidCandidate):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidCandidate)
	case errors.Is(err, domain.ErrOTPInvalid):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeOTPInvalid)
	case errors.Is(err, domain.ErrOTPRequired):
		WriteError(w, http.StatusUnauthorized, err.Error(), CodeOTPRequired)
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	default:
		// Anything unrecognized is an infrastructure failure; keep the
		// details out of the response body.
		logger.Error("Unhandled service error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", CodeInternalError)
	}
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}
