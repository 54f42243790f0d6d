// Package errors provides the standardized error taxonomy shared by the funnel components.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Local input / flow errors
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeGuardRejected     ErrorCode = "GUARD_REJECTED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeLocationLocked    ErrorCode = "LOCATION_LOCKED"

	// Availability conflicts
	ErrCodeSlotUnavailable  ErrorCode = "SLOT_UNAVAILABLE"
	ErrCodeLeadTimeViolated ErrorCode = "LEAD_TIME_VIOLATED"

	// Infrastructure
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeProposalFailed   ErrorCode = "PROPOSAL_FAILED"

	// Lead submission categories
	ErrCodeLeadValidation   ErrorCode = "LEAD_VALIDATION"
	ErrCodeLeadDuplicate    ErrorCode = "LEAD_DUPLICATE"
	ErrCodeLeadServerError  ErrorCode = "LEAD_SERVER_ERROR"
	ErrCodeLeadNetworkError ErrorCode = "LEAD_NETWORK_ERROR"
	ErrCodeLeadUnknown      ErrorCode = "LEAD_UNKNOWN"

	ErrCodeBookingFailed ErrorCode = "BOOKING_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

func NewValidationFailedError(field, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewGuardRejectedError reports a transition whose preconditions are not met yet.
func NewGuardRejectedError(event, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGuardRejected,
		Message:   "Step requirements not met",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"event": event},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidTransitionError(event, state string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Action not available at this step",
		Details:   fmt.Sprintf("event %q is not valid in state %q", event, state),
		Retryable: false,
		Metadata:  map[string]interface{}{"event": event, "state": state},
		Timestamp: time.Now().UTC(),
	}
}

func NewLocationLockedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLocationLocked,
		Message:   "Address already confirmed",
		Details:   "go back to the address step to change it",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSlotUnavailableError(slot string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSlotUnavailable,
		Message:   "This time is no longer available. Please choose an available time at least 4 hours from now.",
		Details:   fmt.Sprintf("slot: %s", slot),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewLeadTimeViolatedError(slot string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadTimeViolated,
		Message:   "Please choose an available time at least 4 hours from now.",
		Details:   fmt.Sprintf("slot: %s", slot),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Session storage unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewProposalFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProposalFailed,
		Message:   "Proposal service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewBookingFailedError(message string) *StandardError {
	if strings.TrimSpace(message) == "" {
		message = "Failed to book your call. Please try again."
	}
	return &StandardError{
		Code:      ErrCodeBookingFailed,
		Message:   message,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLeadError builds one of the lead submission category errors.
func NewLeadError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// As extracts a StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always returns a StandardError, wrapping unexpected errors.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error, please try again",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeLeadValidation:
		return "validation"
	case ErrCodeSlotUnavailable, ErrCodeLeadTimeViolated:
		return "availability"
	case ErrCodeLeadDuplicate:
		return "duplicate"
	case ErrCodeLeadServerError, ErrCodeProposalFailed, ErrCodeBookingFailed:
		return "server"
	case ErrCodeLeadNetworkError:
		return "network"
	case ErrCodeGuardRejected, ErrCodeInvalidTransition, ErrCodeLocationLocked:
		return "flow"
	case ErrCodeStoreUnavailable:
		return "storage"
	default:
		return "unknown"
	}
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	stdErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch GetErrorCategory(stdErr.Code) {
	case "validation":
		return http.StatusBadRequest
	case "availability", "duplicate", "flow":
		return http.StatusConflict
	case "network":
		return http.StatusBadGateway
	case "server":
		return http.StatusBadGateway
	case "storage":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
