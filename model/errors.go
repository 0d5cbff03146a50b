package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest          = "BAD_REQUEST"
	ErrNotFound            = "NOT_FOUND"
	ErrConflict            = "CONFLICT"
	ErrValidationError     = "VALIDATION_ERROR"
	ErrNetworkError        = "NETWORK_ERROR"
	ErrUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	ErrInternalError       = "INTERNAL_ERROR"
)

// Wizard-specific error codes.
const (
	ErrInvalidTransition = "INVALID_TRANSITION"
	ErrSessionNotFound   = "SESSION_NOT_FOUND"
	ErrSessionNotActive  = "SESSION_NOT_ACTIVE"
	ErrSessionExpired    = "SESSION_EXPIRED"
)

// ErrorEnvelope is the standard error response envelope returned by the BFF.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewNetworkError returns a NETWORK_ERROR describing a transport failure
// against the upstream collection API.
func NewNetworkError(msg string) *ErrorEnvelope {
	if msg == "" {
		msg = "The collection service could not be reached"
	}
	return &ErrorEnvelope{Code: ErrNetworkError, Message: msg}
}

// NewUpstreamUnavailableError returns an UPSTREAM_UNAVAILABLE error. It is
// reported when the circuit breaker rejects a call without attempting it.
func NewUpstreamUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUpstreamUnavailable,
		Message: "The collection service is temporarily unavailable",
	}
}

// NewUpstreamTimeoutError returns an UPSTREAM_TIMEOUT error.
func NewUpstreamTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUpstreamTimeout,
		Message: "The collection service did not respond in time",
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewInvalidTransitionError returns an INVALID_TRANSITION error.
func NewInvalidTransitionError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidTransition, Message: msg}
}

// NewSessionNotFoundError returns a SESSION_NOT_FOUND error.
func NewSessionNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrSessionNotFound, Message: msg}
}

// NewSessionNotActiveError returns a SESSION_NOT_ACTIVE error.
func NewSessionNotActiveError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrSessionNotActive, Message: msg}
}

// NewSessionExpiredError returns a SESSION_EXPIRED error.
func NewSessionExpiredError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrSessionExpired, Message: msg}
}
