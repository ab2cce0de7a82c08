package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with an HTTP status code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so sentinel comparisons survive wrapping
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.Code == appErr.Code
	}
	return false
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors

// BadRequest creates a 400 error
func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

// Unauthorized creates a 401 error
func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHENTICATED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 error
func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     err,
	}
}

// Domain-specific errors

var (
	// ErrRouteUnavailable signals the routing backend failed or returned no route.
	// The derived booking is cleared rather than left stale.
	ErrRouteUnavailable = NewAppError("ROUTE_UNAVAILABLE", "Route unavailable", http.StatusServiceUnavailable, nil)

	// ErrInvalidTransition signals a ride status change not reachable from the
	// current state. The ride is left unchanged.
	ErrInvalidTransition = NewAppError("INVALID_TRANSITION", "Invalid ride status transition", http.StatusConflict, nil)

	// ErrIncompleteBooking signals confirm was attempted without a derived booking.
	ErrIncompleteBooking = NewAppError("INCOMPLETE_BOOKING", "Booking is incomplete", http.StatusBadRequest, nil)

	// ErrSendFailed marks a chat message whose network send failed. The message
	// stays visible and retryable.
	ErrSendFailed = NewAppError("SEND_FAILED", "Message send failed", http.StatusServiceUnavailable, nil)

	// ErrUnauthenticated is the only error escalated past the core boundary.
	// The owning session reacts by forcing re-authentication.
	ErrUnauthenticated = Unauthorized("Session is not authenticated", nil)

	// ErrActiveRideExists rejects a second ride request while one is in flight.
	ErrActiveRideExists = NewAppError("ACTIVE_RIDE_EXISTS", "An active ride already exists", http.StatusConflict, nil)

	ErrNoActiveRide       = NewAppError("NO_ACTIVE_RIDE", "No active ride", http.StatusNotFound, nil)
	ErrMessageNotFound    = NewAppError("MESSAGE_NOT_FOUND", "Message not found", http.StatusNotFound, nil)
	ErrInvalidCoordinates = BadRequest("Invalid coordinates", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// IsUnauthenticated reports whether err carries a 401 anywhere in its chain
func IsUnauthenticated(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status == http.StatusUnauthorized
	}
	return false
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
