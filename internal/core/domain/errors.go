package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers as distinct outcomes
var (
	ErrValidation      = errors.New("validation error")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrConflict        = errors.New("conflict")
	ErrAuthentication  = errors.New("invalid credentials")
	ErrNotFound        = errors.New("not found")
	ErrNoActiveRequest = errors.New("no active reset request")
	ErrExpired         = errors.New("otp expired")
	ErrDelivery        = errors.New("notification delivery failed")
	ErrUnavailable     = errors.New("store unavailable")
)

// Error carries a caller-facing message and wraps one of the kinds above
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// Message returns the caller-facing message of err, or fallback
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return fallback
}

// Validation builds an ErrValidation error
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NotAuthorized builds an ErrNotAuthorized error
func NotAuthorized(msg string) error {
	return &Error{Kind: ErrNotAuthorized, Message: msg}
}

// Conflict builds an ErrConflict error
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Authentication builds an ErrAuthentication error. reason stays internal.
func Authentication(reason string) error {
	return &Error{Kind: ErrAuthentication, Message: reason}
}

// NotFound builds an ErrNotFound error
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// NoActiveRequest is returned when no reset ticket exists for a user
func NoActiveRequest() error {
	return &Error{Kind: ErrNoActiveRequest, Message: "no active reset request"}
}

// Expired is returned when a reset ticket is past its deadline
func Expired() error {
	return &Error{Kind: ErrExpired, Message: "OTP expired"}
}

// Delivery wraps a notification failure
func Delivery(msg string, cause error) error {
	return &Error{Kind: ErrDelivery, Message: msg, Cause: cause}
}

// Unavailable wraps a store failure
func Unavailable(cause error) error {
	return &Error{Kind: ErrUnavailable, Message: "store unavailable", Cause: cause}
}
