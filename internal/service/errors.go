package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound      = errors.New("no account for this email")
	ErrAccountDisabled   = errors.New("account is disabled")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrUnauthorized      = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrWeakPassword      = errors.New("password does not meet policy requirements")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrTooManyAttempts   = errors.New("too many attempts")
	ErrStorageDisabled   = errors.New("object storage is disabled")
)

// ValidationError reports a rejected input. Field is empty for
// message-level failures.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RetryAfterError carries the cooldown that caused ErrTooManyAttempts.
type RetryAfterError struct {
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%s, retry in %s", ErrTooManyAttempts, e.RetryAfter.Round(time.Second))
}

func (e *RetryAfterError) Unwrap() error { return ErrTooManyAttempts }

func tooManyAttempts(wait time.Duration) error {
	return &RetryAfterError{RetryAfter: wait}
}

// forbidden wraps ErrForbidden with the rule that denied the action.
func forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}
