package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of application error.
type ErrorCode string

const (
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"

	// Group-join failures that need operator or traveler action before a
	// retry can succeed. The outcome is recorded on the registration and
	// the poller will not deliver a second invite for them.
	ErrCodeMissingIdentity   ErrorCode = "MISSING_TELEGRAM_ID"
	ErrCodeInvalidIdentity   ErrorCode = "INVALID_TELEGRAM_ID"
	ErrCodeNoGroupConfigured ErrorCode = "NO_GROUP_CONFIGURED"
	ErrCodeInvalidChatID     ErrorCode = "INVALID_CHAT_ID"
	ErrCodeUnreachable       ErrorCode = "TRAVELER_UNREACHABLE"

	// Upstream failures; nothing registration-specific is mutated, so the
	// next cycle retries naturally.
	ErrCodeBackendAPI  ErrorCode = "BACKEND_API_ERROR"
	ErrCodeTelegramAPI ErrorCode = "TELEGRAM_API_ERROR"
)

// AppError is a typed application error carrying a user-safe message.
// Message may be shown to a traveler; Cause never is.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether the error will not resolve without operator
// or traveler action.
func (e *AppError) IsPermanent() bool {
	switch e.Code {
	case ErrCodeMissingIdentity, ErrCodeInvalidIdentity, ErrCodeNoGroupConfigured,
		ErrCodeInvalidChatID, ErrCodeUnreachable:
		return true
	}
	return false
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a cause to a new application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// AsAppError extracts an AppError from anywhere in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
