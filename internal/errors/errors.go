// Package errors provides error code definitions shared across the
// offline core and surfaced to the UI layer.
package errors

import "fmt"

// ErrorCode represents a unique, stable error code.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrStorage    ErrorCode = "STORAGE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Queue errors
	ErrQueueWrite       ErrorCode = "QUEUE_WRITE_FAILED"
	ErrOperationMissing ErrorCode = "OPERATION_NOT_FOUND"

	// Sync errors
	ErrSyncFailed        ErrorCode = "SYNC_FAILED"
	ErrUnsupportedAction ErrorCode = "UNSUPPORTED_ACTION"
	ErrRemoteNetwork     ErrorCode = "REMOTE_NETWORK_ERROR"
	ErrRemoteRejected    ErrorCode = "REMOTE_REJECTED"

	// Session errors
	ErrOfflineDenied ErrorCode = "OFFLINE_ACCESS_DENIED"
	ErrSessionWrite  ErrorCode = "SESSION_WRITE_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
