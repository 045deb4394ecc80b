package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is; the API layer maps each one to a
// status code.
var (
	// ErrTaskNotFound indicates the task does not exist, or exists but is
	// hidden from the caller when forbidden tasks are reported as missing.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAttachmentNotFound indicates no attachment on the task matches the
	// requested id or display name.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrForbidden indicates the task exists but the caller neither owns it
	// nor holds the admin role.
	ErrForbidden = errors.New("not permitted to access this task")

	// ErrPayloadTooLarge indicates an uploaded file exceeds the size ceiling.
	ErrPayloadTooLarge = errors.New("uploaded file exceeds the maximum size")

	// ErrPartialFailure indicates a batch where some items succeeded and
	// some did not. The accompanying result describes each item.
	ErrPartialFailure = errors.New("batch partially failed")

	// ErrBlobMissing indicates the attachment record exists but its file is
	// gone from disk.
	ErrBlobMissing = errors.New("attachment file is missing from storage")

	// ErrInvalidCredentials indicates an unknown username or wrong password.
	// Both cases share one error so callers cannot probe for usernames.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// TaskServiceError is a custom error type for task service errors.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError. Service sentinels are
// returned unwrapped so handlers see them directly.
func NewTaskServiceError(operation, message string, err error) error {
	if isServiceSentinel(err) {
		return err
	}
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

var serviceSentinels = []error{
	ErrTaskNotFound, ErrAttachmentNotFound, ErrForbidden,
	ErrPayloadTooLarge, ErrPartialFailure, ErrBlobMissing, ErrInvalidCredentials,
}

func isServiceSentinel(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range serviceSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// UserServiceError is a custom error type for user service errors.
type UserServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for UserServiceError.
func (e *UserServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("user service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("user service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *UserServiceError) Unwrap() error {
	return e.Err
}

// NewUserServiceError creates a new UserServiceError.
func NewUserServiceError(operation, message string, err error) *UserServiceError {
	return &UserServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
