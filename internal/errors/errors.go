package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/carelog/internal/logger"
)

// ErrQueued reports that a mutation was captured into the offline queue
// instead of being applied to the store.
var ErrQueued = stderrors.New("queued for sync")

// ErrForbidden reports that the acting user lacks the role an operation needs.
var ErrForbidden = stderrors.New("forbidden")

// ValidationError is a caller mistake: a missing occurrence, an invalid
// state transition or bad input. It is never retried.
type ValidationError struct {
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func Validation(op, format string, args ...interface{}) error {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError is a soft block raised when another task in the same
// conflict group was confirmed within the spacing window. Callers may retry
// with the override flag.
type ConflictError struct {
	ConflictingTaskName string
	RemainingMinutes    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Wait %d min - %s was just given", e.RemainingMinutes, e.ConflictingTaskName)
}

// TransientError wraps a store failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return stderrors.As(err, &v)
}

func IsTransient(err error) bool {
	var t *TransientError
	return stderrors.As(err, &t)
}

// AsConflict extracts a ConflictError from err's chain.
func AsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if stderrors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
