// Package errors provides centralized error definitions and error handling utilities
// for sleepgate. It defines the sentinel errors returned by the gate, mailbox and
// session layers, a typed [GateError] carrying operation context, classification
// helpers, and the translation of errors into the errno values a file-like shell
// reports to its callers.
//
// # Error Kinds
//
//   - ErrBusy: a non-blocking acquire found the gate held (retryable)
//   - ErrCancelled: a blocking acquire was abandoned before it succeeded (retryable)
//   - ErrNotHeld / ErrNotOwner: release or mailbox use without holding the gate
//     (programming error, never silently ignored)
//   - ErrClosed: the gate has been torn down
//
// Truncated writes are not errors; they are reported through the returned byte count.
//
// # Usage
//
//	err := errors.NewGateError("acquire", errors.ErrBusy).WithOwner("s-1")
//	if errors.Is(err, errors.ErrBusy) { ... }
//
//	if errno, ok := errors.Errno(err); ok {
//	    fmt.Println(errno) // resource temporarily unavailable
//	}
package errors

import (
	"errors"
	"fmt"
	"syscall"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for expected outcomes such as contention.
	SeverityInfo
	// SeverityWarning is for caller misuse that does not damage shared state.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Gate-related sentinel errors
var (
	// ErrBusy indicates a non-blocking acquire found the gate already held.
	ErrBusy = New("gate is busy")
	// ErrCancelled indicates a blocking acquire was interrupted before it succeeded.
	ErrCancelled = New("acquire cancelled")
	// ErrNotHeld indicates a release or mailbox operation without holding the gate.
	ErrNotHeld = New("gate is not held")
	// ErrNotOwner indicates a release by a caller other than the current holder.
	ErrNotOwner = New("caller does not hold the gate")
	// ErrClosed indicates the gate has been torn down.
	ErrClosed = New("gate is closed")
)

// Session-related sentinel errors
var (
	// ErrSessionClosed indicates an operation on a session that already released the gate.
	ErrSessionClosed = New("session is closed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// GateError
// -----------------------------------------------------------------------------

// GateError wraps a sentinel with the operation and caller that produced it.
//
// Example:
//
//	err := errors.NewGateError("release", errors.ErrNotOwner).WithOwner("s-2")
//	fmt.Println(err) // "gate release [owner=s-2]: caller does not hold the gate"
type GateError struct {
	Op    string
	Owner string
	cause error
}

// NewGateError creates a GateError for the given operation.
func NewGateError(op string, cause error) *GateError {
	return &GateError{Op: op, cause: cause}
}

// WithOwner adds the caller identity to the error context.
func (e *GateError) WithOwner(owner string) *GateError {
	e.Owner = owner
	return e
}

// Error returns the formatted error message.
func (e *GateError) Error() string {
	prefix := "gate " + e.Op
	if e.Owner != "" {
		prefix = fmt.Sprintf("%s [owner=%s]", prefix, e.Owner)
	}
	if e.cause == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, e.cause)
}

// Unwrap returns the underlying error.
func (e *GateError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity derived from the wrapped sentinel.
func (e *GateError) Severity() Severity {
	return GetSeverity(e.cause)
}

// IsRetryable returns whether the operation may succeed if attempted again.
func (e *GateError) IsRetryable() bool {
	return IsRetryable(e.cause)
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error is transient and the caller may try again.
// Busy and Cancelled are retryable unless the gate itself has been closed.
func IsRetryable(err error) bool {
	if err == nil || Is(err, ErrClosed) {
		return false
	}
	return Is(err, ErrBusy) || Is(err, ErrCancelled)
}

// IsProgrammingError reports whether err signals caller misuse of the gate.
func IsProgrammingError(err error) bool {
	return Is(err, ErrNotHeld) || Is(err, ErrNotOwner) || Is(err, ErrSessionClosed)
}

// GetSeverity returns the severity level of an error.
func GetSeverity(err error) Severity {
	switch {
	case err == nil:
		return SeverityDebug
	case Is(err, ErrBusy), Is(err, ErrCancelled):
		return SeverityInfo
	case IsProgrammingError(err):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Errno translates a gate error into the errno a file-like shell reports.
// A waiter force-cancelled by teardown reports EINTR; an acquire attempted
// after teardown reports ENODEV.
// The second return value is false when err has no errno equivalent.
func Errno(err error) (syscall.Errno, bool) {
	switch {
	case err == nil:
		return 0, false
	case Is(err, ErrBusy):
		return syscall.EAGAIN, true
	case Is(err, ErrCancelled):
		return syscall.EINTR, true
	case Is(err, ErrClosed):
		return syscall.ENODEV, true
	case IsProgrammingError(err):
		return syscall.EBADF, true
	case Is(err, ErrInvalidInput):
		return syscall.EINVAL, true
	default:
		return 0, false
	}
}

// ErrnoName returns the symbolic name of the errno for err (e.g. "EAGAIN"),
// or "EIO" when err has no errno equivalent.
func ErrnoName(err error) string {
	errno, ok := Errno(err)
	if !ok {
		return "EIO"
	}
	switch errno {
	case syscall.EAGAIN:
		return "EAGAIN"
	case syscall.EINTR:
		return "EINTR"
	case syscall.EBADF:
		return "EBADF"
	case syscall.ENODEV:
		return "ENODEV"
	case syscall.EINVAL:
		return "EINVAL"
	default:
		return "EIO"
	}
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with a context message.
// Returns nil if err is nil.
//
// Example:
//
//	err := errors.Wrap(baseErr, "open device")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
