package errors

import (
	"errors"
	"fmt"
)

// DriverError is the base interface for all driver errors.
type DriverError interface {
	error
	IsDriverError() bool
}

// Compile-time verification that all error types implement DriverError.
var (
	_ DriverError = (*TransportError)(nil)
	_ DriverError = (*CommandError)(nil)
	_ DriverError = (*PortError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrReadTimeout indicates no frame arrived within the deadline.
	// This is the retryable "no data yet" condition, distinct from a
	// broken link.
	ErrReadTimeout = errors.New("read timeout")

	// ErrCommandPending indicates a second command was issued while one
	// is already awaiting its reply. The wire protocol has no request
	// IDs, so at most one command may be outstanding at a time.
	ErrCommandPending = errors.New("command already pending")

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.New("protocol controller stopped")

	// ErrDriverClosed indicates the driver has been closed and cannot be
	// reused.
	ErrDriverClosed = errors.New("driver closed")

	// ErrNotConnected indicates the transport is not open.
	ErrNotConnected = errors.New("transport not connected")
)

// TransportError indicates the serial link failed. It is fatal: the
// reader loop stops and every pending and future command call receives it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsDriverError implements DriverError.
func (e *TransportError) IsDriverError() bool { return true }

// CommandError indicates a command exhausted its retries without a
// matching reply, or the module answered with an error status.
type CommandError struct {
	Command  string
	Attempts int
	Code     int // module error code, -1 when not reported
	Err      error
}

func (e *CommandError) Error() string {
	switch {
	case e.Code >= 0:
		return fmt.Sprintf("command %q failed with module error %d", e.Command, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("command %q failed after %d attempts: %v", e.Command, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("command %q rejected by module", e.Command)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsDriverError implements DriverError.
func (e *CommandError) IsDriverError() bool { return true }

// PortError indicates the serial port could not be opened or configured.
type PortError struct {
	Port string
	Err  error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("serial port %s: %v", e.Port, e.Err)
}

func (e *PortError) Unwrap() error {
	return e.Err
}

// IsDriverError implements DriverError.
func (e *PortError) IsDriverError() bool { return true }
