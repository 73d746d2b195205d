package e52go

import "github.com/aseckin/e52go/internal/errors"

// Re-export error types from internal package

// TransportError indicates the serial link failed. It is fatal and is
// surfaced to every pending and future command call.
type TransportError = errors.TransportError

// CommandError indicates a command exhausted its retries or was
// rejected by the module.
type CommandError = errors.CommandError

// PortError indicates the serial port could not be opened.
type PortError = errors.PortError

// DriverError is the base interface for all driver errors.
type DriverError = errors.DriverError

// Re-export sentinel errors from internal package.
var (
	// ErrReadTimeout indicates no reply arrived within the deadline.
	ErrReadTimeout = errors.ErrReadTimeout

	// ErrCommandPending indicates a second command was issued while
	// one is already in flight.
	ErrCommandPending = errors.ErrCommandPending

	// ErrControllerStopped indicates the protocol engine has stopped.
	ErrControllerStopped = errors.ErrControllerStopped

	// ErrDriverClosed indicates the driver has been closed.
	ErrDriverClosed = errors.ErrDriverClosed

	// ErrNotConnected indicates the transport is not open.
	ErrNotConnected = errors.ErrNotConnected
)
