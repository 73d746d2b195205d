package e52go

import "github.com/aseckin/e52go/internal/frame"

// Re-export wire-level types from the internal frame package.

// Reply is a parsed command acknowledgement from the module.
type Reply = frame.Reply

// AsyncMessage is a decoded unsolicited radio payload.
type AsyncMessage = frame.AsyncMessage

// Status is the result token extracted from a command reply.
type Status = frame.Status

// Reply status values.
const (
	StatusOK    = frame.StatusOK
	StatusError = frame.StatusError
	StatusData  = frame.StatusData
)

// Grammar describes the module's reply and async-payload shapes. The
// default covers the E52 wire traces; adjust it for firmware variants
// via WithGrammar.
type Grammar = frame.Grammar

// LengthPolicy controls how the async length field is interpreted.
type LengthPolicy = frame.LengthPolicy

// Async length-field policies.
const (
	LengthAuto     = frame.LengthAuto
	LengthRequired = frame.LengthRequired
	LengthNone     = frame.LengthNone
)

// DefaultGrammar returns the grammar of the E52-series modules.
func DefaultGrammar() Grammar {
	return frame.DefaultGrammar()
}
