package frame

import "time"

// Frame is one delimiter-terminated segment of text read from the
// serial link. Frames are immutable once created.
type Frame struct {
	// Text is the frame content with the line delimiter and
	// surrounding whitespace stripped.
	Text string

	// ReceivedAt is when the frame was split off the stream.
	ReceivedAt time.Time
}

// Kind tags a classified frame.
type Kind int

const (
	// KindUnrecognized marks frames that match neither the reply nor
	// the async-payload shape. They are dropped, never surfaced as
	// errors.
	KindUnrecognized Kind = iota

	// KindCommandReply marks frames acknowledging a previously sent
	// command.
	KindCommandReply

	// KindAsyncPayload marks unsolicited data received over the radio
	// link.
	KindAsyncPayload
)

func (k Kind) String() string {
	switch k {
	case KindCommandReply:
		return "command_reply"
	case KindAsyncPayload:
		return "async_payload"
	default:
		return "unrecognized"
	}
}

// Status is the result token extracted from a command reply.
type Status int

const (
	// StatusOK indicates the module accepted the command
	// ("AT+CHANNEL=OK", or a bare "OK"/"SUCCESS" confirmation line).
	StatusOK Status = iota

	// StatusError indicates the module rejected the command, with an
	// optional numeric error code.
	StatusError

	// StatusData indicates a query reply carrying returned parameter
	// values ("AT+CHANNEL=0x0d,13").
	StatusData
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "data"
	}
}

// Reply is a parsed command acknowledgement.
type Reply struct {
	// Keyword is the echoed command keyword ("CHANNEL" for
	// "AT+CHANNEL=OK"). Empty for bare confirmation lines such as the
	// "SUCCESS" that follows a user-data send.
	Keyword string

	// Remote reports whether the reply echoed the remote-configuration
	// prefix.
	Remote bool

	Status Status

	// ErrorCode is the module error code for StatusError replies, -1
	// when the module did not report one.
	ErrorCode int

	// Params holds the returned parameter values of a query reply.
	Params []string
}

// AsyncMessage is a decoded unsolicited radio payload.
type AsyncMessage struct {
	// ID uniquely identifies the message for log correlation. It is
	// assigned on delivery, not by classification.
	ID string

	// Sender is the transmitter address, -1 when the framing carried
	// none.
	Sender int

	// Length is the payload byte count as embedded in the frame, or
	// the actual payload length when the framing carried no length
	// field.
	Length int

	Payload string

	// RSSI and SNR are the link quality figures trailing the payload.
	RSSI int
	SNR  int

	ReceivedAt time.Time
}

// Classified is a Frame plus its classification tag and, depending on
// the tag, the parsed reply or async payload.
type Classified struct {
	Frame Frame
	Kind  Kind

	// Reply is set when Kind is KindCommandReply.
	Reply *Reply

	// Async is set when Kind is KindAsyncPayload.
	Async *AsyncMessage
}
