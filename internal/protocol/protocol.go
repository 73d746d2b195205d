package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aseckin/e52go/internal/errors"
	"github.com/aseckin/e52go/internal/frame"
)

const (
	// defaultPollInterval bounds each blocking read so the reader loop
	// stays responsive to stop requests.
	defaultPollInterval = 200 * time.Millisecond

	// asyncBufferSize is the bounded handoff between the reader loop
	// and the async consumer. A slow consumer costs dropped messages,
	// never a stalled reader.
	asyncBufferSize = 100
)

// Transport is the byte stream the controller drives. Reads block up
// to the port's own read timeout; writes are issued only by the
// dispatcher, which serializes them.
type Transport interface {
	io.Reader
	io.Writer
}

// inputFlusher is implemented by transports that can discard unread
// input, e.g. a serial port. Stale bytes left over from before a
// command are flushed so they cannot be mistaken for its reply.
type inputFlusher interface {
	Flush() error
}

// Controller ties the frame reader, the classifier, the pending
// command slot and the async handoff together.
//
// Two concurrent activities share the transport: the background reader
// loop (the sole reader) and SendCommand callers (the sole writers).
// They coordinate only through the pending slot; neither ever blocks
// the other.
type Controller struct {
	log       *slog.Logger
	transport Transport
	reader    *frame.Reader
	grammar   frame.Grammar

	pollInterval time.Duration

	// dispatchMu queues concurrent SendCommand callers; the slot
	// itself guards against misuse with ErrCommandPending.
	dispatchMu sync.Mutex

	slot slot

	// Async radio payloads forwarded to consumers.
	messages chan frame.AsyncMessage

	// Fatal error handling - stores error and broadcasts via done.
	errMu    sync.RWMutex
	fatalErr error

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewController creates a controller on top of a connected transport.
// pollInterval bounds each read poll; zero selects the default.
func NewController(
	log *slog.Logger,
	transport Transport,
	grammar frame.Grammar,
	pollInterval time.Duration,
) *Controller {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Controller{
		log:          log.With("component", "protocol"),
		transport:    transport,
		reader:       frame.NewReader(log, transport, grammar),
		grammar:      grammar,
		pollInterval: pollInterval,
		messages:     make(chan frame.AsyncMessage, asyncBufferSize),
		done:         make(chan struct{}),
	}
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by
// closing done. The first error wins.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal transport error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start launches the background reader loop. It must be called before
// SendCommand.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	c.wg.Add(1)

	go c.readLoop(ctx)

	return nil
}

// Stop shuts the controller down: the reader loop exits at the top of
// its next iteration and every pending waiter is released. Safe to
// call multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.closeDone()
	c.wg.Wait()
	c.log.Debug("Protocol controller stopped")
}

// Messages returns the channel of unsolicited radio payloads.
//
// The controller is the sole reader of the transport: it consumes
// every frame, resolves command replies internally and forwards radio
// payloads here. The channel is closed when the controller stops; use
// Done and FatalError to detect and retrieve transport failures.
func (c *Controller) Messages() <-chan frame.AsyncMessage {
	return c.messages
}

// SendCommand writes a command line and waits for the module's reply.
//
// retries is the number of re-sends after the initial attempt, so
// retries+1 writes happen before giving up. Each attempt occupies the
// pending slot, sends the full command text (the module cannot resume
// a partial command) and waits up to perAttempt for a reply whose
// echoed keyword matches. Exhausted retries surface as a CommandError
// carrying the attempt count.
//
// Concurrent callers queue; only one command is ever on the wire.
// Raw user-data sends (no command prefix) are correlated with the
// module's bare confirmation line instead of a keyword echo.
func (c *Controller) SendCommand(
	ctx context.Context,
	text string,
	retries int,
	perAttempt time.Duration,
) (*frame.Reply, error) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	match := c.matchFor(text)
	attempts := retries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		pending, err := c.slot.begin(text, match)
		if err != nil {
			return nil, err
		}

		if attempt == 1 {
			// Drop stale unread input so leftovers from an earlier
			// exchange cannot be taken for this command's reply.
			if fl, ok := c.transport.(inputFlusher); ok {
				if err := fl.Flush(); err != nil {
					c.log.Debug("Input flush failed", "error", err)
				}
			}
		}

		c.log.Debug("Sending command", "command", text, "attempt", attempt)

		if err := c.write(text); err != nil {
			c.slot.release(pending)
			c.SetFatalError(err)

			return nil, err
		}

		reply, err := c.await(ctx, pending, perAttempt)
		if err == nil {
			return reply, nil
		}

		if !stderrors.Is(err, errors.ErrReadTimeout) {
			return nil, err
		}

		c.log.Debug("Command attempt timed out", "command", text, "attempt", attempt)
	}

	c.log.Warn("Command failed, retries exhausted", "command", text, "attempts", attempts)

	return nil, &errors.CommandError{
		Command:  text,
		Attempts: attempts,
		Code:     -1,
		Err:      errors.ErrReadTimeout,
	}
}

// write sends one CRLF-terminated line to the transport. A write
// failure means the link is broken, not a retryable condition.
func (c *Controller) write(text string) error {
	wire := text
	if !strings.HasSuffix(wire, "\r\n") {
		wire += "\r\n"
	}

	if _, err := c.transport.Write([]byte(wire)); err != nil {
		c.log.Error("Transport write failed", "error", err)

		return &errors.TransportError{Op: "write", Err: err}
	}

	return nil
}

// await blocks the calling goroutine, never the reader, until the
// pending command resolves or the deadline passes. The slot is free
// when await returns, whatever the outcome.
func (c *Controller) await(
	ctx context.Context,
	pending *pendingCommand,
	timeout time.Duration,
) (*frame.Reply, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case cf := <-pending.reply:
		return cf.Reply, nil

	case <-timer.C:
		c.slot.release(pending)

		return nil, fmt.Errorf("awaiting %q: %w", pending.command, errors.ErrReadTimeout)

	case <-c.done:
		c.slot.release(pending)

		if err := c.FatalError(); err != nil {
			return nil, err
		}

		return nil, errors.ErrControllerStopped

	case <-ctx.Done():
		c.slot.release(pending)

		return nil, ctx.Err()
	}
}

// matchFor builds the correlation predicate for a command line:
// prefixed commands match on the echoed keyword and remote flag, raw
// payload sends match the bare confirmation line.
func (c *Controller) matchFor(text string) Predicate {
	keyword, remote, prefixed := c.commandKeyword(text)
	if !prefixed {
		return func(r *frame.Reply) bool {
			return r.Keyword == ""
		}
	}

	return func(r *frame.Reply) bool {
		return r.Remote == remote && strings.EqualFold(r.Keyword, keyword)
	}
}

// commandKeyword extracts the keyword of a prefixed command line
// ("AT+CHANNEL=13,1" -> "CHANNEL").
func (c *Controller) commandKeyword(text string) (keyword string, remote, prefixed bool) {
	body := text

	switch {
	case c.grammar.RemotePrefix != "" && strings.HasPrefix(text, c.grammar.RemotePrefix):
		body = text[len(c.grammar.RemotePrefix):]
		remote = true

	case c.grammar.CommandPrefix != "" && strings.HasPrefix(text, c.grammar.CommandPrefix):
		body = text[len(c.grammar.CommandPrefix):]

	default:
		return "", false, false
	}

	keyword, _, _ = strings.Cut(body, "=")

	return strings.TrimSpace(keyword), remote, true
}

// readLoop is the background consumer of the transport. Each frame is
// classified and routed: replies resolve the pending command, radio
// payloads go to the async channel, everything else is dropped. A
// transport failure stops the loop and wakes every waiter.
func (c *Controller) readLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.messages)
	defer c.log.Debug("Reader loop stopped")

	for {
		select {
		case <-c.done:
			return

		case <-ctx.Done():
			c.SetFatalError(ctx.Err())

			return

		default:
		}

		fr, err := c.reader.Next(time.Now().Add(c.pollInterval))
		if err != nil {
			if stderrors.Is(err, errors.ErrReadTimeout) {
				// No data in this poll window.
				continue
			}

			c.log.Error("Transport failure in reader loop", "error", err)
			c.SetFatalError(err)

			return
		}

		c.route(fr)
	}
}

// route classifies one frame and hands it to its consumer.
func (c *Controller) route(fr frame.Frame) {
	cf := frame.Classify(c.grammar, fr)

	switch cf.Kind {
	case frame.KindCommandReply:
		if !c.slot.tryResolve(&cf) {
			// No command pending, or a stray reply that outlived its
			// command's deadline. Dropping it is deliberate slack for
			// a slow module; it must not corrupt the next wait.
			c.log.Debug("Dropping unmatched command reply", "frame", fr.Text)
		}

	case frame.KindAsyncPayload:
		msg := *cf.Async
		msg.ID = ulid.Make().String()

		select {
		case c.messages <- msg:
		default:
			c.log.Warn("Async buffer full, dropping radio message",
				"id", msg.ID, "sender", msg.Sender)
		}

	case frame.KindUnrecognized:
		c.log.Debug("Dropping unrecognized frame", "frame", fr.Text)
	}
}
