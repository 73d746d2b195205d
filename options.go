package e52go

import (
	"io"
	"log/slog"
	"time"

	"github.com/aseckin/e52go/internal/frame"
)

// Transport is the byte-stream abstraction the driver talks through.
// The default implementation is the serial port opened by Connect;
// inject a custom transport for testing or tunnelled links.
//
// Reads must block up to the transport's own read timeout and report
// "no data yet" as a zero-byte read (or io.EOF); any other error is
// treated as a broken link. Writes are issued by a single goroutine
// at a time.
type Transport interface {
	io.Reader
	io.Writer
	Close() error
}

// Options configures a Driver. Zero values select the defaults noted
// on the With functions.
type Options struct {
	Logger         *slog.Logger
	BaudRate       int
	ReadTimeout    time.Duration
	CommandTimeout time.Duration
	SendTimeout    time.Duration
	Retries        int
	Grammar        *frame.Grammar
	Transport      Transport
}

// Option configures the driver using the functional options pattern.
type Option func(*Options)

// Connection defaults, matching the module's factory UART settings
// and the timings proven against real hardware.
const (
	defaultBaudRate       = 115200
	defaultReadTimeout    = 200 * time.Millisecond
	defaultCommandTimeout = 2 * time.Second
	defaultSendTimeout    = 5 * time.Second
	defaultRetries        = 3
)

func applyOptions(opts []Option) *Options {
	options := &Options{
		BaudRate:       defaultBaudRate,
		ReadTimeout:    defaultReadTimeout,
		CommandTimeout: defaultCommandTimeout,
		SendTimeout:    defaultSendTimeout,
		Retries:        defaultRetries,
	}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithBaudRate sets the serial line rate. Defaults to 115200, the
// module's factory setting.
func WithBaudRate(baud int) Option {
	return func(o *Options) {
		o.BaudRate = baud
	}
}

// WithReadTimeout bounds each blocking serial read. It paces the
// background reader's polling and thereby how quickly Close is
// observed. Defaults to 200ms.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = d
	}
}

// WithCommandTimeout sets the per-attempt reply deadline for AT
// commands. Defaults to 2s.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CommandTimeout = d
	}
}

// WithSendTimeout sets the confirmation deadline for user-data sends,
// which wait on the radio round trip and need more slack than
// configuration commands. Defaults to 5s.
func WithSendTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.SendTimeout = d
	}
}

// WithRetries sets how many times a timed-out command is re-sent
// before failing; retries+1 attempts happen in total. Defaults to 3.
// User-data sends are never retried, a duplicate would be
// retransmitted over the air.
func WithRetries(n int) Option {
	return func(o *Options) {
		o.Retries = n
	}
}

// WithGrammar overrides the classifier grammar for firmware variants
// whose reply or data framing differs from the default.
func WithGrammar(g Grammar) Option {
	return func(o *Options) {
		o.Grammar = &g
	}
}

// WithTransport injects a custom transport. Connect then skips opening
// a serial port and the port-related options are ignored.
func WithTransport(t Transport) Option {
	return func(o *Options) {
		o.Transport = t
	}
}
