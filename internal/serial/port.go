// Package serial adapts a physical serial port to the transport
// consumed by the protocol controller, using github.com/tarm/serial.
package serial

import (
	"log/slog"
	"sync"
	"time"

	tarm "github.com/tarm/serial"

	"github.com/aseckin/e52go/internal/errors"
)

// Config holds the port parameters. The module side defaults to
// 115200 8N1; the UART framing itself is configured on the module via
// AT+UART, not here.
type Config struct {
	// Name is the device path, e.g. "/dev/ttyUSB0" or "COM3".
	Name string

	// Baud is the line rate.
	Baud int

	// ReadTimeout bounds each blocking read. It paces the reader
	// loop's polling; keep it short.
	ReadTimeout time.Duration
}

// Port is an open serial port. Reads return zero bytes when the read
// timeout elapses with no data, which the frame reader treats as "no
// data yet" rather than a failure.
type Port struct {
	log  *slog.Logger
	name string

	mu     sync.Mutex
	port   *tarm.Port
	closed bool
}

// Open opens and configures the port.
func Open(log *slog.Logger, cfg Config) (*Port, error) {
	log = log.With("component", "serial_port")

	port, err := tarm.OpenPort(&tarm.Config{
		Name:        cfg.Name,
		Baud:        cfg.Baud,
		Parity:      tarm.ParityNone,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		log.Error("Failed to open serial port", "port", cfg.Name, "error", err)

		return nil, &errors.PortError{Port: cfg.Name, Err: err}
	}

	log.Info("Opened serial port", "port", cfg.Name, "baud", cfg.Baud)

	return &Port{log: log, name: cfg.Name, port: port}, nil
}

func (p *Port) Read(b []byte) (int, error) {
	port, err := p.get()
	if err != nil {
		return 0, err
	}

	return port.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	port, err := p.get()
	if err != nil {
		return 0, err
	}

	return port.Write(b)
}

// Flush discards buffered unread input.
func (p *Port) Flush() error {
	port, err := p.get()
	if err != nil {
		return err
	}

	return port.Flush()
}

// Close closes the port. Safe to call multiple times.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.log.Info("Closing serial port", "port", p.name)

	return p.port.Close()
}

func (p *Port) get() (*tarm.Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.ErrNotConnected
	}

	return p.port, nil
}
