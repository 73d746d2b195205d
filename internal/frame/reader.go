package frame

import (
	"bytes"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aseckin/e52go/internal/errors"
)

// readChunkSize is the transport read size. Serial traffic arrives in
// small bursts; anything larger just sits unused in the scratch buffer.
const readChunkSize = 256

// Reader pulls raw bytes from the transport and splits them into
// discrete line-delimited frames.
//
// Bytes without a trailing delimiter are buffered across calls, so a
// delimiter split across two transport reads is reassembled without
// dropping or duplicating anything, and frame order always matches
// byte order on the wire.
//
// Reader is not safe for concurrent use; the reader loop is its only
// caller.
type Reader struct {
	log     *slog.Logger
	r       io.Reader
	grammar Grammar

	buf   []byte  // partial line carried across reads
	queue []Frame // complete frames not yet returned
	chunk []byte
}

// NewReader creates a Reader on top of the transport's byte stream.
func NewReader(log *slog.Logger, r io.Reader, grammar Grammar) *Reader {
	return &Reader{
		log:     log.With("component", "frame_reader"),
		r:       r,
		grammar: grammar,
		chunk:   make([]byte, readChunkSize),
	}
}

// Next returns the next frame, reading from the transport as needed
// until the deadline.
//
// A transport read that yields no bytes within its own poll interval
// (serial read timeout, reported as zero bytes or io.EOF) is "no data
// yet", not a failure; Next keeps reading until the deadline and then
// returns errors.ErrReadTimeout. Any other transport error is
// surfaced as a TransportError so callers can tell a quiet link from a
// broken one.
func (r *Reader) Next(deadline time.Time) (Frame, error) {
	for {
		if len(r.queue) > 0 {
			f := r.queue[0]
			r.queue = r.queue[1:]

			return f, nil
		}

		if !time.Now().Before(deadline) {
			return Frame{}, errors.ErrReadTimeout
		}

		n, err := r.r.Read(r.chunk)
		if n > 0 {
			r.buf = append(r.buf, r.chunk[:n]...)
			r.split()

			continue
		}

		if err == nil || stderrors.Is(err, io.EOF) {
			// Zero-byte read: the port's own read timeout paces
			// this loop, try again until the deadline.
			continue
		}

		r.log.Debug("Transport read failed", "error", err)

		return Frame{}, &errors.TransportError{Op: "read", Err: err}
	}
}

// split moves every complete line out of the carry buffer into the
// frame queue, cutting glued segments apart on the way.
func (r *Reader) split() {
	now := time.Now()

	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			return
		}

		line := string(bytes.TrimRight(r.buf[:idx], "\r"))
		r.buf = r.buf[idx+1:]

		for _, seg := range r.grammar.segments(line) {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}

			r.queue = append(r.queue, Frame{Text: seg, ReceivedAt: now})
		}
	}
}
