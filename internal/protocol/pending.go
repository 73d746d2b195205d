package protocol

import (
	"sync"
	"time"

	"github.com/aseckin/e52go/internal/errors"
	"github.com/aseckin/e52go/internal/frame"
)

// Predicate decides whether a classified reply belongs to a specific
// outstanding command.
type Predicate func(*frame.Reply) bool

// pendingCommand is the one in-flight command awaiting its reply. It
// is owned by the dispatcher for the duration of a single attempt and
// discarded when the attempt returns.
type pendingCommand struct {
	command string
	match   Predicate
	reply   chan *frame.Classified // buffered, cap 1
	begun   time.Time
}

// slot is the single-slot rendezvous between the dispatcher and the
// reader loop. Occupying it while occupied fails: the wire protocol
// offers no way to tell interleaved replies apart, so a second
// outstanding command could only misattribute responses.
type slot struct {
	mu  sync.Mutex
	cur *pendingCommand
}

// begin occupies the slot. It fails with ErrCommandPending while
// another command is outstanding.
func (s *slot) begin(command string, match Predicate) (*pendingCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		return nil, errors.ErrCommandPending
	}

	p := &pendingCommand{
		command: command,
		match:   match,
		reply:   make(chan *frame.Classified, 1),
		begun:   time.Now(),
	}
	s.cur = p

	return p, nil
}

// tryResolve fulfils the pending command if one is waiting and the
// predicate matches. It reports whether the frame was consumed. Safe
// to call concurrently with release and the dispatcher's wait.
func (s *slot) tryResolve(cf *frame.Classified) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || cf.Reply == nil || !s.cur.match(cf.Reply) {
		return false
	}

	// The channel is buffered and we own the only send for this
	// pending command, so this never blocks the reader.
	s.cur.reply <- cf
	s.cur = nil

	return true
}

// release frees the slot if p still occupies it. A reply that raced in
// just before release stays queued on p's channel and is discarded
// with it; it can never leak into a later command's wait.
func (s *slot) release(p *pendingCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == p {
		s.cur = nil
	}
}
