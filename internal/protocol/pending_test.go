package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aseckin/e52go/internal/errors"
	"github.com/aseckin/e52go/internal/frame"
)

func matchKeyword(keyword string) Predicate {
	return func(r *frame.Reply) bool {
		return r.Keyword == keyword
	}
}

func classifiedReply(keyword string) *frame.Classified {
	return &frame.Classified{
		Frame: frame.Frame{Text: "AT+" + keyword + "=OK", ReceivedAt: time.Now()},
		Kind:  frame.KindCommandReply,
		Reply: &frame.Reply{Keyword: keyword, Status: frame.StatusOK, ErrorCode: -1},
	}
}

func TestSlot_BeginWhileOccupied(t *testing.T) {
	var s slot

	p, err := s.begin("AT+CHANNEL=13,1", matchKeyword("CHANNEL"))
	require.NoError(t, err)
	require.NotNil(t, p)

	_, err = s.begin("AT+POWER=22,1", matchKeyword("POWER"))
	require.ErrorIs(t, err, errors.ErrCommandPending)

	// Releasing frees the slot for the next command.
	s.release(p)

	_, err = s.begin("AT+POWER=22,1", matchKeyword("POWER"))
	require.NoError(t, err)
}

func TestSlot_TryResolve(t *testing.T) {
	var s slot

	// Nothing pending: the frame is not consumed.
	require.False(t, s.tryResolve(classifiedReply("CHANNEL")))

	p, err := s.begin("AT+CHANNEL=13,1", matchKeyword("CHANNEL"))
	require.NoError(t, err)

	// Predicate mismatch leaves the command pending.
	require.False(t, s.tryResolve(classifiedReply("POWER")))

	require.True(t, s.tryResolve(classifiedReply("CHANNEL")))

	select {
	case cf := <-p.reply:
		require.Equal(t, "CHANNEL", cf.Reply.Keyword)
	default:
		t.Fatal("reply not delivered to pending command")
	}

	// Resolving freed the slot.
	_, err = s.begin("AT+POWER=22,1", matchKeyword("POWER"))
	require.NoError(t, err)
}

func TestSlot_ReleaseIgnoresStalePending(t *testing.T) {
	var s slot

	first, err := s.begin("AT+CHANNEL=13,1", matchKeyword("CHANNEL"))
	require.NoError(t, err)

	s.release(first)

	second, err := s.begin("AT+CHANNEL=13,1", matchKeyword("CHANNEL"))
	require.NoError(t, err)

	// Releasing the stale handle must not evict the new occupant.
	s.release(first)

	require.True(t, s.tryResolve(classifiedReply("CHANNEL")))

	select {
	case <-second.reply:
	default:
		t.Fatal("reply not delivered to current pending command")
	}
}

func TestSlot_RacedReplyDiscardedWithPending(t *testing.T) {
	var s slot

	p, err := s.begin("AT+CHANNEL=13,1", matchKeyword("CHANNEL"))
	require.NoError(t, err)

	// The reply lands just before the dispatcher gives up.
	require.True(t, s.tryResolve(classifiedReply("CHANNEL")))
	s.release(p)

	// The next command must not see the stray reply.
	next, err := s.begin("AT+CHANNEL=13,1", matchKeyword("CHANNEL"))
	require.NoError(t, err)

	select {
	case <-next.reply:
		t.Fatal("stray reply leaked into the next command")
	default:
	}
}
