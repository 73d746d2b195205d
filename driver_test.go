package e52go

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// mockModule emulates the module side of the serial link: recorded
// writes, scripted replies, pushable unsolicited frames.
type mockModule struct {
	mu     sync.Mutex
	rbuf   bytes.Buffer
	writes []string
	closed bool

	respond func(line string) string
}

func newMockModule(respond func(line string) string) *mockModule {
	return &mockModule{respond: respond}
}

func (m *mockModule) Read(p []byte) (int, error) {
	m.mu.Lock()

	if m.rbuf.Len() == 0 {
		m.mu.Unlock()

		time.Sleep(time.Millisecond)

		return 0, nil
	}

	n, _ := m.rbuf.Read(p)
	m.mu.Unlock()

	return n, nil
}

func (m *mockModule) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := strings.TrimSuffix(string(p), "\r\n")
	m.writes = append(m.writes, line)

	if m.respond != nil {
		m.rbuf.WriteString(m.respond(line))
	}

	return len(p), nil
}

func (m *mockModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *mockModule) push(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rbuf.WriteString(s)
}

func (m *mockModule) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.writes...)
}

func connectMock(t *testing.T, module *mockModule, opts ...Option) *Driver {
	t.Helper()

	opts = append([]Option{
		WithTransport(module),
		WithReadTimeout(10 * time.Millisecond),
	}, opts...)

	d, err := Connect(context.Background(), "mock", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestDriver_SetChannel(t *testing.T) {
	module := newMockModule(func(line string) string {
		if line == "AT+CHANNEL=13,1" {
			return "AT+CHANNEL=OK\r\n"
		}

		return ""
	})

	d := connectMock(t, module)

	reply, err := d.SetChannel(context.Background(), 13, true)
	require.NoError(t, err)
	require.Equal(t, StatusOK, reply.Status)
	require.Equal(t, []string{"AT+CHANNEL=13,1"}, module.recorded())
}

func TestDriver_SilentModuleExhaustsRetries(t *testing.T) {
	module := newMockModule(nil)

	d := connectMock(t, module,
		WithRetries(3),
		WithCommandTimeout(20*time.Millisecond),
	)

	_, err := d.SetChannel(context.Background(), 13, true)

	var cmdErr *CommandError

	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, 4, cmdErr.Attempts)
	require.Len(t, module.recorded(), 4)
}

func TestDriver_ModuleRejection(t *testing.T) {
	module := newMockModule(func(line string) string {
		return "AT+CHANNEL=ERROR:4\r\n"
	})

	d := connectMock(t, module)

	reply, err := d.SetChannel(context.Background(), 200, false)

	var cmdErr *CommandError

	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, 4, cmdErr.Code)

	// The raw reply is still returned alongside the error.
	require.NotNil(t, reply)
	require.Equal(t, StatusError, reply.Status)

	// A module-side rejection is not retried.
	require.Len(t, module.recorded(), 1)
}

func TestDriver_Query(t *testing.T) {
	module := newMockModule(func(line string) string {
		if line == "AT+CHANNEL=?" {
			return "AT+CHANNEL=0x0d,13\r\n"
		}

		return ""
	})

	d := connectMock(t, module)

	reply, err := d.Channel(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusData, reply.Status)
	require.Equal(t, []string{"0x0d", "13"}, reply.Params)
}

func TestDriver_ConfigureRemote(t *testing.T) {
	module := newMockModule(func(line string) string {
		if line == "++AT+POWER=22,1" {
			return "++AT+POWER=OK\r\n"
		}

		return ""
	})

	d := connectMock(t, module)

	reply, err := d.ConfigureRemote(context.Background(), SettingPower, "22", "1")
	require.NoError(t, err)
	require.Equal(t, StatusOK, reply.Status)
	require.True(t, reply.Remote)
}

func TestDriver_SendMessage(t *testing.T) {
	module := newMockModule(func(line string) string {
		if line == "Hello Module B!" {
			return "SUCCESS\r\n"
		}

		return ""
	})

	d := connectMock(t, module)

	reply, err := d.SendMessage(context.Background(), "Hello Module B!")
	require.NoError(t, err)
	require.Equal(t, StatusOK, reply.Status)
}

func TestDriver_SendMessageNeverRetries(t *testing.T) {
	module := newMockModule(nil)

	d := connectMock(t, module,
		WithRetries(5),
		WithSendTimeout(20*time.Millisecond),
	)

	_, err := d.SendMessage(context.Background(), "Hello Module B!")
	require.Error(t, err)

	// One write only: a re-send would radiate a duplicate.
	require.Len(t, module.recorded(), 1)
}

func TestDriver_OnMessage(t *testing.T) {
	module := newMockModule(nil)
	d := connectMock(t, module)

	received := make(chan AsyncMessage, 1)
	d.OnMessage(func(msg AsyncMessage) {
		received <- msg
	})

	module.push("+RCV=20,Hello World,-80,9\r\n")

	select {
	case msg := <-received:
		require.Equal(t, "Hello World", msg.Payload)
		require.Equal(t, 20, msg.Sender)
		require.Equal(t, -80, msg.RSSI)
		require.Equal(t, 9, msg.SNR)
		require.NotEmpty(t, msg.ID)
	case <-time.After(time.Second):
		t.Fatal("message not delivered to handler")
	}
}

func TestDriver_OnMessage_LastWriterWins(t *testing.T) {
	module := newMockModule(nil)
	d := connectMock(t, module)

	first := make(chan AsyncMessage, 1)
	second := make(chan AsyncMessage, 1)

	d.OnMessage(func(msg AsyncMessage) { first <- msg })
	d.OnMessage(func(msg AsyncMessage) { second <- msg })

	module.push("+RCV=20,hello,-80,9\r\n")

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("message not delivered to replacement handler")
	}

	select {
	case <-first:
		t.Fatal("replaced handler still received a message")
	default:
	}
}

func TestDriver_OnMessage_PanicContained(t *testing.T) {
	module := newMockModule(nil)
	d := connectMock(t, module)

	received := make(chan AsyncMessage, 2)
	d.OnMessage(func(msg AsyncMessage) {
		if msg.Payload == "bad" {
			panic("handler bug")
		}

		received <- msg
	})

	module.push("+RCV=20,bad,-80,9\r\n")
	module.push("+RCV=20,good,-80,9\r\n")

	select {
	case msg := <-received:
		require.Equal(t, "good", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("delivery did not survive the handler panic")
	}
}

func TestDriver_QueryInfo(t *testing.T) {
	replies := map[string]string{
		"AT+DEVTYPE=?":  "AT+DEVTYPE=E52,410\r\n",
		"AT+FWCODE=?":   "AT+FWCODE=7107\r\n",
		"AT+CHANNEL=?":  "AT+CHANNEL=0x0d,13\r\n",
		"AT+POWER=?":    "AT+POWER=22\r\n",
		"AT+RATE=?":     "AT+RATE=1\r\n",
		"AT+OPTION=?":   "AT+OPTION=3\r\n",
		"AT+PANID=?":    "AT+PANID=0x1234\r\n",
		"AT+TYPE=?":     "AT+TYPE=0\r\n",
		"AT+SRC_ADDR=?": "AT+SRC_ADDR=0x0001\r\n",
		"AT+DST_ADDR=?": "AT+DST_ADDR=0xffff\r\n",
	}

	module := newMockModule(func(line string) string {
		return replies[line]
	})

	d := connectMock(t, module)

	info, err := d.QueryInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "E52,410", info.DevType)
	require.Equal(t, "7107", info.FWCode)
	require.Equal(t, "0x0d,13", info.Channel)
	require.Equal(t, "22", info.Power)
	require.Equal(t, "1", info.Rate)
	require.Equal(t, "3", info.Cast)
	require.Equal(t, "0x1234", info.PANID)
	require.Equal(t, "0", info.NodeType)
	require.Equal(t, "0x0001", info.SrcAddr)
	require.Equal(t, "0xffff", info.DstAddr)
}

func TestDriver_ConcurrentCommandsQueue(t *testing.T) {
	module := newMockModule(func(line string) string {
		keyword, _, _ := strings.Cut(strings.TrimPrefix(line, "AT+"), "=")

		return "AT+" + keyword + "=OK\r\n"
	})

	d := connectMock(t, module)

	errs := make(chan error, 10)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := d.SetPower(context.Background(), 22, false)
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, module.recorded(), 10)
}

func TestDriver_Close_Idempotent(t *testing.T) {
	module := newMockModule(nil)
	d := connectMock(t, module)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	module.mu.Lock()
	closed := module.closed
	module.mu.Unlock()

	require.True(t, closed)
}

func TestDriver_CommandAfterClose(t *testing.T) {
	module := newMockModule(nil)
	d := connectMock(t, module)

	require.NoError(t, d.Close())

	_, err := d.SetChannel(context.Background(), 13, false)
	require.ErrorIs(t, err, ErrControllerStopped)
}

func TestDriver_CustomGrammar(t *testing.T) {
	g := DefaultGrammar()
	g.BarePayloads = true

	module := newMockModule(nil)
	d := connectMock(t, module, WithGrammar(g))

	received := make(chan AsyncMessage, 1)
	d.OnMessage(func(msg AsyncMessage) { received <- msg })

	// With bare payloads enabled, prefix-less lines are radio data.
	module.push("Hello Module A!\r\n")

	select {
	case msg := <-received:
		require.Equal(t, "Hello Module A!", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("bare payload not delivered")
	}
}

func TestDriverErrorTypes(t *testing.T) {
	// All typed errors satisfy the DriverError marker.
	for _, err := range []error{
		&TransportError{Op: "read", Err: errors.New("unplugged")},
		&CommandError{Command: "AT+CHANNEL=13,1", Attempts: 4},
		&PortError{Port: "/dev/ttyUSB0", Err: errors.New("busy")},
	} {
		var de DriverError

		require.ErrorAs(t, err, &de)
		require.True(t, de.IsDriverError())
	}
}
