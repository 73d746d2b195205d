package e52go

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aseckin/e52go/internal/protocol"
	"github.com/aseckin/e52go/internal/serial"
)

// Driver is an open connection to one LoRa module.
//
// All command methods block the caller until the module replies or the
// retry budget runs out; they are safe for concurrent use and queue on
// the single wire. Received radio payloads are delivered to the
// handler registered with OnMessage, on a goroutine of their own.
//
// Lifecycle: drivers are single-use. After Close, connect again with
// Connect.
type Driver struct {
	log       *slog.Logger
	opts      *Options
	grammar   Grammar
	transport Transport
	ctrl      *protocol.Controller
	group     *errgroup.Group

	handlerMu sync.Mutex
	handler   func(AsyncMessage)

	closeOnce sync.Once
	closeErr  error
}

// Connect opens the serial port (unless a transport is injected),
// starts the background reader and returns a ready Driver.
func Connect(ctx context.Context, port string, opts ...Option) (*Driver, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	grammar := DefaultGrammar()
	if options.Grammar != nil {
		grammar = *options.Grammar
	}

	transport := options.Transport
	if transport == nil {
		p, err := serial.Open(log, serial.Config{
			Name:        port,
			Baud:        options.BaudRate,
			ReadTimeout: options.ReadTimeout,
		})
		if err != nil {
			return nil, err
		}

		transport = p
	}

	d := &Driver{
		log:       log.With("component", "driver"),
		opts:      options,
		grammar:   grammar,
		transport: transport,
		ctrl:      protocol.NewController(log, transport, grammar, options.ReadTimeout),
		group:     new(errgroup.Group),
	}

	if err := d.ctrl.Start(ctx); err != nil {
		_ = transport.Close()

		return nil, fmt.Errorf("start protocol controller: %w", err)
	}

	d.group.Go(func() error {
		d.deliverLoop()

		return nil
	})

	d.log.Info("Driver connected", "port", port)

	return d, nil
}

// OnMessage registers the consumer for unsolicited radio payloads.
// At most one handler is active; registering again replaces the
// previous one (last writer wins). A nil handler unregisters, after
// which messages are logged and dropped.
func (d *Driver) OnMessage(handler func(AsyncMessage)) {
	d.handlerMu.Lock()
	defer d.handlerMu.Unlock()

	d.handler = handler
}

// deliverLoop feeds the registered handler from the controller's
// bounded channel, keeping slow or faulty consumers off the read
// path. It exits when the controller closes the channel.
func (d *Driver) deliverLoop() {
	for msg := range d.ctrl.Messages() {
		d.handlerMu.Lock()
		handler := d.handler
		d.handlerMu.Unlock()

		if handler == nil {
			d.log.Info("Async message", "id", msg.ID, "payload", msg.Payload)

			continue
		}

		d.deliver(handler, msg)
	}
}

// deliver invokes the handler, containing panics: one bad handler must
// not kill message intake.
func (d *Driver) deliver(handler func(AsyncMessage), msg AsyncMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Async handler panicked", "id", msg.ID, "panic", r)
		}
	}()

	handler(msg)
}

// Configure sends "AT+<KEY>=<values…>" and returns the module's
// reply. A module-side rejection surfaces as a *CommandError carrying
// the reported error code.
func (d *Driver) Configure(ctx context.Context, setting Setting, values ...string) (*Reply, error) {
	return d.command(ctx, formatSet(d.grammar, setting, false, values...))
}

// ConfigureRemote is Configure with the remote-configuration prefix,
// addressing the far module over the air.
func (d *Driver) ConfigureRemote(ctx context.Context, setting Setting, values ...string) (*Reply, error) {
	return d.command(ctx, formatSet(d.grammar, setting, true, values...))
}

// Query sends "AT+<KEY>=?" and returns the reply carrying the
// current parameter values.
func (d *Driver) Query(ctx context.Context, setting Setting) (*Reply, error) {
	return d.command(ctx, formatQuery(d.grammar, setting, false))
}

// QueryRemote is Query with the remote-configuration prefix.
func (d *Driver) QueryRemote(ctx context.Context, setting Setting) (*Reply, error) {
	return d.command(ctx, formatQuery(d.grammar, setting, true))
}

// SendMessage transmits raw user data over the radio and waits for the
// module's confirmation line. Sends are not retried: the command was
// already on the air, and a re-send would radiate a duplicate.
func (d *Driver) SendMessage(ctx context.Context, text string) (*Reply, error) {
	reply, err := d.ctrl.SendCommand(ctx, text, 0, d.opts.SendTimeout)
	if err != nil {
		return nil, err
	}

	return d.checkReply(text, reply)
}

// command runs one AT command through the dispatcher with the
// configured retry budget.
func (d *Driver) command(ctx context.Context, text string) (*Reply, error) {
	reply, err := d.ctrl.SendCommand(ctx, text, d.opts.Retries, d.opts.CommandTimeout)
	if err != nil {
		return nil, err
	}

	return d.checkReply(text, reply)
}

// checkReply turns a module-side error status into a typed error.
func (d *Driver) checkReply(command string, reply *Reply) (*Reply, error) {
	if reply.Status == StatusError {
		return reply, &CommandError{
			Command:  command,
			Attempts: 1,
			Code:     reply.ErrorCode,
		}
	}

	return reply, nil
}

// Close stops the reader, closes the transport and waits for delivery
// to drain. Safe to call multiple times; later calls return the first
// result.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.log.Info("Closing driver")

		d.ctrl.Stop()
		d.closeErr = d.transport.Close()
		_ = d.group.Wait()
	})

	return d.closeErr
}

// ===== Typed setting helpers =====

// SetChannel sets the working channel; save persists it to flash.
func (d *Driver) SetChannel(ctx context.Context, channel int, save bool) (*Reply, error) {
	return d.Configure(ctx, SettingChannel, strconv.Itoa(channel), saveFlag(save))
}

// Channel queries the working channel.
func (d *Driver) Channel(ctx context.Context) (*Reply, error) {
	return d.Query(ctx, SettingChannel)
}

// SetPower sets the transmit power in dBm (-9 to +22).
func (d *Driver) SetPower(ctx context.Context, dbm int, save bool) (*Reply, error) {
	return d.Configure(ctx, SettingPower, strconv.Itoa(dbm), saveFlag(save))
}

// Power queries the transmit power.
func (d *Driver) Power(ctx context.Context) (*Reply, error) {
	return d.Query(ctx, SettingPower)
}

// SetCast sets the communication method (unicast, multicast,
// broadcast, anycast).
func (d *Driver) SetCast(ctx context.Context, mode CastMode, save bool) (*Reply, error) {
	return d.Configure(ctx, SettingOption, strconv.Itoa(int(mode)), saveFlag(save))
}

// SetRate sets the over-the-air data rate.
func (d *Driver) SetRate(ctx context.Context, rate AirRate) (*Reply, error) {
	return d.Configure(ctx, SettingRate, strconv.Itoa(int(rate)))
}

// SetPANID sets the network identification code.
func (d *Driver) SetPANID(ctx context.Context, panid int, save bool) (*Reply, error) {
	return d.Configure(ctx, SettingPANID, strconv.Itoa(panid), saveFlag(save))
}

// SetNodeType sets the mesh role (routing or terminal node).
func (d *Driver) SetNodeType(ctx context.Context, t NodeType) (*Reply, error) {
	return d.Configure(ctx, SettingType, strconv.Itoa(int(t)))
}

// SetSrcAddr sets the local address (0-65535).
func (d *Driver) SetSrcAddr(ctx context.Context, addr int, save bool) (*Reply, error) {
	return d.Configure(ctx, SettingSrcAddr, strconv.Itoa(addr), saveFlag(save))
}

// SetDstAddr sets the target address (0-65535).
func (d *Driver) SetDstAddr(ctx context.Context, addr int, save bool) (*Reply, error) {
	return d.Configure(ctx, SettingDstAddr, strconv.Itoa(addr), saveFlag(save))
}

// MAC queries the module's MAC address.
func (d *Driver) MAC(ctx context.Context) (*Reply, error) {
	return d.Query(ctx, SettingMAC)
}

// Reset restarts the module.
func (d *Driver) Reset(ctx context.Context) (*Reply, error) {
	return d.Configure(ctx, SettingReset)
}

// FactoryDefaults restores the module to factory settings.
func (d *Driver) FactoryDefaults(ctx context.Context) (*Reply, error) {
	return d.Configure(ctx, SettingDefault)
}
