// Package e52go is a host-side driver for E52-series UART LoRa
// modules controlled via textual AT commands.
//
// The module talks over one serial byte stream that carries two
// independent message classes: synchronous acknowledgements of
// commands the host sends, and unsolicited radio payloads that can
// arrive at any moment. The driver runs a single background reader
// that frames and classifies everything on the wire, correlates
// replies with the one outstanding command, and hands radio payloads
// to a registered handler without ever blocking the reader.
//
// By default, logging is disabled. Use WithLogger to enable logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//
//	driver, err := e52go.Connect(ctx, "/dev/ttyUSB0",
//	    e52go.WithLogger(logger),
//	    e52go.WithBaudRate(115200),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer driver.Close()
//
//	driver.OnMessage(func(msg e52go.AsyncMessage) {
//	    fmt.Println("received:", msg.Payload)
//	})
//
//	reply, err := driver.SetChannel(ctx, 13, true)
//
// Error Handling:
//
// Commands never hang: every attempt has a deadline, timeouts are
// retried up to the configured bound and then surface as a
// *CommandError with the attempt count. A broken serial link is fatal:
// it stops the reader, fails the pending command and every later call
// with a *TransportError. Malformed frames are dropped and logged,
// never surfaced as errors.
package e52go
