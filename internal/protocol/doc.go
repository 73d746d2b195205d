// Package protocol implements the demultiplexing engine for the
// module's shared serial channel.
//
// One byte stream carries two logically independent message classes:
// acknowledgements of commands the host sent, and unsolicited radio
// payloads. The Controller owns the only reader of that stream. It
// frames and classifies everything that arrives, resolves command
// replies against the single pending command, and forwards radio
// payloads to consumers through a bounded channel.
//
// The wire protocol has no request IDs, so at most one command may be
// outstanding at any instant; replies are correlated by the echoed
// command keyword. SendCommand serializes callers, writes the command,
// and waits on the pending slot with a per-attempt deadline, re-sending
// the full command on timeout.
//
// Example usage:
//
//	controller := protocol.NewController(log, port, frame.DefaultGrammar(), 0)
//	controller.Start(ctx)
//
//	reply, err := controller.SendCommand(ctx, "AT+CHANNEL=13,1", 3, time.Second)
package protocol
