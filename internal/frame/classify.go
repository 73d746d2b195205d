package frame

import (
	"strconv"
	"strings"
)

// Classify tags a frame as a command reply, an async radio payload, or
// noise, and extracts the reply status or payload fields.
//
// Classify is a pure function of the frame text and the grammar: it is
// deterministic and has no side effects, so the reader loop can call
// it on every frame without coordination. Empty and whitespace-only
// frames are always unrecognized.
func Classify(g Grammar, f Frame) Classified {
	text := strings.TrimSpace(f.Text)
	if text == "" {
		return Classified{Frame: f, Kind: KindUnrecognized}
	}

	if g.AsyncPrefix != "" && strings.HasPrefix(text, g.AsyncPrefix) {
		return classifyAsync(g, f, text[len(g.AsyncPrefix):])
	}

	if g.RemotePrefix != "" && strings.HasPrefix(text, g.RemotePrefix) {
		return classifyReply(g, f, text[len(g.RemotePrefix):], true)
	}

	if g.CommandPrefix != "" && strings.HasPrefix(text, g.CommandPrefix) {
		return classifyReply(g, f, text[len(g.CommandPrefix):], false)
	}

	if reply, ok := bareStatus(g, text); ok {
		return Classified{Frame: f, Kind: KindCommandReply, Reply: reply}
	}

	if g.BarePayloads {
		return Classified{Frame: f, Kind: KindAsyncPayload, Async: &AsyncMessage{
			Sender:     -1,
			Length:     len(text),
			Payload:    text,
			ReceivedAt: f.ReceivedAt,
		}}
	}

	return Classified{Frame: f, Kind: KindUnrecognized}
}

// classifyReply parses the "<KEY>=<STATUS|values>" body of an echoed
// command.
func classifyReply(g Grammar, f Frame, body string, remote bool) Classified {
	keyword, value, ok := strings.Cut(body, "=")
	if !ok || keyword == "" || value == "" {
		return Classified{Frame: f, Kind: KindUnrecognized}
	}

	reply := &Reply{Keyword: keyword, Remote: remote, ErrorCode: -1}

	switch {
	case isOKToken(g, value):
		reply.Status = StatusOK

	case strings.HasPrefix(value, g.ErrorToken):
		reply.Status = StatusError
		reply.ErrorCode = errorCode(value[len(g.ErrorToken):])

	default:
		reply.Status = StatusData
		reply.Params = strings.Split(value, ",")
	}

	return Classified{Frame: f, Kind: KindCommandReply, Reply: reply}
}

// bareStatus recognizes status tokens standing alone on a line, the
// way the module confirms a raw user-data send ("SUCCESS").
func bareStatus(g Grammar, text string) (*Reply, bool) {
	if isOKToken(g, text) {
		return &Reply{Status: StatusOK, ErrorCode: -1}, true
	}

	if g.ErrorToken != "" && strings.HasPrefix(text, g.ErrorToken) {
		tail := text[len(g.ErrorToken):]
		if tail == "" || strings.HasPrefix(tail, ":") {
			return &Reply{Status: StatusError, ErrorCode: errorCode(tail)}, true
		}
	}

	return nil, false
}

func isOKToken(g Grammar, s string) bool {
	for _, tok := range g.OKTokens {
		if strings.EqualFold(s, tok) {
			return true
		}
	}

	return false
}

// errorCode parses the optional ":<code>" tail of an error status.
func errorCode(tail string) int {
	tail = strings.TrimPrefix(tail, ":")

	code, err := strconv.Atoi(tail)
	if err != nil {
		return -1
	}

	return code
}

// classifyAsync parses the body of an unsolicited data frame:
// "<addr>,<len>,<data>,<rssi>,<snr>" or "<addr>,<data>,<rssi>,<snr>"
// depending on the grammar's length policy. A length field that does
// not match the actual payload makes the whole frame unrecognized;
// corrupt data must never be delivered as a payload.
func classifyAsync(g Grammar, f Frame, body string) Classified {
	unrecognized := Classified{Frame: f, Kind: KindUnrecognized}

	addrField, rest, ok := strings.Cut(body, ",")
	if !ok {
		return unrecognized
	}

	sender, err := strconv.Atoi(addrField)
	if err != nil {
		return unrecognized
	}

	second, _, hasMore := strings.Cut(rest, ",")
	if !hasMore {
		return unrecognized
	}

	withLength := allDigits(second)

	switch g.LengthField {
	case LengthRequired:
		if !withLength {
			return unrecognized
		}
	case LengthNone:
		withLength = false
	case LengthAuto:
		// Digits in the second field select the length shape.
	}

	var msg *AsyncMessage

	if withLength {
		msg = parseWithLength(second, rest)
	} else {
		msg = parseWithoutLength(rest)
	}

	if msg == nil {
		return unrecognized
	}

	msg.Sender = sender
	msg.ReceivedAt = f.ReceivedAt

	return Classified{Frame: f, Kind: KindAsyncPayload, Async: msg}
}

// parseWithLength validates "<len>,<data>,<rssi>,<snr>" where data is
// exactly len bytes (and may itself contain commas).
func parseWithLength(lenField, rest string) *AsyncMessage {
	length, err := strconv.Atoi(lenField)
	if err != nil {
		return nil
	}

	data := rest[len(lenField)+1:]
	if len(data) < length+1 || data[length] != ',' {
		return nil
	}

	payload := data[:length]

	rssi, snr, ok := linkQuality(data[length+1:])
	if !ok {
		return nil
	}

	return &AsyncMessage{Length: length, Payload: payload, RSSI: rssi, SNR: snr}
}

// parseWithoutLength parses "<data>,<rssi>,<snr>", taking the last two
// comma-separated numeric fields as the link quality figures so the
// payload may contain commas.
func parseWithoutLength(rest string) *AsyncMessage {
	snrCut := strings.LastIndexByte(rest, ',')
	if snrCut <= 0 {
		return nil
	}

	rssiCut := strings.LastIndexByte(rest[:snrCut], ',')
	if rssiCut <= 0 {
		return nil
	}

	rssi, snr, ok := linkQuality(rest[rssiCut+1:snrCut] + "," + rest[snrCut+1:])
	if !ok {
		return nil
	}

	payload := rest[:rssiCut]

	return &AsyncMessage{Length: len(payload), Payload: payload, RSSI: rssi, SNR: snr}
}

// linkQuality parses the trailing "<rssi>,<snr>" pair.
func linkQuality(tail string) (rssi, snr int, ok bool) {
	rssiField, snrField, found := strings.Cut(tail, ",")
	if !found {
		return 0, 0, false
	}

	rssi, err := strconv.Atoi(rssiField)
	if err != nil {
		return 0, 0, false
	}

	snr, err = strconv.Atoi(snrField)
	if err != nil {
		return 0, 0, false
	}

	return rssi, snr, true
}
