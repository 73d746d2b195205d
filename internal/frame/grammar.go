package frame

import "strings"

// LengthPolicy controls how the classifier treats the second field of
// an async data frame.
type LengthPolicy int

const (
	// LengthAuto treats an all-digits second field as an embedded byte
	// count and validates it against the payload; a non-numeric second
	// field selects the length-less "addr,data,rssi,snr" shape. Note
	// the inherent wire ambiguity: with length-less framing an
	// all-digits payload is misread as a length and the frame is
	// dropped as unrecognized. Pin the policy when the module's
	// framing is known.
	LengthAuto LengthPolicy = iota

	// LengthRequired rejects async frames without a valid embedded
	// length.
	LengthRequired

	// LengthNone always parses the length-less shape.
	LengthNone
)

// Grammar describes the module's reply and async-payload shapes. The
// exact grammar varies between module families and firmware revisions,
// so the classifier is driven by this value rather than hard-coded
// matching; verify against real hardware traces before trusting a
// non-default grammar.
type Grammar struct {
	// CommandPrefix starts every command echo ("AT+").
	CommandPrefix string

	// RemotePrefix starts echoes of remote-configuration commands
	// ("++AT+").
	RemotePrefix string

	// AsyncPrefix starts unsolicited data frames ("+RCV=").
	AsyncPrefix string

	// OKTokens are the status tokens accepted as success, either after
	// the echoed "<KEY>=" or as a bare confirmation line.
	OKTokens []string

	// ErrorToken is the status token signalling rejection, optionally
	// followed by ":<code>".
	ErrorToken string

	// LengthField selects the async length-field policy.
	LengthField LengthPolicy

	// BarePayloads, when set, classifies frames matching neither the
	// reply nor the async shape as radio payloads instead of noise.
	// Modules with the extra frame header disabled emit received data
	// as plain lines with no prefix at all; this is how those lines
	// reach the consumer. Sender and link quality are unknown (-1/0)
	// in that mode.
	BarePayloads bool
}

// DefaultGrammar returns the grammar of the E52-series modules as
// observed on the wire: "AT+<KEY>=<STATUS|values>" replies, "++AT+"
// remote echoes, bare "OK"/"SUCCESS" send confirmations, and
// "+RCV=<addr>[,<len>],<data>,<rssi>,<snr>" data frames.
func DefaultGrammar() Grammar {
	return Grammar{
		CommandPrefix: "AT+",
		RemotePrefix:  "++AT+",
		AsyncPrefix:   "+RCV=",
		OKTokens:      []string{"OK", "SUCCESS"},
		ErrorToken:    "ERROR",
		LengthField:   LengthAuto,
	}
}

// segments splits one physical line into logical frames. The module
// occasionally emits a radio payload and a reply glued together
// ("Hello Module A!AT+OPTION=OK", "Hello Module A!SUCCESS"); cutting
// before a command echo, and before a trailing status token, keeps the
// two message classes from reaching the classifier fused.
func (g Grammar) segments(line string) []string {
	parts := []string{line}

	if g.CommandPrefix != "" {
		parts = cutInline(parts, g.CommandPrefix)
	}

	var out []string

	for _, p := range parts {
		head, tail := g.cutTrailingStatus(p)
		if head != "" {
			out = append(out, head)
		}

		if tail != "" {
			out = append(out, tail)
		}
	}

	return out
}

// cutInline splits each part before every occurrence of marker that is
// not at the start. A '+' immediately before the marker belongs to the
// remote-configuration prefix and is kept attached.
func cutInline(parts []string, marker string) []string {
	var out []string

	for _, p := range parts {
		for {
			idx := indexFrom(p, marker, 1)
			if idx < 0 {
				break
			}

			// Back up over the "++" of a remote echo.
			cut := idx
			for cut > 0 && p[cut-1] == '+' {
				cut--
			}

			if cut == 0 {
				break
			}

			out = append(out, p[:cut])
			p = p[cut:]
		}

		out = append(out, p)
	}

	return out
}

// cutTrailingStatus splits a glued payload off a trailing status token
// ("Hello!SUCCESS" -> "Hello!", "SUCCESS"). Tokens preceded by '=' or
// ':' belong to a command echo and stay attached.
func (g Grammar) cutTrailingStatus(p string) (head, tail string) {
	for _, tok := range g.OKTokens {
		if idx := trailingToken(p, tok); idx > 0 {
			return p[:idx], p[idx:]
		}
	}

	if g.ErrorToken != "" {
		body := p

		// Allow an ":<code>" tail after the error token.
		if i := strings.LastIndexByte(p, ':'); i >= 0 && allDigits(p[i+1:]) {
			body = p[:i]
		}

		if idx := trailingToken(body, g.ErrorToken); idx > 0 {
			return p[:idx], p[idx:]
		}
	}

	return p, ""
}

// trailingToken returns the start index of tok when p ends with tok
// and the preceding byte does not bind it to a command echo, else -1.
func trailingToken(p, tok string) int {
	if len(p) <= len(tok) || !hasSuffixFold(p, tok) {
		return -1
	}

	idx := len(p) - len(tok)
	switch p[idx-1] {
	case '=', ':':
		return -1
	}

	return idx
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}

	if idx := strings.Index(s[from:], sub); idx >= 0 {
		return from + idx
	}

	return -1
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
