// Package text implements the stream-transport (TCP) wire grammar: every
// frame is a case-insensitive keyword line terminated by CR LF.
package text

import (
	"fmt"
	"strings"

	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
)

const crlf = "\r\n"

// Encode renders m as a stream-transport frame, CR LF terminated. msgId is
// never emitted: the stream transport carries no identifiers.
func Encode(m protocol.Message) ([]byte, error) {
	var s string
	switch m.Kind {
	case protocol.AUTH:
		s = fmt.Sprintf("AUTH %s AS %s USING %s", m.Username, m.DisplayName, m.Secret)
	case protocol.JOIN:
		s = fmt.Sprintf("JOIN %s AS %s", m.ChannelID, m.DisplayName)
	case protocol.MSG:
		s = fmt.Sprintf("MSG FROM %s IS %s", m.DisplayName, m.Content)
	case protocol.ERR:
		s = fmt.Sprintf("ERR FROM %s IS %s", m.DisplayName, m.Content)
	case protocol.BYE:
		s = fmt.Sprintf("BYE FROM %s", m.DisplayName)
	case protocol.REPLY:
		if m.Ok {
			s = fmt.Sprintf("REPLY OK IS %s", m.Content)
		} else {
			s = fmt.Sprintf("REPLY NOK IS %s", m.Content)
		}
	default:
		return nil, fmt.Errorf("%w: kind %s is not representable on the stream transport", protocol.ErrMalformedFrame, m.Kind)
	}
	return []byte(s + crlf), nil
}

// token is one whitespace-delimited word together with its byte offset in
// the original line, so callers can recover "everything after word N"
// without re-searching the line for ambiguous substrings.
type token struct {
	text string
	end  int // offset of the byte just past text
}

func tokenize(line string) []token {
	var toks []token
	i := 0
	for i < len(line) {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		for i < len(line) && line[i] != ' ' {
			i++
		}
		toks = append(toks, token{text: line[start:i], end: i})
	}
	return toks
}

// restAfter returns the remainder of line following the whitespace after
// toks[idx], or "" if toks[idx] was the last token.
func restAfter(line string, toks []token, idx int) string {
	if idx+1 >= len(toks) {
		return ""
	}
	return line[toks[idx].end+1:]
}

// Decode parses one CR-LF-delimited line (without the trailing CR LF) into
// a Message. A line that matches no grammar production decodes as
// protocol.UNKNOWN rather than an error: the caller (the FSM) treats
// UNKNOWN as a protocol violation.
func Decode(line string) protocol.Message {
	toks := tokenize(line)
	if len(toks) == 0 {
		return protocol.Message{Kind: protocol.UNKNOWN}
	}

	switch strings.ToUpper(toks[0].text) {
	case "AUTH":
		if len(toks) == 6 && eq(toks[2], "AS") && eq(toks[4], "USING") {
			return protocol.Message{Kind: protocol.AUTH, Username: toks[1].text, DisplayName: toks[3].text, Secret: toks[5].text}
		}
	case "JOIN":
		if len(toks) == 4 && eq(toks[2], "AS") {
			return protocol.Message{Kind: protocol.JOIN, ChannelID: toks[1].text, DisplayName: toks[3].text}
		}
	case "MSG":
		if d, c, ok := parseFromIs(line, toks); ok {
			return protocol.Message{Kind: protocol.MSG, DisplayName: d, Content: c}
		}
	case "ERR":
		if d, c, ok := parseFromIs(line, toks); ok {
			return protocol.Message{Kind: protocol.ERR, DisplayName: d, Content: c}
		}
	case "BYE":
		if len(toks) == 3 && eq(toks[1], "FROM") {
			return protocol.Message{Kind: protocol.BYE, DisplayName: toks[2].text}
		}
	case "REPLY":
		return decodeReply(line, toks)
	}
	return protocol.Message{Kind: protocol.UNKNOWN}
}

func eq(t token, s string) bool { return strings.EqualFold(t.text, s) }

// parseFromIs parses "<KEYWORD> FROM <displayName> IS <content...>" where
// content is the remainder of the line (following "IS ") and may itself
// contain spaces. toks includes the leading keyword at index 0.
func parseFromIs(line string, toks []token) (displayName, content string, ok bool) {
	if len(toks) < 4 || !eq(toks[1], "FROM") || !eq(toks[3], "IS") {
		return "", "", false
	}
	return toks[2].text, restAfter(line, toks, 3), true
}

func decodeReply(line string, toks []token) protocol.Message {
	if len(toks) < 3 || !eq(toks[2], "IS") {
		return protocol.Message{Kind: protocol.UNKNOWN}
	}
	var ok bool
	switch strings.ToUpper(toks[1].text) {
	case "OK":
		ok = true
	case "NOK":
		ok = false
	default:
		return protocol.Message{Kind: protocol.UNKNOWN}
	}
	return protocol.Message{Kind: protocol.REPLY, Ok: ok, Content: restAfter(line, toks, 2)}
}
