// Package client implements the event loop that wires the codec, command
// parser, FSM and reliability engine together. It multiplexes terminal
// input, network input and an interrupt notification using Go channels
// and select, in place of a single blocking readiness-waiting primitive;
// see DESIGN.md for the rationale.
package client

import (
	"bufio"
	"fmt"
	"io"

	"github.com/Mr-Annonym/ipk24chat-client/internal/clog"
	"github.com/Mr-Annonym/ipk24chat-client/internal/command"
	"github.com/Mr-Annonym/ipk24chat-client/internal/fsm"
	"github.com/Mr-Annonym/ipk24chat-client/internal/identity"
	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
)

// core holds the state shared by both transport variants' event loops:
// the identity record, the FSM, rendering and the logger. Each transport's
// Run function owns the socket and, for datagram, the reliability engine.
type core struct {
	id          *identity.Identity
	fsm         *fsm.FSM
	out         *bufio.Writer
	log         clog.Clog
	byeReceived bool
}

func newCore(out io.Writer, log clog.Clog) *core {
	return &core{id: identity.New(), fsm: fsm.New(), out: bufio.NewWriter(out), log: log}
}

// renderLine writes one output line (plus trailing newline) and flushes,
// so partial output is never buffered across an event-loop wake-up.
func (c *core) renderLine(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
	c.out.Flush()
}

// renderIncomingMessage renders an incoming MSG.
func (c *core) renderIncomingMessage(m protocol.Message) {
	c.renderLine("%s: %s", m.DisplayName, m.Content)
}

// renderIncomingError renders an incoming ERR.
func (c *core) renderIncomingError(m protocol.Message) {
	c.renderLine("ERROR FROM %s: %s", m.DisplayName, m.Content)
}

// renderReply renders a REPLY.
func (c *core) renderReply(m protocol.Message) {
	if m.Ok {
		c.renderLine("Action Success: %s", m.Content)
	} else {
		c.renderLine("Action Failure: %s", m.Content)
	}
}

// renderUserError renders any user-visible error.
func (c *core) renderUserError(err error) {
	c.renderLine("ERROR: %s", err)
}

// inputLines runs in its own goroutine, reading lines from in until EOF or
// a read error, and delivers each on the returned
// channel, followed by one end-of-input marker (eof set). This turns the blocking terminal reader into a channel source
// the select-based event loop can multiplex.
func inputLines(in io.Reader) <-chan lineOrEOF {
	out := make(chan lineOrEOF)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			out <- lineOrEOF{line: scanner.Text()}
		}
		out <- lineOrEOF{eof: true}
	}()
	return out
}

type lineOrEOF struct {
	line string
	eof  bool
}

// parseCommand parses line without touching identity or FSM state. /help
// is handled here by printing HelpText. It returns the parsed command
// (nil for /help and the empty line), or an error to render.
func (c *core) parseCommand(line string) (cmd *command.Command, err error) {
	cmd, err, isHelp := command.Parse(line)
	if isHelp {
		c.renderLine("%s", command.HelpText)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// toMessage converts a parsed command into the Message the FSM/codec deal
// with. send is false either because the command was fully handled
// locally (Rename: no wire traffic) or because its arguments violate a
// field invariant, in which case err is non-nil.
func (c *core) toMessage(cmd *command.Command) (msg protocol.Message, send bool, err error) {
	switch cmd.Kind {
	case command.Auth:
		if protocol.Invalid(cmd.Username) || protocol.Invalid(cmd.Secret) || protocol.Invalid(cmd.DisplayName) {
			return protocol.Message{}, false, fmt.Errorf("%w: invalid /auth arguments", protocol.ErrUserInput)
		}
		return protocol.Message{Kind: protocol.AUTH, Username: cmd.Username, Secret: cmd.Secret, DisplayName: cmd.DisplayName}, true, nil
	case command.Join:
		if protocol.Invalid(cmd.ChannelID) {
			return protocol.Message{}, false, fmt.Errorf("%w: invalid /join argument", protocol.ErrUserInput)
		}
		return protocol.Message{Kind: protocol.JOIN, ChannelID: cmd.ChannelID, DisplayName: c.id.DisplayName}, true, nil
	case command.Message:
		if protocol.ContentInvalid(cmd.Content) {
			return protocol.Message{}, false, fmt.Errorf("%w: message contains an embedded control byte", protocol.ErrUserInput)
		}
		return protocol.Message{Kind: protocol.MSG, DisplayName: c.id.DisplayName, Content: cmd.Content}, true, nil
	case command.Rename:
		if protocol.Invalid(cmd.DisplayName) {
			return protocol.Message{}, false, fmt.Errorf("%w: invalid /rename argument", protocol.ErrUserInput)
		}
		c.id.Rename(cmd.DisplayName)
		return protocol.Message{}, false, nil
	default:
		return protocol.Message{}, false, nil
	}
}

// applyPostSend updates identity state after a message has actually been
// transmitted: AUTH records username/secret/displayName, JOIN records the
// channel.
func (c *core) applyPostSend(cmd *command.Command) {
	switch cmd.Kind {
	case command.Auth:
		c.id.Authenticate(cmd.Username, cmd.Secret, cmd.DisplayName)
	case command.Join:
		c.id.Join(cmd.ChannelID)
	}
}

// replyOutcome classifies a REPLY message for fsm.Received.
func replyOutcome(m protocol.Message) fsm.ReplyOutcome {
	if m.Kind != protocol.REPLY {
		return fsm.NotReply
	}
	if m.Ok {
		return fsm.ReplyOK
	}
	return fsm.ReplyNOK
}
