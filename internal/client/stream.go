package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Mr-Annonym/ipk24chat-client/internal/clog"
	"github.com/Mr-Annonym/ipk24chat-client/internal/config"
	"github.com/Mr-Annonym/ipk24chat-client/internal/fsm"
	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol/text"
	"github.com/Mr-Annonym/ipk24chat-client/internal/transport"
)

// RunStream drives the event loop over the stream (TCP) transport:
// connect, then multiplex terminal lines and network frames until BYE/ERR,
// EOF or an interrupt. It returns the process exit code.
func RunStream(dial config.Dial, in io.Reader, out io.Writer, log clog.Clog) int {
	addr := net.JoinHostPort(dial.Host, strconv.Itoa(int(dial.Port)))
	conn, err := transport.DialStream(addr)
	if err != nil {
		fmt.Fprintf(out, "ERROR: %s\n", err)
		return 1
	}
	defer conn.Close()

	c := newCore(out, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := inputLines(in)

	netCh := make(chan transport.Frame)
	go func() {
		for {
			frames, err := conn.ReadFrames()
			for _, f := range frames {
				netCh <- transport.Frame{Payload: f}
			}
			if err != nil {
				netCh <- transport.Frame{Err: err}
				return
			}
		}
	}()

	exitCode := 0
loop:
	for {
		// Fixed dispatch priority (interrupt, network, terminal): drain any
		// pending interrupt, then any pending network frame, before
		// considering terminal input.
		select {
		case <-sigCh:
			c.log.Debug("interrupt received")
			exitCode = streamBye(c, conn)
			break loop
		default:
		}

		select {
		case f := <-netCh:
			if code, done := c.handleStreamNetEvent(conn, f); done {
				exitCode = code
				break loop
			}
			continue loop
		default:
		}

		select {
		case <-sigCh:
			c.log.Debug("interrupt received")
			exitCode = streamBye(c, conn)
			break loop

		case f := <-netCh:
			if code, done := c.handleStreamNetEvent(conn, f); done {
				exitCode = code
				break loop
			}

		case l, ok := <-lines:
			if !ok || l.eof {
				exitCode = streamBye(c, conn)
				break loop
			}
			if code, done := c.handleStreamLine(conn, l.line); done {
				exitCode = code
				break loop
			}
		}
	}
	return exitCode
}

// handleStreamNetEvent processes one receive-goroutine event: either a
// decoded frame or a terminal read error (EOF or otherwise).
func (c *core) handleStreamNetEvent(conn *transport.Stream, f transport.Frame) (code int, done bool) {
	if f.Err != nil {
		if errors.Is(f.Err, io.EOF) {
			c.log.Debug("server closed connection")
			if !c.byeReceived {
				code = 1
			}
		} else {
			c.renderUserError(fmt.Errorf("%w: %v", protocol.ErrTransport, f.Err))
			code = 1
		}
		c.fsm.Terminate()
		return code, true
	}
	return c.handleStreamFrame(conn, f.Payload)
}

// handleStreamFrame decodes and acts on one line received from the
// server. done is true when the loop must stop (ERR/BYE received, or a
// protocol violation).
func (c *core) handleStreamFrame(conn *transport.Stream, line []byte) (code int, done bool) {
	m := text.Decode(string(line))
	c.log.Trace("recv: %s", line)

	if m.Kind == protocol.UNKNOWN {
		c.renderUserError(fmt.Errorf("%w: unrecognised server message", protocol.ErrMalformedFrame))
		c.faultShutdown(conn, "malformed message received")
		return 1, true
	}

	if err := c.fsm.Received(m.Kind, replyOutcome(m)); err != nil {
		c.renderUserError(err)
		c.faultShutdown(conn, "unexpected message for current state")
		return 1, true
	}

	switch m.Kind {
	case protocol.MSG:
		c.renderIncomingMessage(m)
	case protocol.REPLY:
		c.renderReply(m)
	case protocol.ERR:
		c.renderIncomingError(m)
		return 0, true
	case protocol.BYE:
		c.byeReceived = true
		return 0, true
	}
	return 0, false
}

// handleStreamLine parses and, if it produces traffic, sends one terminal
// line.
func (c *core) handleStreamLine(conn *transport.Stream, line string) (code int, done bool) {
	cmd, err := c.parseCommand(line)
	if err != nil {
		c.renderUserError(fmt.Errorf("%w: %v", protocol.ErrUserInput, err))
		return 0, false
	}
	if cmd == nil {
		return 0, false
	}

	msg, send, err := c.toMessage(cmd)
	if err != nil {
		c.renderUserError(err)
		return 0, false
	}
	if !send {
		return 0, false
	}

	if !c.fsm.CanSend(msg.Kind) {
		c.renderUserError(fmt.Errorf("%w: cannot send %s in state %s", protocol.ErrFSMLocal, msg.Kind, c.fsm.State()))
		return 0, false
	}

	payload, err := text.Encode(msg)
	if err != nil {
		c.renderUserError(err)
		return 0, false
	}
	if err := conn.Send(payload); err != nil {
		c.renderUserError(fmt.Errorf("%w: %v", protocol.ErrTransport, err))
		return 1, true
	}
	c.log.Trace("sent: %s", payload)
	c.fsm.Sent(msg.Kind)
	c.applyPostSend(cmd)
	return 0, false
}

// streamBye sends a best-effort BYE if the FSM permits it, then terminates.
// Local termination via EOF or interrupt is not itself an error.
func streamBye(c *core, conn *transport.Stream) int {
	if c.fsm.State() == fsm.Open || c.fsm.State() == fsm.Join {
		msg := protocol.Message{Kind: protocol.BYE, DisplayName: c.id.DisplayName}
		if payload, err := text.Encode(msg); err == nil {
			_ = conn.Send(payload)
		}
	}
	c.fsm.Terminate()
	return 0
}

// faultShutdown implements the local-fault recovery policy (remote FSM
// violation, malformed frame, timeout exhausted): emit an ERR describing
// the fault, then a BYE, then terminate.
func (c *core) faultShutdown(conn *transport.Stream, reason string) {
	if payload, err := text.Encode(protocol.Message{Kind: protocol.ERR, DisplayName: c.id.DisplayName, Content: reason}); err == nil {
		_ = conn.Send(payload)
	}
	if payload, err := text.Encode(protocol.Message{Kind: protocol.BYE, DisplayName: c.id.DisplayName}); err == nil {
		_ = conn.Send(payload)
	}
	c.fsm.Terminate()
}
