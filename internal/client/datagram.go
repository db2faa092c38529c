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
	"github.com/Mr-Annonym/ipk24chat-client/internal/reliability"
	"github.com/Mr-Annonym/ipk24chat-client/internal/transport"
)

// RunDatagram drives the event loop over the datagram (UDP) transport:
// open the socket, then multiplex terminal lines and reliability-engine
// traffic until BYE/ERR, EOF or an interrupt. Unlike the stream transport
// every send goes through the reliability engine's retransmission and,
// for AUTH/JOIN, reply-wait.
func RunDatagram(dial config.Dial, rel config.Reliability, in io.Reader, out io.Writer, log clog.Clog) int {
	addr := net.JoinHostPort(dial.Host, strconv.Itoa(int(dial.Port)))
	dg, err := transport.DialDatagram(addr)
	if err != nil {
		fmt.Fprintf(out, "ERROR: %s\n", err)
		return 1
	}
	defer dg.Close()

	c := newCore(out, log)
	eng := reliability.New(rel, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	lines := inputLines(in)

	inbound := make(chan reliability.Frame)
	go reliability.ReceiveLoop(dg, inbound)

	exitCode := 0
loop:
	for {
		// Fixed dispatch priority (interrupt, network, terminal): drain any
		// pending interrupt, then any pending network frame, before
		// considering terminal input.
		select {
		case <-sigCh:
			c.log.Debug("interrupt received")
			exitCode = datagramBye(c, eng, dg, inbound)
			break loop
		default:
		}

		select {
		case f := <-inbound:
			if code, done := c.handleDatagramNetEvent(eng, dg, inbound, f); done {
				exitCode = code
				break loop
			}
			continue loop
		default:
		}

		select {
		case <-sigCh:
			c.log.Debug("interrupt received")
			exitCode = datagramBye(c, eng, dg, inbound)
			break loop

		case f := <-inbound:
			if code, done := c.handleDatagramNetEvent(eng, dg, inbound, f); done {
				exitCode = code
				break loop
			}

		case l, ok := <-lines:
			if !ok || l.eof {
				exitCode = datagramBye(c, eng, dg, inbound)
				break loop
			}
			if code, done := c.handleDatagramLine(eng, dg, inbound, l.line); done {
				exitCode = code
				break loop
			}
		}
	}
	return exitCode
}

// handleDatagramNetEvent processes one receive-goroutine event: either a
// frame to run through the reliability engine, or a terminal socket error.
func (c *core) handleDatagramNetEvent(eng *reliability.Engine, dg *transport.Datagram, inbound <-chan reliability.Frame, f reliability.Frame) (code int, done bool) {
	if f.Err != nil {
		c.renderUserError(fmt.Errorf("%w: %v", protocol.ErrTransport, f.Err))
		c.fsm.Terminate()
		return 1, true
	}
	return c.handleDatagramFrame(eng, dg, inbound, f)
}

// handleDatagramFrame is invoked for a frame that arrived while the loop
// wasn't inside SendReliable/AwaitReply (no outstanding request, e.g. a
// server-initiated MSG in the OPEN state).
func (c *core) handleDatagramFrame(eng *reliability.Engine, dg *transport.Datagram, inbound <-chan reliability.Frame, f reliability.Frame) (code int, done bool) {
	m, deliverable := eng.HandleIdle(dg, f)
	if !deliverable {
		return 0, false
	}
	return c.deliver(eng, dg, inbound, m)
}

// deliver applies the FSM and renders one message the engine has decided
// the event loop must act on, whether it arrived inline during a wait or
// idle. It is the single place that both RunDatagram's idle path and its
// onDeliver callbacks route through.
func (c *core) deliver(eng *reliability.Engine, dg *transport.Datagram, inbound <-chan reliability.Frame, m protocol.Message) (code int, done bool) {
	if m.Kind == protocol.UNKNOWN {
		c.renderUserError(fmt.Errorf("%w: unrecognised or malformed datagram", protocol.ErrMalformedFrame))
		c.faultShutdownDatagram(eng, dg, inbound, "malformed datagram received")
		return 1, true
	}

	if err := c.fsm.Received(m.Kind, replyOutcome(m)); err != nil {
		c.renderUserError(err)
		c.faultShutdownDatagram(eng, dg, inbound, "unexpected message for current state")
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
		return 0, true
	}
	return 0, false
}

// handleDatagramLine parses one terminal line and, if it produces
// outgoing traffic, drives it through the reliability engine: a bare
// SendReliable for MSG, or SendReliable followed by AwaitReply for
// AUTH/JOIN.
func (c *core) handleDatagramLine(eng *reliability.Engine, dg *transport.Datagram, inbound <-chan reliability.Frame, line string) (code int, done bool) {
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

	var deliverCode int
	var deliverDone bool
	onDeliver := func(m protocol.Message) {
		if deliverDone {
			return
		}
		if code, done := c.deliver(eng, dg, inbound, m); done {
			deliverCode, deliverDone = code, true
		}
	}

	_, err = eng.SendReliable(dg, inbound, msg, onDeliver)
	if err != nil {
		if errors.Is(err, protocol.ErrTimeoutExhausted) {
			c.renderUserError(fmt.Errorf("%w: no CONFIRM for %s", protocol.ErrTimeoutExhausted, msg.Kind))
			c.faultShutdownDatagram(eng, dg, inbound, "no CONFIRM received")
		} else {
			c.renderUserError(fmt.Errorf("%w: %v", protocol.ErrTransport, err))
			c.fsm.Terminate()
		}
		return 1, true
	}
	c.fsm.Sent(msg.Kind)
	c.applyPostSend(cmd)
	if deliverDone {
		return deliverCode, true
	}

	if msg.Kind != protocol.AUTH && msg.Kind != protocol.JOIN {
		return 0, false
	}

	// AUTH/JOIN additionally wait for the matching REPLY.
	reply, err := eng.AwaitReply(dg, inbound, msg.MsgID, onDeliver)
	if err != nil {
		if errors.Is(err, protocol.ErrTimeoutExhausted) {
			c.renderUserError(fmt.Errorf("%w: no REPLY for %s", protocol.ErrTimeoutExhausted, msg.Kind))
			c.faultShutdownDatagram(eng, dg, inbound, "no REPLY received")
		} else {
			c.renderUserError(fmt.Errorf("%w: %v", protocol.ErrTransport, err))
			c.fsm.Terminate()
		}
		return 1, true
	}
	if deliverDone {
		return deliverCode, true
	}
	return c.deliver(eng, dg, inbound, reply)
}

// faultShutdownDatagram implements the local-fault recovery policy
// (remote FSM violation, malformed frame, timeout exhausted): best-effort
// ERR then BYE, then terminate. Both sends go through the engine so they
// carry fresh ids and get at least one retransmission attempt, but their
// outcome is not allowed to change the exit path.
func (c *core) faultShutdownDatagram(eng *reliability.Engine, dg *transport.Datagram, inbound <-chan reliability.Frame, reason string) {
	errMsg := protocol.Message{Kind: protocol.ERR, DisplayName: c.id.DisplayName, Content: reason}
	_, _ = eng.SendReliable(dg, inbound, errMsg, func(protocol.Message) {})
	byeMsg := protocol.Message{Kind: protocol.BYE, DisplayName: c.id.DisplayName}
	_, _ = eng.SendReliable(dg, inbound, byeMsg, func(protocol.Message) {})
	c.fsm.Terminate()
}

// datagramBye sends a best-effort BYE if the FSM permits it. It does not
// block indefinitely: EOF/interrupt termination always exits 0 once the
// engine's bounded retransmission budget is spent.
func datagramBye(c *core, eng *reliability.Engine, dg *transport.Datagram, inbound <-chan reliability.Frame) int {
	if c.fsm.State() == fsm.Open || c.fsm.State() == fsm.Join {
		msg := protocol.Message{Kind: protocol.BYE, DisplayName: c.id.DisplayName}
		_, _ = eng.SendReliable(dg, inbound, msg, func(protocol.Message) {})
	}
	c.fsm.Terminate()
	return 0
}
