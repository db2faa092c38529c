// Package reliability implements the datagram-transport reliability layer:
// identifier assignment, bounded retransmission, reply waiting, inbound
// confirmation, duplicate suppression and dynamic port rebind. It is the
// datagram-transport-only counterpart to the stream transport's bare
// write-and-forget send.
package reliability

import (
	"net"
	"time"

	"github.com/Mr-Annonym/ipk24chat-client/internal/clog"
	wbinary "github.com/Mr-Annonym/ipk24chat-client/internal/protocol/binary"
	"github.com/Mr-Annonym/ipk24chat-client/internal/config"
	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
	"github.com/Mr-Annonym/ipk24chat-client/internal/transport"
)

// Datagram is the subset of transport.Datagram the engine needs, kept as
// an interface so tests can substitute an in-memory double.
type Datagram interface {
	Send([]byte) error
	Rebind(*net.UDPAddr)
	Remote() *net.UDPAddr
}

// Frame is one datagram read off the wire by the caller's receive
// goroutine, handed to the engine for processing.
type Frame struct {
	Payload []byte
	From    *net.UDPAddr
	Err     error
}

// Engine tracks per-session reliability state.
type Engine struct {
	log            clog.Clog
	cfg            config.Reliability
	nextOutgoingID uint16
	seenServerIDs  map[uint16]struct{}
	rebound        bool
}

// New returns an Engine with a fresh (zero) outgoing id counter and an
// empty seen-id set, as a new session must.
func New(cfg config.Reliability, log clog.Clog) *Engine {
	return &Engine{cfg: cfg, log: log, seenServerIDs: make(map[uint16]struct{})}
}

// NextID returns the next identifier to stamp on a locally originated
// non-CONFIRM message, post-incrementing the counter.
func (e *Engine) NextID() uint16 {
	id := e.nextOutgoingID
	e.nextOutgoingID++
	return id
}

// handleInbound applies the inbound confirmation policy, rebind, and
// duplicate suppression to one received frame. It sends a CONFIRM for any
// non-CONFIRM frame with a complete 3-byte header, malformed or not, before
// returning. It returns:
//   - confirmedRef, true  if the frame was a CONFIRM
//   - msg, true           if the frame is a Deliverable the caller must act on
//     (a malformed frame is delivered as Kind UNKNOWN)
//   - zero value, false   if the frame was fully handled here (PING, or a
//     duplicate MSG)
func (e *Engine) handleInbound(dg Datagram, f Frame) (confirmedRef uint16, isConfirm bool, msg protocol.Message, deliverable bool) {
	if !e.rebound && f.From != nil {
		dg.Rebind(f.From)
		e.rebound = true
		e.log.Debug("rebound to server endpoint %s", f.From)
	}

	m, err := wbinary.Decode(f.Payload)
	if err != nil {
		// A malformed frame that still carries a header is confirmed using
		// the msgId bytes of that header.
		if len(f.Payload) >= 3 && f.Payload[0] != 0x00 {
			e.sendConfirm(dg, uint16(f.Payload[1])<<8|uint16(f.Payload[2]))
		}
		// Malformed frames are surfaced to the caller via the zero Message
		// with Kind UNKNOWN; the caller (event loop) treats that as a
		// protocol violation.
		return 0, false, protocol.Message{Kind: protocol.UNKNOWN}, true
	}

	if m.Kind == protocol.CONFIRM {
		return m.RefMsgID, true, protocol.Message{}, false
	}

	// Every non-CONFIRM frame is answered immediately, before any other
	// outbound traffic triggered by this receipt.
	e.sendConfirm(dg, m.MsgID)

	switch m.Kind {
	case protocol.PING:
		return 0, false, protocol.Message{}, false
	case protocol.MSG:
		if _, seen := e.seenServerIDs[m.MsgID]; seen {
			return 0, false, protocol.Message{}, false
		}
		e.seenServerIDs[m.MsgID] = struct{}{}
		return 0, false, m, true
	default: // REPLY, ERR, BYE
		return 0, false, m, true
	}
}

// HandleIdle processes one inbound frame when the event loop isn't
// currently inside SendReliable/AwaitReply (no outstanding request). Any
// CONFIRM frame is simply absorbed (there is nothing waiting for it);
// everything else goes through the same confirmation/dedup policy as the
// waiting paths.
func (e *Engine) HandleIdle(dg Datagram, f Frame) (msg protocol.Message, deliverable bool) {
	_, _, msg, deliverable = e.handleInbound(dg, f)
	return msg, deliverable
}

func (e *Engine) sendConfirm(dg Datagram, refID uint16) {
	b, _ := wbinary.Encode(protocol.Message{Kind: protocol.CONFIRM, RefMsgID: refID})
	if err := dg.Send(b); err != nil {
		e.log.Warn("failed to send CONFIRM for %d: %v", refID, err)
	}
}

// OnDeliver is called by SendReliable/AwaitReply for every message the
// caller must act on that isn't the one being waited for (e.g. a MSG
// arriving while an AUTH reply is pending). The caller renders or ignores
// it; OnDeliver never affects the wait's outcome.
type OnDeliver func(protocol.Message)

// SendReliable assigns msg a fresh id, encodes and sends it, then retries
// identically until a matching CONFIRM arrives or the retransmission
// budget (cfg.MaxRetransmissions) is exhausted. inbound is read for
// incoming frames while waiting; any Deliverable surfaced along the way is
// passed to onDeliver. Returns the assigned id and, on exhaustion,
// protocol.ErrTimeoutExhausted.
func (e *Engine) SendReliable(dg Datagram, inbound <-chan Frame, msg protocol.Message, onDeliver OnDeliver) (uint16, error) {
	msg.MsgID = e.NextID()
	payload, err := wbinary.Encode(msg)
	if err != nil {
		return msg.MsgID, err
	}
	if err := dg.Send(payload); err != nil {
		return msg.MsgID, err
	}

	attempts := 1
	timer := time.NewTimer(e.cfg.ConfirmTimeout)
	defer timer.Stop()
	for {
		select {
		case f, ok := <-inbound:
			if !ok {
				return msg.MsgID, protocol.ErrTransport
			}
			if f.Err != nil {
				return msg.MsgID, protocol.ErrTransport
			}
			ref, isConfirm, deliverableMsg, deliverable := e.handleInbound(dg, f)
			if isConfirm && ref == msg.MsgID {
				return msg.MsgID, nil
			}
			if deliverable && onDeliver != nil {
				onDeliver(deliverableMsg)
			}
		case <-timer.C:
			if attempts > e.cfg.MaxRetransmissions {
				return msg.MsgID, protocol.ErrTimeoutExhausted
			}
			e.log.Debug("retransmitting msgId %d, retransmission %d/%d", msg.MsgID, attempts, e.cfg.MaxRetransmissions)
			attempts++
			if err := dg.Send(payload); err != nil {
				return msg.MsgID, err
			}
			timer.Reset(e.cfg.ConfirmTimeout)
		}
	}
}

// AwaitReply waits up to cfg.ReplyTimeout (tracked as a monotonic
// deadline, not reset by intervening activity) for a REPLY whose RefMsgID
// equals refID. Unrelated frames are processed inline via onDeliver; an
// unmatched REPLY is silently ignored.
func (e *Engine) AwaitReply(dg Datagram, inbound <-chan Frame, refID uint16, onDeliver OnDeliver) (protocol.Message, error) {
	deadline := time.Now().Add(e.cfg.ReplyTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return protocol.Message{}, protocol.ErrTimeoutExhausted
		}
		timer := time.NewTimer(remaining)
		select {
		case f, ok := <-inbound:
			timer.Stop()
			if !ok || f.Err != nil {
				return protocol.Message{}, protocol.ErrTransport
			}
			_, isConfirm, msg, deliverable := e.handleInbound(dg, f)
			if isConfirm {
				continue
			}
			if !deliverable {
				continue
			}
			if msg.Kind == protocol.REPLY {
				if msg.RefMsgID == refID {
					return msg, nil
				}
				continue // unmatched REPLY: ignored
			}
			if onDeliver != nil {
				onDeliver(msg)
			}
		case <-timer.C:
			return protocol.Message{}, protocol.ErrTimeoutExhausted
		}
	}
}

// ReceiveLoop is the lone reader of dg's socket, run in its own goroutine; it
// feeds every datagram (or terminal read error) into out. The event loop
// never reads the socket itself, preserving one reader per socket.
func ReceiveLoop(dg *transport.Datagram, out chan<- Frame) {
	for {
		payload, from, err := dg.Receive()
		if err != nil {
			out <- Frame{Err: err}
			return
		}
		out <- Frame{Payload: payload, From: from}
	}
}
