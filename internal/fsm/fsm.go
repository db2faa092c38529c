// Package fsm implements the client state machine: which message kinds
// may be sent or received in each state, and the state transitions that
// sending or receiving them triggers.
package fsm

import (
	"fmt"

	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
)

// State is one of the five closed client states.
type State int

const (
	Start State = iota
	Auth
	Open
	Join
	End
)

func (s State) String() string {
	switch s {
	case Start:
		return "START"
	case Auth:
		return "AUTH"
	case Open:
		return "OPEN"
	case Join:
		return "JOIN"
	case End:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// FSM tracks the current state and enforces the send/receive tables.
// It holds no transport or codec state; it is pure bookkeeping, wired into
// the event loop by the caller.
type FSM struct {
	state State
}

// New returns an FSM in the initial START state.
func New() *FSM { return &FSM{state: Start} }

// State returns the current state.
func (f *FSM) State() State { return f.state }

// CanSend reports whether kind may be sent in the current state.
func (f *FSM) CanSend(kind protocol.Kind) bool {
	switch f.state {
	case Start:
		return kind == protocol.AUTH
	case Auth:
		return kind == protocol.AUTH || kind == protocol.ERR
	case Open:
		return kind == protocol.MSG || kind == protocol.ERR || kind == protocol.JOIN
	case Join, End:
		return false
	default:
		return false
	}
}

// Sent advances the state machine after kind has actually been sent. The
// caller must have checked CanSend first; Sent does not re-validate.
func (f *FSM) Sent(kind protocol.Kind) {
	switch {
	case f.state == Start && kind == protocol.AUTH:
		f.state = Auth
	case f.state == Open && kind == protocol.JOIN:
		f.state = Join
	}
}

// ReplyOutcome distinguishes a positive from a negative REPLY for Received.
type ReplyOutcome int

const (
	NotReply ReplyOutcome = iota
	ReplyOK
	ReplyNOK
)

// Received reports whether kind (with the given reply outcome, if kind is
// REPLY) is permitted to arrive in the current state, and advances the
// state machine if so. ERR and BYE are always permitted and drive orderly
// termination regardless of state.
func (f *FSM) Received(kind protocol.Kind, outcome ReplyOutcome) error {
	if kind == protocol.ERR || kind == protocol.BYE {
		f.state = End
		return nil
	}

	switch f.state {
	case Auth:
		if kind == protocol.REPLY {
			if outcome == ReplyOK {
				f.state = Open
			}
			// NOK: stays in AUTH.
			return nil
		}
	case Open:
		if kind == protocol.MSG {
			return nil
		}
	case Join:
		if kind == protocol.MSG {
			return nil
		}
		if kind == protocol.REPLY {
			f.state = Open
			return nil
		}
	}
	return fmt.Errorf("%w: received %s in state %s", protocol.ErrFSMRemote, kind, f.state)
}

// Terminate forces the state machine into END, used for local faults
// (malformed frame, timeout exhausted, interrupt, EOF) that do not arrive
// as a received message kind.
func (f *FSM) Terminate() { f.state = End }
