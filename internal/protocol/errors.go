package protocol

import "errors"

// Sentinel faults, one per recoverable error kind the client can hit. Call
// sites use errors.Is against these instead of introducing a type hierarchy,
// following the asdu.ErrXxx sentinel-error convention.
var (
	// ErrUserInput: malformed or unrecognised local command line.
	ErrUserInput = errors.New("ipk24chat: user input error")

	// ErrFSMLocal: the local side tried to send a message kind the current
	// FSM state does not permit.
	ErrFSMLocal = errors.New("ipk24chat: local FSM violation")

	// ErrFSMRemote: the server sent a message kind the current FSM state
	// does not permit to receive.
	ErrFSMRemote = errors.New("ipk24chat: remote FSM violation")

	// ErrMalformedFrame: a wire frame failed to decode.
	ErrMalformedFrame = errors.New("ipk24chat: malformed frame")

	// ErrTransport: the underlying socket failed.
	ErrTransport = errors.New("ipk24chat: transport failure")

	// ErrTimeoutExhausted: a bounded wait ran out without success: the
	// retransmission budget for a CONFIRM, or the reply timeout for a REPLY.
	ErrTimeoutExhausted = errors.New("ipk24chat: timeout exhausted")
)

// hasControlByte reports whether s contains a NUL, CR or LF byte, the
// framing-breaking bytes that no field may carry on either transport.
func hasControlByte(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 0, '\r', '\n':
			return true
		}
	}
	return false
}

// Invalid reports whether s violates the displayName/username/channelId
// rule: non-empty, no embedded NUL/CR/LF. Other bytes, including spaces and
// non-printable characters, are not checked.
func Invalid(s string) bool {
	return s == "" || hasControlByte(s)
}

// ContentInvalid reports whether s violates the content rule: spaces are
// allowed and the empty string is allowed, but no NUL/CR/LF.
func ContentInvalid(s string) bool {
	return hasControlByte(s)
}
