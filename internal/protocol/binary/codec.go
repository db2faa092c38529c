// Package binary implements the datagram-transport (UDP) wire grammar:
// type byte, 16-bit big-endian msgId, then null-terminated strings and
// fixed-width fields. The encoder/decoder pair follows the asdu codec
// style: a small append/decode builder over a byte slice rather than
// reflection or a generic serialization library.
package binary

import (
	"encoding/binary"
	"fmt"

	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
)

// Wire type codes.
const (
	typeConfirm byte = 0x00
	typeReply   byte = 0x01
	typeAuth    byte = 0x02
	typeJoin    byte = 0x03
	typeMsg     byte = 0x04
	typePing    byte = 0xFD
	typeErr     byte = 0xFE
	typeBye     byte = 0xFF
)

// builder accumulates an outgoing frame the way asdu.ASDU accumulates an
// information object: a byte slice plus small typed Append methods.
type builder struct {
	buf []byte
}

func newBuilder(kind byte, msgID uint16) *builder {
	b := &builder{buf: make([]byte, 3, 16)}
	b.buf[0] = kind
	binary.BigEndian.PutUint16(b.buf[1:3], msgID)
	return b
}

func (b *builder) appendString(s string) *builder {
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return b
}

func (b *builder) appendByte(v byte) *builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *builder) appendUint16(v uint16) *builder {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *builder) bytes() []byte { return b.buf }

// Encode renders m as a datagram-transport frame.
func Encode(m protocol.Message) ([]byte, error) {
	switch m.Kind {
	case protocol.CONFIRM:
		return newBuilder(typeConfirm, m.RefMsgID).bytes(), nil
	case protocol.REPLY:
		var result byte
		if m.Ok {
			result = 1
		}
		b := newBuilder(typeReply, m.MsgID).appendByte(result).appendUint16(m.RefMsgID).appendString(m.Content)
		return b.bytes(), nil
	case protocol.AUTH:
		b := newBuilder(typeAuth, m.MsgID).appendString(m.Username).appendString(m.DisplayName).appendString(m.Secret)
		return b.bytes(), nil
	case protocol.JOIN:
		b := newBuilder(typeJoin, m.MsgID).appendString(m.ChannelID).appendString(m.DisplayName)
		return b.bytes(), nil
	case protocol.MSG:
		b := newBuilder(typeMsg, m.MsgID).appendString(m.DisplayName).appendString(m.Content)
		return b.bytes(), nil
	case protocol.PING:
		return newBuilder(typePing, m.MsgID).bytes(), nil
	case protocol.ERR:
		b := newBuilder(typeErr, m.MsgID).appendString(m.DisplayName).appendString(m.Content)
		return b.bytes(), nil
	case protocol.BYE:
		b := newBuilder(typeBye, m.MsgID).appendString(m.DisplayName)
		return b.bytes(), nil
	default:
		return nil, fmt.Errorf("%w: kind %s is not representable on the datagram transport", protocol.ErrMalformedFrame, m.Kind)
	}
}

// reader walks a received frame's payload the way asdu decodes an
// information object: DecodeXxx methods consume from the front and panic
// on underrun, caught once by Decode's recover.
type reader struct {
	buf []byte
}

func (r *reader) string() string {
	i := indexByte(r.buf, 0)
	if i < 0 {
		panic(protocol.ErrMalformedFrame)
	}
	s := string(r.buf[:i])
	r.buf = r.buf[i+1:]
	return s
}

func (r *reader) byte() byte {
	if len(r.buf) < 1 {
		panic(protocol.ErrMalformedFrame)
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v
}

func (r *reader) uint16() uint16 {
	if len(r.buf) < 2 {
		panic(protocol.ErrMalformedFrame)
	}
	v := binary.BigEndian.Uint16(r.buf[:2])
	r.buf = r.buf[2:]
	return v
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Decode parses one received datagram into a Message. Frames shorter than
// the 3-byte header, frames with an unterminated string field, and unknown
// type codes all report protocol.ErrMalformedFrame.
func Decode(frame []byte) (m protocol.Message, err error) {
	if len(frame) < 3 {
		return protocol.Message{}, fmt.Errorf("%w: frame shorter than the 3-byte header", protocol.ErrMalformedFrame)
	}
	defer func() {
		if rec := recover(); rec != nil {
			m, err = protocol.Message{}, fmt.Errorf("%w: truncated field", protocol.ErrMalformedFrame)
		}
	}()

	typ := frame[0]
	msgID := binary.BigEndian.Uint16(frame[1:3])
	r := &reader{buf: frame[3:]}

	switch typ {
	case typeConfirm:
		return protocol.Message{Kind: protocol.CONFIRM, RefMsgID: msgID}, nil
	case typeReply:
		result := r.byte()
		ref := r.uint16()
		content := r.string()
		return protocol.Message{Kind: protocol.REPLY, MsgID: msgID, Ok: result != 0, RefMsgID: ref, Content: content}, nil
	case typeAuth:
		username := r.string()
		displayName := r.string()
		secret := r.string()
		return protocol.Message{Kind: protocol.AUTH, MsgID: msgID, Username: username, DisplayName: displayName, Secret: secret}, nil
	case typeJoin:
		channelID := r.string()
		displayName := r.string()
		return protocol.Message{Kind: protocol.JOIN, MsgID: msgID, ChannelID: channelID, DisplayName: displayName}, nil
	case typeMsg:
		displayName := r.string()
		content := r.string()
		return protocol.Message{Kind: protocol.MSG, MsgID: msgID, DisplayName: displayName, Content: content}, nil
	case typePing:
		return protocol.Message{Kind: protocol.PING, MsgID: msgID}, nil
	case typeErr:
		displayName := r.string()
		content := r.string()
		return protocol.Message{Kind: protocol.ERR, MsgID: msgID, DisplayName: displayName, Content: content}, nil
	case typeBye:
		displayName := r.string()
		return protocol.Message{Kind: protocol.BYE, MsgID: msgID, DisplayName: displayName}, nil
	default:
		return protocol.Message{}, fmt.Errorf("%w: unknown type code 0x%02X", protocol.ErrMalformedFrame, typ)
	}
}
