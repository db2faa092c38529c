// Package transport implements the two socket adapters: a stream (TCP)
// adapter with a line-accumulation buffer, and a datagram (UDP) adapter
// that tracks the server's endpoint. Both adapters hand raw frames up to
// the caller; wire decoding happens in internal/protocol/text and
// internal/protocol/binary.
package transport

import (
	"bytes"
	"fmt"
	"net"
	"time"
)

// Frame is one received unit: a stream line (without CR LF) or one
// datagram's payload.
type Frame struct {
	Payload []byte
	Err     error
}

// Stream wraps a net.Conn (TCP) with a rolling accumulation buffer that
// splits incoming bytes on CR LF. Partial trailing bytes are retained
// across reads.
type Stream struct {
	conn net.Conn
	acc  []byte
}

// DialStream connects to addr over TCP.
func DialStream(addr string) (*Stream, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Stream{conn: conn}, nil
}

// Close releases the underlying socket.
func (s *Stream) Close() error { return s.conn.Close() }

// Send writes b to the connection verbatim.
func (s *Stream) Send(b []byte) error {
	_, err := s.conn.Write(b)
	return err
}

// SetReadDeadline arranges for a blocked or future Read to fail with a
// timeout error once time t has passed.
func (s *Stream) SetReadDeadline(t time.Time) error { return s.conn.SetReadDeadline(t) }

const crlf = "\r\n"

// ReadFrames blocks for at least one read syscall, then returns zero or
// more complete CR-LF-terminated lines extracted from the bytes read plus
// whatever was left over from a previous partial read. A zero-length
// result with a nil error means the read produced only a partial trailing
// fragment, retained internally for the next call. A non-nil error
// (including io.EOF) means the connection is no longer readable.
func (s *Stream) ReadFrames() ([][]byte, error) {
	buf := make([]byte, 4096)
	n, err := s.conn.Read(buf)
	if n > 0 {
		s.acc = append(s.acc, buf[:n]...)
	}
	var lines [][]byte
	for {
		idx := bytes.Index(s.acc, []byte(crlf))
		if idx < 0 {
			break
		}
		line := make([]byte, idx)
		copy(line, s.acc[:idx])
		lines = append(lines, line)
		s.acc = s.acc[idx+len(crlf):]
	}
	if err != nil {
		return lines, err
	}
	return lines, nil
}

// Datagram wraps a net.UDPConn (UDP). It is unconnected: Send targets the
// current remote endpoint, which the reliability engine may update after
// the server's first reply (dynamic port rebind).
type Datagram struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
}

// DialDatagram opens a UDP socket targeting addr (the configured welcome
// port).
func DialDatagram(addr string) (*Datagram, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("open udp socket: %w", err)
	}
	return &Datagram{conn: conn, remote: raddr}, nil
}

// Close releases the underlying socket.
func (d *Datagram) Close() error { return d.conn.Close() }

// Remote returns the current destination endpoint.
func (d *Datagram) Remote() *net.UDPAddr { return d.remote }

// Rebind atomically updates the destination endpoint.
func (d *Datagram) Rebind(addr *net.UDPAddr) { d.remote = addr }

// Send writes b to the current remote endpoint.
func (d *Datagram) Send(b []byte) error {
	_, err := d.conn.WriteToUDP(b, d.remote)
	return err
}

// SetReadDeadline bounds the next Receive call.
func (d *Datagram) SetReadDeadline(t time.Time) error { return d.conn.SetReadDeadline(t) }

// Receive blocks for at most one datagram, returning its payload and
// source address.
func (d *Datagram) Receive() ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, 65535)
	n, addr, err := d.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], addr, nil
}
