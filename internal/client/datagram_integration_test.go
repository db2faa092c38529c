package client

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Annonym/ipk24chat-client/internal/clog"
	"github.com/Mr-Annonym/ipk24chat-client/internal/config"
	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
	wbinary "github.com/Mr-Annonym/ipk24chat-client/internal/protocol/binary"
)

func listenUDPLoopback(t *testing.T) (*net.UDPConn, string, uint16) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	addr := conn.LocalAddr().(*net.UDPAddr)
	return conn, addr.IP.String(), uint16(addr.Port)
}

func testReliability() config.Reliability {
	r := config.Reliability{ConfirmTimeout: 100 * time.Millisecond, MaxRetransmissions: 3, ReplyTimeout: 500 * time.Millisecond}
	_ = r.Valid()
	return r
}

func runDatagramAsync(host string, port uint16, rel config.Reliability, in io.Reader, out io.Writer) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- RunDatagram(config.Dial{Host: host, Port: port}, rel, in, out, clog.Clog{})
	}()
	return done
}

func sendFrame(t *testing.T, conn *net.UDPConn, to *net.UDPAddr, m protocol.Message) {
	t.Helper()
	payload, err := wbinary.Encode(m)
	require.NoError(t, err)
	_, err = conn.WriteToUDP(payload, to)
	require.NoError(t, err)
}

func recvFrame(t *testing.T, conn *net.UDPConn) (protocol.Message, *net.UDPAddr) {
	t.Helper()
	buf := make([]byte, 65535)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, from, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	m, err := wbinary.Decode(buf[:n])
	require.NoError(t, err)
	return m, from
}

func TestRunDatagram_HappyPathAuthThenServerBye(t *testing.T) {
	conn, host, port := listenUDPLoopback(t)
	defer conn.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)

		auth, client := recvFrame(t, conn)
		assert.Equal(t, protocol.AUTH, auth.Kind)
		sendFrame(t, conn, client, protocol.Message{Kind: protocol.CONFIRM, RefMsgID: auth.MsgID})
		sendFrame(t, conn, client, protocol.Message{Kind: protocol.REPLY, MsgID: 100, Ok: true, RefMsgID: auth.MsgID, Content: "welcome"})

		confirm, _ := recvFrame(t, conn) // confirms the REPLY
		assert.Equal(t, protocol.CONFIRM, confirm.Kind)

		sendFrame(t, conn, client, protocol.Message{Kind: protocol.MSG, MsgID: 101, DisplayName: "srv", Content: "hi there"})
		confirm, _ = recvFrame(t, conn) // confirms the MSG
		assert.Equal(t, protocol.CONFIRM, confirm.Kind)

		sendFrame(t, conn, client, protocol.Message{Kind: protocol.BYE, MsgID: 102, DisplayName: "srv"})
	}()

	in, inWriter := io.Pipe()
	defer inWriter.Close()
	var out bytes.Buffer

	done := runDatagramAsync(host, port, testReliability(), in, &out)
	_, err := inWriter.Write([]byte("/auth bob secret Bob\n"))
	require.NoError(t, err)

	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("RunDatagram did not return")
	}
	<-serverDone

	assert.Contains(t, out.String(), "Action Success: welcome")
	assert.Contains(t, out.String(), "srv: hi there")
}

func TestRunDatagram_NoConfirmExhaustsRetriesAndExitsNonZero(t *testing.T) {
	conn, host, port := listenUDPLoopback(t)
	defer conn.Close() // server never replies

	in, inWriter := io.Pipe()
	defer inWriter.Close()
	var out bytes.Buffer

	rel := config.Reliability{ConfirmTimeout: 20 * time.Millisecond, MaxRetransmissions: 2, ReplyTimeout: 200 * time.Millisecond}
	_ = rel.Valid()

	done := runDatagramAsync(host, port, rel, in, &out)
	_, err := inWriter.Write([]byte("/auth bob secret Bob\n"))
	require.NoError(t, err)

	select {
	case code := <-done:
		assert.Equal(t, 1, code)
	case <-time.After(3 * time.Second):
		t.Fatal("RunDatagram did not return")
	}
	assert.Contains(t, out.String(), "timeout exhausted")
}
