package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_ReadFrames_SplitsOnCRLF(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := &Stream{conn: client}

	go func() {
		server.Write([]byte("AUTH a AS b USING c\r\nBYE FROM b\r\n"))
	}()

	lines, err := s.ReadFrames()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "AUTH a AS b USING c", string(lines[0]))
	assert.Equal(t, "BYE FROM b", string(lines[1]))
}

func TestStream_ReadFrames_RetainsPartialTrailingBytes(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := &Stream{conn: client}

	go func() { server.Write([]byte("BYE FROM ")) }()
	lines, err := s.ReadFrames()
	require.NoError(t, err)
	assert.Empty(t, lines)

	go func() { server.Write([]byte("b\r\n")) }()
	lines, err = s.ReadFrames()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "BYE FROM b", string(lines[0]))
}

func TestStream_Send_WritesVerbatim(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := &Stream{conn: client}

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, s.Send([]byte("MSG FROM a IS hi\r\n")))
	select {
	case got := <-done:
		assert.Equal(t, "MSG FROM a IS hi\r\n", string(got))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for write")
	}
}

func TestDatagram_RebindChangesTarget(t *testing.T) {
	d := &Datagram{remote: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4567}}
	newAddr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 53000}
	d.Rebind(newAddr)
	assert.Equal(t, newAddr, d.Remote())
}
