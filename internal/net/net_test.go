package net

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bombarena/server/internal/net/packet"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{packet.C_OPCODE_LEAVE}))
	require.NoError(t, WriteFrame(&buf, []byte{packet.C_OPCODE_TEAM_CHOICE, 2}))
	assert.Equal(t, []byte{3, 0, 2, 4, 0, 3, 2}, buf.Bytes())

	p, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{packet.C_OPCODE_LEAVE}, p)
	p, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{packet.C_OPCODE_TEAM_CHOICE, 2}, p)

	_, err = ReadFrame(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameErrors(t *testing.T) {
	for _, raw := range [][]byte{{0, 0}, {1, 0}, {2, 0}} {
		_, err := ReadFrame(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrFrameLength, "header %v", raw)
	}

	_, err := ReadFrame(bytes.NewReader([]byte{10, 0, 1, 2}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	assert.ErrorIs(t, WriteFrame(io.Discard, nil), ErrFrameLength)
	assert.ErrorIs(t, WriteFrame(io.Discard, make([]byte, MaxPayload+1)), ErrFrameLength)
	assert.NoError(t, WriteFrame(io.Discard, make([]byte, MaxPayload)))
}

func pipeSession(t *testing.T, id uint64, opts SessionOptions) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	s := NewSession(server, id, opts, zap.NewNop())
	t.Cleanup(s.Close)
	return s, client
}

func TestSessionHelloAndTraffic(t *testing.T) {
	s, client := pipeSession(t, 7, SessionOptions{InSize: 4, OutSize: 4})
	s.Start()

	hello, err := ReadFrame(client)
	require.NoError(t, err)
	r := packet.NewPacketReader(hello)
	assert.Equal(t, packet.S_OPCODE_HELLO, r.Opcode())
	assert.Equal(t, uint64(7), r.ReadQ())
	assert.Equal(t, byte(packet.ProtocolVersion), r.ReadC())
	require.NoError(t, r.Err())

	require.NoError(t, WriteFrame(client, []byte{packet.C_OPCODE_RESTART}))
	select {
	case got := <-s.InQueue:
		assert.Equal(t, []byte{packet.C_OPCODE_RESTART}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("packet never reached the input queue")
	}

	s.Send([]byte{packet.S_OPCODE_CHECKSUM, 1, 0, 0, 0, 2, 0, 0, 0})
	s.FlushOutput()
	got, err := ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, packet.S_OPCODE_CHECKSUM, got[0])

	client.Close()
	require.Eventually(t, s.IsClosed, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, packet.StateDisconnecting, s.State())
}

func TestFlushOutputBackpressureCloses(t *testing.T) {
	s, _ := pipeSession(t, 1, SessionOptions{InSize: 1, OutSize: 1})
	s.Send([]byte{1})
	s.Send([]byte{2})
	s.FlushOutput()
	assert.True(t, s.IsClosed())

	s.Send([]byte{3})
	assert.Empty(t, s.outBuf, "closed sessions buffer nothing")
}

func TestRateLimitDisconnects(t *testing.T) {
	s, client := pipeSession(t, 1, SessionOptions{InSize: 16, OutSize: 4, PktPerSec: 2})
	s.Start()
	go io.Copy(io.Discard, client)

	for i := 0; i < 5; i++ {
		if err := WriteFrame(client, []byte{packet.C_OPCODE_REBUY}); err != nil {
			break
		}
	}
	require.Eventually(t, s.IsClosed, 2*time.Second, 5*time.Millisecond)
}

func TestSessionStoreOrder(t *testing.T) {
	st := NewSessionStore()
	for _, id := range []uint64{9, 2, 5} {
		s, _ := pipeSession(t, id, SessionOptions{OutSize: 1})
		st.Add(s)
	}
	var seen []uint64
	st.ForEach(func(s *Session) { seen = append(seen, s.ID) })
	assert.Equal(t, []uint64{2, 5, 9}, seen)

	st.Remove(5)
	assert.Nil(t, st.Get(5))
	assert.Equal(t, 2, st.Len())

	st.Broadcast([]byte{1})
	assert.Len(t, st.Get(2).outBuf, 1)
	assert.Len(t, st.Get(9).outBuf, 1)
}

func TestServerAcceptsAndGreets(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", SessionOptions{InSize: 4, OutSize: 4}, zap.NewNop())
	require.NoError(t, err)
	go srv.AcceptLoop()
	defer srv.Shutdown()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	var sess *Session
	select {
	case sess = <-srv.NewSessions():
	case <-time.After(2 * time.Second):
		t.Fatal("no session accepted")
	}
	defer sess.Close()
	assert.Equal(t, uint64(1), sess.ID)

	hello, err := ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, packet.S_OPCODE_HELLO, hello[0])
}

func TestServerShutdownStopsAccepting(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", SessionOptions{InSize: 4, OutSize: 4}, zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		srv.AcceptLoop()
		close(done)
	}()

	srv.Shutdown()
	srv.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("accept loop still running after shutdown")
	}

	_, err = net.Dial("tcp", srv.Addr().String())
	assert.Error(t, err)
}
