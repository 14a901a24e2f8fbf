package session

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/vibeclient/vibe/internal/proto"
)

func testLogger() *log.Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel + 1)
	return l
}

func TestResolveInitialEndpointExplicit(t *testing.T) {
	ep, err := ResolveInitialEndpoint(context.Background(), "127.0.0.1:3483", testLogger())
	require.NoError(t, err)
	require.Equal(t, 3483, ep.Port)
	require.True(t, ep.IP.IsLoopback())
}

// TestWriteLoopStopsOnBye exercises the writer goroutine's sentinel rule in
// isolation: it must drain Outbound, write every frame, and stop as soon as
// it observes a Bye frame, without needing a live server on the other end.
func TestWriteLoopStopsOnBye(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := &Session{
		logger:  testLogger(),
		Outbound: make(chan proto.Frame, 4),
	}

	done := make(chan struct{})
	go s.writeLoop(context.Background(), client, done, testLogger())

	tag, payload := proto.EncodeBye(1)
	s.Outbound <- proto.Frame{Tag: "name", Payload: []byte("vibe")}
	s.Outbound <- proto.Frame{Tag: tag, Payload: payload}

	r := bufio.NewReader(server)
	first, err := proto.ReadFrame(r)
	require.NoError(t, err)
	require.Equal(t, "name", first.Tag)

	second, err := proto.ReadFrame(r)
	require.NoError(t, err)
	require.Equal(t, "bye ", second.Tag)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writeLoop did not stop after Bye sentinel")
	}
}
