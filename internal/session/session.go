// Package session implements the Transport Session: server discovery and
// redirect, capability advertisement, framed duplex I/O, and the outer
// reconnect loop. A connect call spawns a reader goroutine and a writer
// goroutine wired together with channel-based message routing over raw
// length-prefixed SlimProto frames; the outer loop rebuilds that pair
// whenever the connection is lost.
package session

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vibeclient/vibe/internal/capabilities"
	"github.com/vibeclient/vibe/internal/discovery"
	"github.com/vibeclient/vibe/internal/proto"
)

// Session owns one SlimProto TCP connection and the reconnect loop around it.
type Session struct {
	name   string
	logger *log.Logger

	endpoint proto.ServerEndpoint

	// Inbound delivers ServerMessage events to the control core. A message
	// with Kind == proto.ServKindNone is the session-loss sentinel.
	Inbound chan proto.ServerMessage

	// Outbound carries frames from the control core to the writer
	// goroutine. A frame with Tag == "bye " is the sentinel the writer
	// watches for before it may stop draining.
	Outbound chan proto.Frame
}

// New creates a Session targeting the given initial endpoint.
func New(initial proto.ServerEndpoint, name string, logger *log.Logger) *Session {
	return &Session{
		name:     name,
		logger:   logger,
		endpoint: initial,
		Inbound:  make(chan proto.ServerMessage, 8),
		Outbound: make(chan proto.Frame, 8),
	}
}

// Run drives the outer reconnect loop until ctx is canceled. Each iteration
// connects, advertises capabilities, runs reader+writer goroutines until
// either a redirect or a failure ends the inner loop, then loops again.
func (s *Session) Run(ctx context.Context) {
	syncGroupID := s.endpoint.SyncGroupID

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// connID correlates every log line for one connection attempt across
		// the reader/writer goroutines it spawns, since two attempts can
		// overlap briefly during a redirect.
		connID := uuid.NewString()
		logger := s.logger.With("conn", connID)
		logger.Info("connecting", "endpoint", s.endpoint.Addr())

		conn, err := net.DialTimeout("tcp", s.endpoint.Addr(), 5*time.Second)
		if err != nil {
			logger.Warn("connect failed", "err", err)
			s.emitNone(ctx)
			if !s.sleepOrDone(ctx, 2*time.Second) {
				return
			}
			continue
		}

		// Emit the initial synthetic Serv{ip_address=current}.
		s.Inbound <- proto.ServerMessage{Kind: proto.ServKindServ, ServIP: s.endpoint.IP, ServSyncGroupID: syncGroupID}

		caps := capabilities.Build(s.name, syncGroupID)
		redirect, lost := s.runConnection(ctx, conn, caps, logger)

		if redirect != nil {
			s.endpoint = *redirect
			syncGroupID = redirect.SyncGroupID
			continue // reconnect to the new endpoint immediately
		}

		if lost {
			s.emitNone(ctx)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		if !s.sleepOrDone(ctx, 2*time.Second) {
			return
		}
	}
}

// runConnection drives one connection's reader/writer pair. It returns a
// non-nil redirect endpoint on Serv{}, or lost=true on a read failure.
func (s *Session) runConnection(ctx context.Context, conn net.Conn, caps capabilities.Capabilities, logger *log.Logger) (redirect *proto.ServerEndpoint, lost bool) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go s.writeLoop(connCtx, conn, writerDone, logger)

	tag, payload := proto.EncodeHelo(caps.Encode())
	if err := proto.WriteFrame(conn, tag, payload); err != nil {
		logger.Warn("helo write failed", "err", err)
		return nil, true
	}

	r := bufio.NewReader(conn)
	for {
		frame, err := proto.ReadFrame(r)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil, false
			default:
			}
			logger.Warn("read failed", "err", err)
			return nil, true
		}

		msg, err := proto.DecodeServerMessage(frame)
		if err != nil {
			logger.Warn("decode failed", "err", err)
			continue
		}

		if msg.Kind == proto.ServKindServ {
			s.Inbound <- msg
			next := proto.ServerEndpoint{IP: msg.ServIP, Port: s.endpoint.Port, SyncGroupID: msg.ServSyncGroupID}
			return &next, false
		}

		select {
		case s.Inbound <- msg:
		case <-connCtx.Done():
			return nil, false
		}
	}
}

// writeLoop drains Outbound into the connection until a Bye sentinel is
// observed or the socket errors.
func (s *Session) writeLoop(ctx context.Context, conn net.Conn, done chan<- struct{}, logger *log.Logger) {
	defer close(done)
	for {
		select {
		case frame := <-s.Outbound:
			if err := proto.WriteFrame(conn, frame.Tag, frame.Payload); err != nil {
				logger.Warn("write failed", "err", err)
				return
			}
			if frame.Tag == "bye " {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) emitNone(ctx context.Context) {
	select {
	case s.Inbound <- proto.ServerMessage{Kind: proto.ServKindNone}:
	case <-ctx.Done():
	}
}

func (s *Session) sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// ResolveInitialEndpoint parses an explicit host[:port], or
// broadcast-discovers a server when none is provided.
func ResolveInitialEndpoint(ctx context.Context, explicit string, logger *log.Logger) (proto.ServerEndpoint, error) {
	if explicit != "" {
		addr, err := discovery.ParseServer(explicit)
		if err != nil {
			return proto.ServerEndpoint{}, err
		}
		return proto.ServerEndpoint{IP: addr.IP, Port: addr.Port}, nil
	}

	addr, err := discovery.Discover(ctx, logger)
	if err != nil {
		return proto.ServerEndpoint{}, fmt.Errorf("session: discovery: %w", err)
	}
	return proto.ServerEndpoint{IP: addr.IP, Port: addr.Port}, nil
}
