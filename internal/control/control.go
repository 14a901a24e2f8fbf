// Package control implements the control core: the select loop that
// translates inbound server frames into Playback Queue/Sink Adapter
// operations and translates pipeline events back into status replies. It
// owns the process-wide VOLUME/SKIP/STATUS cells.
package control

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibeclient/vibe/internal/config"
	"github.com/vibeclient/vibe/internal/decode"
	"github.com/vibeclient/vibe/internal/notify"
	"github.com/vibeclient/vibe/internal/proto"
	"github.com/vibeclient/vibe/internal/session"
	"github.com/vibeclient/vibe/internal/sink"
	"github.com/vibeclient/vibe/internal/state"
)

// timerInterval is the Timer heartbeat while a sink exists.
const timerInterval = 1 * time.Second

// idleTimerInterval is used when no sink exists ("A 5 s
// version is used when no sink exists").
const idleTimerInterval = 5 * time.Second

// pipelineKind discriminates pipelineEvent.
type pipelineKind int

const (
	evConnected pipelineKind = iota
	evBufferThreshold
	evNotSupported
	evStreamEstablished
	evTrackStarted
	evEndOfDecode
	evDrained
	evUnpauseTimer
	evDecoderReady // carries a constructed Decoder awaiting sink.EnqueueNewStream
)

// pipelineEvent is what C2/C3/C4 send back to the control loop. Sends into
// Core.events must never block the caller;
// see Core.emit.
type pipelineEvent struct {
	kind   pipelineKind
	dec    *decode.Decoder
	params sink.Params
}

// Core is the Control Core. One Core runs for the life of the process; the
// Session beneath it owns its own reconnect loop, so the Core's
// select loop never itself "restarts" — it treats the session-loss sentinel
// as a state reset instead (see handleServerMessage's ServKindNone arm).
type Core struct {
	logger   *log.Logger
	global   *state.Global
	sess     *session.Session
	cfg      config.Config
	notifier notify.Notifier

	mu       sync.Mutex
	name     string
	serverIP net.IP
	backend  sink.Sink // nil when no sink exists (toggled by Enable/DisableDac)

	events chan pipelineEvent
}

// New constructs a Core. It attempts to build the configured backend eagerly;
// a construction failure leaves backend nil and the core proceeds without a
// sink until an Enable arrives.
func New(sess *session.Session, global *state.Global, cfg config.Config, notifier notify.Notifier, logger *log.Logger) *Core {
	c := &Core{
		logger:   logger,
		global:   global,
		sess:     sess,
		cfg:      cfg,
		notifier: notifier,
		name:     cfg.Name,
		events:   make(chan pipelineEvent, 32),
	}
	if s, err := c.newBackend(); err != nil {
		logger.Warn("sink construction failed; starting without a sink", "err", err)
	} else {
		c.backend = s
	}
	return c
}

// Run drives the select loop until ctx is canceled.
func (c *Core) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tickerInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return

		case msg := <-c.sess.Inbound:
			c.handleServerMessage(ctx, msg)
			c.resetTicker(ticker)

		case ev := <-c.events:
			c.handlePipelineEvent(ev)
			c.resetTicker(ticker)

		case <-ticker.C:
			c.emitTimer()
		}
	}
}

func (c *Core) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		c.backend.Close()
		c.backend = nil
	}
}

func (c *Core) tickerInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return idleTimerInterval
	}
	return timerInterval
}

func (c *Core) resetTicker(t *time.Ticker) {
	t.Reset(c.tickerInterval())
}

// emit is the non-blocking send required of every callback-context writer
// into Core.events, P5: "non-blocking sends whose buffer is full
// are dropped without affecting subsequent sends").
func (c *Core) emit(ev pipelineEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("pipeline event dropped, buffer full", "kind", ev.kind)
	}
}

func (c *Core) send(tag string, payload []byte) {
	frame := proto.Frame{Tag: tag, Payload: payload}
	select {
	case c.sess.Outbound <- frame:
	default:
		c.logger.Warn("outbound frame dropped, writer backed up", "tag", tag)
	}
}

func (c *Core) sendStatus(code proto.StatusCode) {
	snap := c.global.Status.Snapshot()
	tag, payload := proto.EncodeStatus(code, snap)
	c.send(tag, payload)
}

func (c *Core) emitTimer() {
	c.updateElapsed()
	c.sendStatus(proto.StatusTimer)
}

func (c *Core) updateElapsed() {
	c.mu.Lock()
	backend := c.backend
	c.mu.Unlock()
	if backend == nil {
		c.global.Status.SetElapsed(0) // no backend: elapsed reports zero
		return
	}
	c.global.Status.SetElapsed(backend.GetDur())
}

// --- server-frame handlers ---

func (c *Core) handleServerMessage(ctx context.Context, msg proto.ServerMessage) {
	switch msg.Kind {
	case proto.ServKindServ:
		c.mu.Lock()
		c.serverIP = msg.ServIP
		c.mu.Unlock()

	case proto.ServKindQueryname:
		c.mu.Lock()
		name := c.name
		c.mu.Unlock()
		tag, payload := proto.EncodeName(name)
		c.send(tag, payload)

	case proto.ServKindSetname:
		c.mu.Lock()
		c.name = msg.Name
		c.mu.Unlock()

	case proto.ServKindGain:
		c.global.Volume.Set(msg.GainLeft, msg.GainRight)

	case proto.ServKindStatus:
		c.global.Status.SetTimestampEcho(msg.Timestamp)
		c.updateElapsed()
		c.sendStatus(proto.StatusTimer)

	case proto.ServKindStop:
		c.withBackend(func(s sink.Sink) { s.Stop() })
		c.global.Status.Reset()
		c.sendStatus(proto.StatusFlushed)

	case proto.ServKindFlush:
		c.withBackend(func(s sink.Sink) { s.Flush() })
		c.global.Status.Reset()
		c.sendStatus(proto.StatusFlushed)

	case proto.ServKindPause:
		c.withBackend(func(s sink.Sink) { s.Pause() })
		c.sendStatus(proto.StatusPause)
		if msg.Duration > 0 {
			c.scheduleTimer(evUnpauseTimer, msg.Duration)
		}

	case proto.ServKindUnpause:
		if msg.Duration == 0 {
			if c.withBackendBool(func(s sink.Sink) bool { return s.Unpause() }) {
				c.sendStatus(proto.StatusResume)
			}
		} else {
			c.scheduleTimer(evUnpauseTimer, msg.Duration)
		}

	case proto.ServKindSkip:
		c.global.Skip.Store(msg.Duration)

	case proto.ServKindStream:
		c.handleStream(msg.Stream)

	case proto.ServKindEnable:
		c.handleEnable(msg.EnableAudio)

	case proto.ServKindDisableDac:
		c.handleEnable(false)

	case proto.ServKindNone:
		// Session lost contact. The Session's own outer
		// loop rebuilds the connection; the core's job is only to stop
		// audio and reset volatile state so nothing keeps playing into a
		// reconnect window.
		c.withBackend(func(s sink.Sink) { s.Stop() })
		c.global.Status.Reset()
	}
}

func (c *Core) withBackend(fn func(sink.Sink)) {
	c.mu.Lock()
	s := c.backend
	c.mu.Unlock()
	if s != nil {
		fn(s)
	}
}

func (c *Core) withBackendBool(fn func(sink.Sink) bool) bool {
	c.mu.Lock()
	s := c.backend
	c.mu.Unlock()
	return s != nil && fn(s)
}

func (c *Core) scheduleTimer(kind pipelineKind, after time.Duration) {
	time.AfterFunc(after, func() {
		c.emit(pipelineEvent{kind: kind})
	})
}

// handleStream spawns the Decoder-construction worker so that HTTP connect
// and container probing never block the control loop 
// "Decoder-construction threads"). It only proceeds when http_headers
// carries at least one CRLF pair.
func (c *Core) handleStream(req proto.StreamRequest) {
	if !bytes.Contains(req.HTTPHeaders, []byte("\r\n")) {
		return
	}

	c.mu.Lock()
	defaultIP := c.serverIP
	c.mu.Unlock()

	events := decode.Events{
		Connected:       func() { c.emit(pipelineEvent{kind: evConnected}) },
		BufferThreshold: func() { c.emit(pipelineEvent{kind: evBufferThreshold}) },
	}

	autostart := req.Autostart == proto.AutostartAuto || req.Autostart == proto.AutostartAutoUnpaus
	params := sink.Params{OutputThreshold: req.OutputThreshold, Autostart: autostart}

	go func() {
		dec, err := decode.New(req, defaultIP, c.global, c.logger, events)
		if err != nil {
			c.logger.Warn("decoder construction failed", "err", err)
			c.emit(pipelineEvent{kind: evNotSupported})
			return
		}
		c.emit(pipelineEvent{kind: evDecoderReady, dec: dec, params: params})
	}()
}

func (c *Core) handleEnable(enable bool) {
	c.mu.Lock()
	has := c.backend != nil
	c.mu.Unlock()

	if enable == has {
		return
	}

	if !enable {
		c.mu.Lock()
		s := c.backend
		c.backend = nil
		c.mu.Unlock()
		if s != nil {
			s.Close()
		}
		return
	}

	s, err := c.newBackend()
	if err != nil {
		c.logger.Warn("sink construction failed on Enable", "err", err)
		return
	}
	c.mu.Lock()
	c.backend = s
	c.mu.Unlock()
}

func (c *Core) newBackend() (sink.Sink, error) {
	switch c.cfg.System {
	case config.BackendPulse:
		return sink.NewPulse(c.global, c.logger, c.cfg.Device)
	case config.BackendPipeWire:
		return sink.NewPipeWire(c.global, c.logger)
	default:
		return sink.NewGeneric(c.global, c.logger), nil
	}
}

// --- pipeline-event handlers ---

func (c *Core) handlePipelineEvent(ev pipelineEvent) {
	switch ev.kind {
	case evConnected:
		c.sendStatus(proto.StatusConnect)

	case evBufferThreshold:
		c.sendStatus(proto.StatusBufferThreshold)

	case evNotSupported:
		c.sendStatus(proto.StatusNotSupported)

	case evStreamEstablished:
		c.sendStatus(proto.StatusStreamEstablished)

	case evTrackStarted:
		c.global.Status.Reset()
		c.sendStatus(proto.StatusTrackStarted)

	case evEndOfDecode:
		c.sendStatus(proto.StatusDecoderReady)

	case evDrained:
		c.withBackend(func(s sink.Sink) {
			s.Shift()
			s.Unpause()
		})
		c.global.Status.Reset()

	case evUnpauseTimer:
		if c.withBackendBool(func(s sink.Sink) bool { return s.Unpause() }) {
			c.sendStatus(proto.StatusResume)
		}

	case evDecoderReady:
		c.handleDecoderReady(ev.dec, ev.params)
	}
}

func (c *Core) handleDecoderReady(dec *decode.Decoder, params sink.Params) {
	c.mu.Lock()
	backend := c.backend
	c.mu.Unlock()

	if backend == nil {
		dec.Close()
		c.sendStatus(proto.StatusNotSupported)
		return
	}

	if !c.cfg.Quiet && c.notifier != nil {
		c.notifier.Notify(dec.Metadata())
	}

	cb := sink.Callbacks{
		StreamEstablished: func() { c.emit(pipelineEvent{kind: evStreamEstablished}) },
		TrackStarted:      func() { c.emit(pipelineEvent{kind: evTrackStarted}) },
		EndOfDecode:       func() { c.emit(pipelineEvent{kind: evEndOfDecode}) },
		NotSupported:      func() { c.emit(pipelineEvent{kind: evNotSupported}) },
		Drained:           func() { c.emit(pipelineEvent{kind: evDrained}) },
	}

	if err := backend.EnqueueNewStream(dec, cb, params, c.cfg.Device); err != nil {
		c.logger.Warn("enqueue_new_stream failed", "err", err)
		dec.Close()
		c.sendStatus(proto.StatusNotSupported)
	}
}
