package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/vibeclient/vibe/internal/decode"
	"github.com/vibeclient/vibe/internal/queue"
)

// Generic is the cross-platform backend built on ebitengine/oto/v3. It
// runs a persistent player bound to an io.Reader that pulls samples lazily
// from the current Decoder instead of being pushed samples by an external
// writer.
type Generic struct {
	mu     sync.Mutex
	logger *log.Logger
	global *globalState
	q      *playbackQueue

	ctx    context.Context
	cancel context.CancelFunc

	otoCtx *oto.Context
	player *oto.Player
	src    *chainedSource

	elapsed   time.Duration
	elapsedMu sync.Mutex
}

// addElapsed advances the backend's playback clock, called
// from chainedSource.Read as bytes are actually handed to oto, and from the
// SKIP handling path for bytes discarded without being played.
func (g *Generic) addElapsed(d time.Duration) {
	g.elapsedMu.Lock()
	g.elapsed += d
	g.elapsedMu.Unlock()
}

// resetElapsed zeroes the playback clock when a new track starts.
func (g *Generic) resetElapsed() {
	g.elapsedMu.Lock()
	g.elapsed = 0
	g.elapsedMu.Unlock()
}

// NewGeneric constructs the generic backend.
func NewGeneric(global *globalState, logger *log.Logger) *Generic {
	ctx, cancel := context.WithCancel(context.Background())
	return &Generic{
		logger: logger,
		global: global,
		q:      queue.New(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// genericSlot adapts one chained source entry to queue.Slot.
type genericSlot struct {
	gen *Generic
	id  int
}

func (s *genericSlot) Disconnect() {
	s.gen.mu.Lock()
	defer s.gen.mu.Unlock()
	if s.gen.src != nil {
		s.gen.src.disconnectSlot(s.id)
	}
}

func (g *Generic) EnqueueNewStream(dec *decode.Decoder, cb Callbacks, params Params, device string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	spec := dec.Spec()

	if g.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   spec.SampleRate,
			ChannelCount: spec.Channels,
			Format:       oto.FormatFloat32LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("sink: oto context: %w", err)
		}
		<-ready
		g.otoCtx = ctx
	}

	entry := &sourceEntry{dec: dec, cb: cb, params: params, global: g.global, autostart: params.Autostart}

	if g.src == nil {
		g.src = newChainedSource(entry, g.q, g)
		g.player = g.otoCtx.NewPlayer(g.src)
		g.player.Play()
	} else {
		g.src.appendNext(entry)
	}

	id := g.src.idFor(entry)
	slot := &genericSlot{gen: g, id: id}
	g.q.Enqueue(slot)
	cb.StreamEstablished()

	return nil
}

func (g *Generic) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player == nil || !g.q.Playing() {
		return false
	}
	g.player.Pause()
	return true
}

func (g *Generic) Unpause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player == nil || !g.q.Playing() {
		return false
	}
	g.player.Play()
	return true
}

func (g *Generic) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player != nil {
		g.player.Pause()
	}
	g.q.Stop()
	g.src = nil
	g.elapsedMu.Lock()
	g.elapsed = 0
	g.elapsedMu.Unlock()
}

func (g *Generic) Flush() { g.Stop() }

func (g *Generic) Shift() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.q.Shift()
}

func (g *Generic) GetDur() time.Duration {
	g.elapsedMu.Lock()
	defer g.elapsedMu.Unlock()
	return g.elapsed
}

func (g *Generic) GetOutputDeviceNames() ([]Device, error) {
	// oto plays through the OS default device; no enumeration API exists.
	return []Device{{Name: "default", Description: "system default output"}}, nil
}

func (g *Generic) Close() error {
	g.cancel()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player != nil {
		g.player.Close()
	}
	if g.otoCtx != nil {
		g.otoCtx.Suspend()
	}
	return nil
}

// sourceEntry is one queued decoder awaiting or currently feeding playback.
type sourceEntry struct {
	dec        *decode.Decoder
	cb         Callbacks
	params     Params
	global     *globalState
	autostart  bool
	startedOnce bool
	prerolled  bool

	// eodSent and drainedSent gate EndOfDecode/Drained to fire at most
	// once: oto keeps calling Read after the decoder hits EOF, and the
	// final partial buffer means FillRawBuffer already reports
	// ErrEndOfDecode on the call that still has n>0 bytes to play.
	eodSent     bool
	drainedSent bool
}

// chainedSource implements io.Reader over a current+next decoder pair,
// gaplessly switching to "next" when "current" drains — the generic
// backend's realization of 's "appending B's source to A's sink".
type chainedSource struct {
	mu    sync.Mutex
	q     *playbackQueue
	owner *Generic
	cur   *sourceEntry
	next  *sourceEntry
	curID, nextID int
	nextSeq int
	drained bool
}

func newChainedSource(first *sourceEntry, q *playbackQueue, owner *Generic) *chainedSource {
	c := &chainedSource{q: q, owner: owner, cur: first, curID: 1, nextSeq: 2}
	c.preroll(first)
	return c
}

func (c *chainedSource) idFor(e *sourceEntry) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e == c.cur {
		return c.curID
	}
	return c.nextID
}

func (c *chainedSource) appendNext(e *sourceEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = e
	c.nextID = c.nextSeq
	c.nextSeq++
}

func (c *chainedSource) disconnectSlot(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.curID == id {
		c.cur.dec.Close()
		c.cur = nil
	} else if c.nextID == id {
		c.next.dec.Close()
		c.next = nil
	}
}

// preroll fills the backend-facing buffer until output_threshold worth of
// audio is buffered or EndOfDecode is reached.
// Retry markers are absorbed inside Decoder.FillSampleBuffer already.
func (c *chainedSource) preroll(e *sourceEntry) {
	spec := e.dec.Spec()
	target := decode.DurToSamples(e.params.OutputThreshold, spec.SampleRate, spec.Channels)
	var buf []float32
	err := e.dec.FillSampleBuffer(&buf, int(target))
	if err != nil && err != decode.ErrEndOfDecode {
		e.cb.NotSupported()
		return
	}
	e.prerolled = true
}

func (c *chainedSource) Read(p []byte) (int, error) {
	c.mu.Lock()
	entry := c.cur
	q := c.q
	c.mu.Unlock()

	if entry == nil {
		return 0, io.EOF
	}

	if !entry.startedOnce {
		entry.startedOnce = true
		c.owner.resetElapsed()
		entry.cb.TrackStarted()
		q.MarkBuffered()
	}

	// Consume SKIP.
	skip := entry.global.Skip.TakeOnce()
	if skip > 0 {
		spec := entry.dec.Spec()
		toDrop := int(decode.DurToSamples(skip, spec.SampleRate, spec.Channels)) * 4
		var discard []byte
		entry.dec.FillRawBuffer(&discard, toDrop)
		c.owner.addElapsed(skip)
	}

	var raw []byte
	err := entry.dec.FillRawBuffer(&raw, len(p))
	n := copy(p, raw)

	if n > 0 {
		spec := entry.dec.Spec()
		c.owner.addElapsed(decode.SamplesToDur(int64(n/4), spec.SampleRate, spec.Channels))
	}

	if err == decode.ErrEndOfDecode {
		if !entry.eodSent {
			entry.eodSent = true
			entry.cb.EndOfDecode()
			q.MarkDraining()
		}

		c.mu.Lock()
		nxt := c.next
		if nxt != nil {
			c.cur, c.curID = nxt, c.nextID
			c.next = nil
			c.mu.Unlock()
			c.preroll(nxt)
			if !entry.drainedSent {
				entry.drainedSent = true
				entry.cb.Drained()
			}
			q.Shift()
			return n, nil
		}
		c.mu.Unlock()

		if n == 0 {
			if !entry.drainedSent {
				entry.drainedSent = true
				entry.cb.Drained()
			}
			return 0, io.EOF
		}
		return n, nil
	}

	if err != nil {
		entry.cb.NotSupported()
		return n, nil
	}

	return n, nil
}
