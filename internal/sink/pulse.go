package sink

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibeclient/vibe/internal/decode"
	"github.com/vibeclient/vibe/internal/queue"
)

// Pulse is the PulseAudio backend: a hand-rolled client for PulseAudio's
// native (non-libpulse) socket protocol. It authenticates over the Unix
// socket, issues a CREATE_PLAYBACK_STREAM command per track, and drives the
// connection's two concurrent streams with a writer goroutine per stream
// that answers the server's REQUEST frames.
type Pulse struct {
	mu     sync.Mutex
	logger *log.Logger
	global *globalState
	q      *playbackQueue

	conn    net.Conn
	r       *bufio.Reader
	nextTag uint32
	pending map[uint32]chan pulseReply

	streams map[uint32]*pulseStream
	nextIdx uint32

	closed chan struct{}

	elapsed   time.Duration
	elapsedMu sync.Mutex
}

// addElapsed advances the backend's playback clock as bytes are actually
// written to the stream, and for SKIP bytes discarded without playing.
func (p *Pulse) addElapsed(d time.Duration) {
	p.elapsedMu.Lock()
	p.elapsed += d
	p.elapsedMu.Unlock()
}

// resetElapsed zeroes the playback clock when a new track starts.
func (p *Pulse) resetElapsed() {
	p.elapsedMu.Lock()
	p.elapsed = 0
	p.elapsedMu.Unlock()
}

type pulseReply struct {
	cmd uint32
	tp  *tagParser
}

// NewPulse dials the PulseAudio native socket (PULSE_SERVER or the
// well-known XDG runtime path) and authenticates.
func NewPulse(global *globalState, logger *log.Logger, deviceName string) (*Pulse, error) {
	conn, err := dialPulse()
	if err != nil {
		return nil, fmt.Errorf("sink: pulse: dial: %w", err)
	}

	p := &Pulse{
		logger:  logger,
		global:  global,
		q:       queue.New(),
		conn:    conn,
		r:       bufio.NewReader(conn),
		nextTag: 1,
		pending: map[uint32]chan pulseReply{},
		streams: map[uint32]*pulseStream{},
		nextIdx: 1,
		closed:  make(chan struct{}),
	}

	if err := p.authenticate(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := p.setClientName("vibe"); err != nil {
		conn.Close()
		return nil, err
	}

	go p.readLoop()
	return p, nil
}

func dialPulse() (net.Conn, error) {
	if path := os.Getenv("PULSE_SERVER"); path != "" {
		if c, err := net.Dial("unix", path); err == nil {
			return c, nil
		}
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(os.TempDir(), fmt.Sprintf("pulse-%d", os.Getuid()))
	}
	return net.Dial("unix", filepath.Join(runtimeDir, "pulse", "native"))
}

func pulseCookie() []byte {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(home, ".config", "pulse", "cookie"))
	if err != nil {
		return nil
	}
	return data
}

const (
	cmdAuth                  = 0
	cmdSetClientName         = 1
	cmdReply                 = 2
	cmdError                 = 3
	cmdCreatePlaybackStream  = 3 + 1
	cmdDeletePlaybackStream  = 3 + 2
	cmdCorkPlaybackStream    = 3 + 4
	cmdRequest               = 3 + 19
	cmdGetSinkInfoList       = 9
	pulseProtocolVersion     = 32
	pulseCtrlChannel         = 0xFFFFFFFF
)

func (p *Pulse) authenticate() error {
	tb := newTagBuilder()
	tb.addU32(pulseProtocolVersion)
	cookie := pulseCookie()
	tb.addArbitrary(cookie)
	if err := p.call(cmdAuth, tb); err != nil {
		return fmt.Errorf("sink: pulse: auth: %w", err)
	}
	return nil
}

func (p *Pulse) setClientName(name string) error {
	tb := newTagBuilder()
	tb.addPropList(map[string]string{"application.name": name})
	return p.call(cmdSetClientName, tb)
}

// call sends a control command and blocks for its reply.
func (p *Pulse) call(cmd uint32, tb *tagBuilder) error {
	reply, err := p.request(cmd, tb)
	if err != nil {
		return err
	}
	if reply.cmd == cmdError {
		code, _ := reply.tp.readU32()
		return fmt.Errorf("sink: pulse: server error %d", code)
	}
	return nil
}

func (p *Pulse) request(cmd uint32, tb *tagBuilder) (pulseReply, error) {
	p.mu.Lock()
	tag := p.nextTag
	p.nextTag++
	ch := make(chan pulseReply, 1)
	p.pending[tag] = ch
	frame := buildCommand(cmd, tag, tb.bytes())
	_, err := p.conn.Write(frame)
	p.mu.Unlock()
	if err != nil {
		return pulseReply{}, err
	}
	select {
	case reply := <-ch:
		return reply, nil
	case <-p.closed:
		return pulseReply{}, fmt.Errorf("sink: pulse: connection closed")
	case <-time.After(10 * time.Second):
		return pulseReply{}, fmt.Errorf("sink: pulse: reply timeout")
	}
}

// readLoop dispatches control replies and REQUEST frames (the server
// asking for more bytes on a stream channel) until the socket closes.
func (p *Pulse) readLoop() {
	defer close(p.closed)
	for {
		channel, payload, err := readFrame(p.r)
		if err != nil {
			p.logger.Debug("pulse: read loop ended", "err", err)
			return
		}
		if channel != pulseCtrlChannel {
			continue // data-channel acks carry no payload we act on
		}
		tp := newTagParser(payload)
		cmd, err := tp.readU32()
		if err != nil {
			continue
		}
		tag, err := tp.readU32()
		if err != nil {
			continue
		}

		if cmd == cmdRequest {
			idx, _ := tp.readU32()
			n, _ := tp.readU32()
			p.mu.Lock()
			s := p.streams[idx]
			p.mu.Unlock()
			if s != nil {
				s.requestMore(int(n))
			}
			continue
		}

		p.mu.Lock()
		ch, ok := p.pending[tag]
		delete(p.pending, tag)
		p.mu.Unlock()
		if ok {
			ch <- pulseReply{cmd: cmd, tp: tp}
		}
	}
}

// pulseStream is one playback stream multiplexed over the shared connection,
// fed by a writer goroutine that answers REQUEST frames from FillRawBuffer.
type pulseStream struct {
	p      *Pulse
	index  uint32
	dec    *decode.Decoder
	cb     Callbacks
	params Params
	global *globalState

	reqs    chan int
	stop    chan struct{}
	corked  bool
	started bool
	mu      sync.Mutex
}

func (p *Pulse) EnqueueNewStream(dec *decode.Decoder, cb Callbacks, params Params, device string) error {
	spec := dec.Spec()
	tb := newTagBuilder()
	tb.addSampleSpec(sampleFormatFloat32LE, uint8(spec.Channels), uint32(spec.SampleRate))
	tb.addChannelMap(uint8(spec.Channels))
	tb.addU32(0xFFFFFFFF) // sink_index: default
	tb.addStringNull()
	tb.addU32(0xFFFFFFFF) // maxlength
	tb.addBool(true)      // start corked; Unpause drives playback
	tb.addU32(0xFFFFFFFF) // tlength
	tb.addU32(0)          // prebuf
	tb.addU32(0xFFFFFFFF) // minreq
	tb.addU32(0)          // sync_id
	tb.addCVolume(uint8(spec.Channels), 0x10000)

	reply, err := p.request(cmdCreatePlaybackStream, tb)
	if err != nil {
		return fmt.Errorf("sink: pulse: create stream: %w", err)
	}
	if reply.cmd == cmdError {
		code, _ := reply.tp.readU32()
		return fmt.Errorf("sink: pulse: create stream rejected (code %d)", code)
	}
	idx, err := reply.tp.readU32()
	if err != nil {
		return fmt.Errorf("sink: pulse: parse stream index: %w", err)
	}

	s := &pulseStream{
		p: p, index: idx, dec: dec, cb: cb, params: params, global: p.global,
		reqs: make(chan int, 8), stop: make(chan struct{}), corked: true,
	}

	p.mu.Lock()
	p.streams[idx] = s
	p.mu.Unlock()

	slot := &pulseSlot{p: p, s: s}
	p.q.Enqueue(slot)
	cb.StreamEstablished()

	go s.run()

	if params.Autostart {
		p.uncork(idx)
	}
	return nil
}

func (s *pulseStream) requestMore(n int) {
	select {
	case s.reqs <- n:
	default:
	}
}

func (s *pulseStream) run() {
	for {
		select {
		case <-s.stop:
			return
		case n := <-s.reqs:
			if s.fill(n) {
				return
			}
		}
	}
}

// fill pulls up to n bytes from the decoder and reports whether the stream
// is done (end of decode or an unsupported codec) — the caller must stop
// calling fill once done is true, since shiftTo (via Queue.Shift) closes
// s.stop and a second call would race a stream that no longer exists.
func (s *pulseStream) fill(n int) bool {
	if !s.started {
		s.started = true
		s.p.resetElapsed()
		s.cb.TrackStarted()
		s.p.q.MarkBuffered()
	}

	if skip := s.global.Skip.TakeOnce(); skip > 0 {
		spec := s.dec.Spec()
		toDrop := int(decode.DurToSamples(skip, spec.SampleRate, spec.Channels)) * 4
		var discard []byte
		s.dec.FillRawBuffer(&discard, toDrop)
		s.p.addElapsed(skip)
	}

	var raw []byte
	err := s.dec.FillRawBuffer(&raw, n)
	if len(raw) > 0 {
		s.p.writeData(s.index, raw)
		spec := s.dec.Spec()
		s.p.addElapsed(decode.SamplesToDur(int64(len(raw)/4), spec.SampleRate, spec.Channels))
	}

	switch err {
	case nil:
		return false
	case decode.ErrEndOfDecode:
		s.cb.EndOfDecode()
		s.p.q.MarkDraining()
		s.p.shiftTo(s)
		return true
	default:
		s.cb.NotSupported()
		return true
	}
}

// shiftTo advances the queue past draining, the just-drained playing
// stream. Queue.Shift calls draining's pulseSlot.Disconnect, which closes
// draining.stop, sends the delete-stream command, and removes it from
// p.streams; shiftTo must not repeat any of that, only report Drained and
// uncork whatever got promoted.
func (p *Pulse) shiftTo(draining *pulseStream) {
	draining.cb.Drained()
	promoted, ok := p.q.Shift()

	if ok {
		if slot, isPulse := promoted.(*pulseSlot); isPulse {
			p.uncork(slot.s.index)
		}
	}
}

func (p *Pulse) writeData(index uint32, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := dataFrame(index, data)
	p.conn.Write(frame)
}

func (p *Pulse) uncork(index uint32) {
	tb := newTagBuilder()
	tb.addU32(index)
	tb.addBool(false)
	p.call(cmdCorkPlaybackStream, tb)
}

func (p *Pulse) cork(index uint32) {
	tb := newTagBuilder()
	tb.addU32(index)
	tb.addBool(true)
	p.call(cmdCorkPlaybackStream, tb)
}

func (p *Pulse) deleteStream(index uint32) {
	tb := newTagBuilder()
	tb.addU32(index)
	p.call(cmdDeletePlaybackStream, tb)
}

// pulseSlot adapts one pulseStream to queue.Slot.
type pulseSlot struct {
	p *Pulse
	s *pulseStream
}

func (sl *pulseSlot) Disconnect() {
	close(sl.s.stop)
	sl.p.deleteStream(sl.s.index)
	sl.p.mu.Lock()
	delete(sl.p.streams, sl.s.index)
	sl.p.mu.Unlock()
}

func (p *Pulse) Pause() bool {
	p.mu.Lock()
	playing := p.q.Playing()
	indices := snapshotStreamIndices(p.streams)
	p.mu.Unlock()
	if !playing {
		return false
	}
	for _, idx := range indices {
		p.cork(idx)
	}
	return true
}

func (p *Pulse) Unpause() bool {
	p.mu.Lock()
	playing := p.q.Playing()
	indices := snapshotStreamIndices(p.streams)
	p.mu.Unlock()
	if !playing {
		return false
	}
	for _, idx := range indices {
		p.uncork(idx)
	}
	return true
}

// snapshotStreamIndices copies the stream-index set under the caller's
// lock, for iteration after the lock is released.
func snapshotStreamIndices(streams map[uint32]*pulseStream) []uint32 {
	indices := make([]uint32, 0, len(streams))
	for idx := range streams {
		indices = append(indices, idx)
	}
	return indices
}

// Stop disconnects both queue slots. Queue.Stop calls each pulseSlot's
// Disconnect, which closes the stream's stop channel, sends the
// delete-stream command, and removes it from p.streams — doing this here
// too would close an already-closed channel.
func (p *Pulse) Stop() {
	p.q.Stop()
	p.resetElapsed()
}

func (p *Pulse) Flush() { p.Stop() }

func (p *Pulse) Shift() {
	p.q.Shift()
}

func (p *Pulse) GetDur() time.Duration {
	p.elapsedMu.Lock()
	defer p.elapsedMu.Unlock()
	return p.elapsed
}

func (p *Pulse) GetOutputDeviceNames() ([]Device, error) {
	reply, err := p.request(cmdGetSinkInfoList, newTagBuilder())
	if err != nil {
		return nil, fmt.Errorf("sink: pulse: list sinks: %w", err)
	}
	if reply.cmd == cmdError {
		return []Device{{Name: "default", Description: "PulseAudio default sink"}}, nil
	}
	var devices []Device
	for {
		name, err := reply.tp.readString()
		if err != nil {
			break
		}
		devices = append(devices, Device{Name: name, Description: name})
	}
	if len(devices) == 0 {
		devices = []Device{{Name: "default", Description: "PulseAudio default sink"}}
	}
	return devices, nil
}

func (p *Pulse) Close() error {
	p.Stop()
	return p.conn.Close()
}

// --- native protocol framing (descriptor + tagstruct) ---

func buildCommand(cmd, tag uint32, payload []byte) []byte {
	tb := newTagBuilder()
	tb.addU32(cmd)
	tb.addU32(tag)
	body := append(tb.bytes(), payload...)
	return frameFor(pulseCtrlChannel, body)
}

func dataFrame(channel uint32, data []byte) []byte {
	return frameFor(channel, data)
}

// frameFor prefixes payload with PulseAudio's 20-byte descriptor: length,
// channel, offset_hi, offset_lo, flags (all big-endian uint32).
func frameFor(channel uint32, payload []byte) []byte {
	out := make([]byte, 20+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(out[4:8], channel)
	binary.BigEndian.PutUint32(out[8:12], 0)
	binary.BigEndian.PutUint32(out[12:16], 0)
	binary.BigEndian.PutUint32(out[16:20], 0)
	copy(out[20:], payload)
	return out
}

func readFrame(r *bufio.Reader) (channel uint32, payload []byte, err error) {
	var desc [20]byte
	if _, err = ioReadFull(r, desc[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(desc[0:4])
	channel = binary.BigEndian.Uint32(desc[4:8])
	payload = make([]byte, length)
	if _, err = ioReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return channel, payload, nil
}

func ioReadFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
