package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vibeclient/vibe/internal/decode"
	"github.com/vibeclient/vibe/internal/queue"
)

// PipeWire is the PipeWire backend. No Go binding for PipeWire's native
// protocol is available, so this shells out to the pw-dump/pw-cat
// command-line tools: exec.LookPath to fail fast, exec.Command with a
// StdinPipe, cmd.Start, and a Close that kills and waits on the process.
//
// Corking a shelled-out player has no direct pw-cli verb, so Pause/Unpause
// send SIGSTOP/SIGCONT to the pw-cat process — it stops consuming stdin and
// PipeWire's own buffer underrun naturally silences the node. This avoids
// ever touching PipeWire's mainloop lock from the wrong thread.
type PipeWire struct {
	mu     sync.Mutex
	logger *log.Logger
	global *globalState
	q      *playbackQueue

	cur  *pipewireTrack
	next *pipewireTrack

	elapsed   time.Duration
	elapsedMu sync.Mutex
}

// addElapsed advances the backend's playback clock as raw bytes are
// actually written to pw-cat's stdin, and for SKIP bytes discarded
// without being written.
func (p *PipeWire) addElapsed(d time.Duration) {
	p.elapsedMu.Lock()
	p.elapsed += d
	p.elapsedMu.Unlock()
}

// resetElapsed zeroes the playback clock when a new track starts.
func (p *PipeWire) resetElapsed() {
	p.elapsedMu.Lock()
	p.elapsed = 0
	p.elapsedMu.Unlock()
}

type pipewireTrack struct {
	dec    *decode.Decoder
	cb     Callbacks
	params Params
	global *globalState

	cmd   *exec.Cmd
	stdin io.WriteCloser
	stop  chan struct{}
}

// NewPipeWire constructs the backend, failing when pw-cat is not in PATH.
// The output device is chosen per stream: EnqueueNewStream passes a
// non-empty device to pw-cat as --target.
func NewPipeWire(global *globalState, logger *log.Logger) (*PipeWire, error) {
	if _, err := exec.LookPath("pw-cat"); err != nil {
		return nil, fmt.Errorf("sink: pipewire: pw-cat not found in PATH: %w", err)
	}
	return &PipeWire{logger: logger, global: global, q: queue.New()}, nil
}

func (p *PipeWire) EnqueueNewStream(dec *decode.Decoder, cb Callbacks, params Params, device string) error {
	spec := dec.Spec()
	args := []string{
		"--playback", "-",
		"--rate", fmt.Sprintf("%d", spec.SampleRate),
		"--channels", fmt.Sprintf("%d", spec.Channels),
		"--format", "f32",
		"--raw",
	}
	if device != "" {
		args = append(args, "--target", device)
	}

	cmd := exec.Command("pw-cat", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("sink: pipewire: stdin pipe: %w", err)
	}

	t := &pipewireTrack{dec: dec, cb: cb, params: params, global: p.global, cmd: cmd, stdin: stdin, stop: make(chan struct{})}

	p.mu.Lock()
	slot := &pipewireSlot{p: p, t: t}
	becamePlaying := p.q.Enqueue(slot)
	if becamePlaying {
		p.cur = t
	} else {
		p.next = t
	}
	p.mu.Unlock()

	if !params.Autostart && becamePlaying {
		// pw-cat has no native cork verb; suspend the freshly-started
		// process until Unpause sends SIGCONT (see package doc).
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("sink: pipewire: start pw-cat: %w", err)
		}
		cmd.Process.Signal(syscall.SIGSTOP)
	} else if err := cmd.Start(); err != nil {
		return fmt.Errorf("sink: pipewire: start pw-cat: %w", err)
	}

	cb.StreamEstablished()
	if becamePlaying {
		go t.feed(p)
	}
	return nil
}

// feed pulls raw frames from the decoder and writes them to pw-cat's stdin
// until end of decode, then hands off to any queued next-up track.
func (t *pipewireTrack) feed(p *PipeWire) {
	const chunkFrames = 4096
	started := false
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		if !started {
			started = true
			p.resetElapsed()
			t.cb.TrackStarted()
			p.q.MarkBuffered()
		}

		if skip := t.global.Skip.TakeOnce(); skip > 0 {
			spec := t.dec.Spec()
			toDrop := int(decode.DurToSamples(skip, spec.SampleRate, spec.Channels)) * 4
			var discard []byte
			t.dec.FillRawBuffer(&discard, toDrop)
			p.addElapsed(skip)
		}

		var raw []byte
		err := t.dec.FillRawBuffer(&raw, chunkFrames*4*t.dec.Spec().Channels)
		if len(raw) > 0 {
			if _, werr := t.stdin.Write(raw); werr != nil {
				t.cb.NotSupported()
				return
			}
			spec := t.dec.Spec()
			p.addElapsed(decode.SamplesToDur(int64(len(raw)/4), spec.SampleRate, spec.Channels))
		}

		switch err {
		case nil:
			continue
		case decode.ErrEndOfDecode:
			t.cb.EndOfDecode()
			p.q.MarkDraining()
			t.stdin.Close()
			t.cmd.Wait()
			t.cb.Drained()

			p.mu.Lock()
			nxt := p.next
			p.next = nil
			p.mu.Unlock()
			p.q.Shift()
			if nxt != nil {
				p.mu.Lock()
				p.cur = nxt
				p.mu.Unlock()
				nxt.cmd.Process.Signal(syscall.SIGCONT)
				go nxt.feed(p)
			}
			return
		default:
			t.cb.NotSupported()
			return
		}
	}
}

type pipewireSlot struct {
	p *PipeWire
	t *pipewireTrack
}

func (s *pipewireSlot) Disconnect() {
	close(s.t.stop)
	if s.t.cmd.Process != nil {
		s.t.cmd.Process.Kill()
	}
	s.t.stdin.Close()
	s.t.cmd.Wait()
}

func (p *PipeWire) Pause() bool {
	p.mu.Lock()
	cur := p.cur
	playing := p.q.Playing()
	p.mu.Unlock()
	if !playing || cur == nil || cur.cmd.Process == nil {
		return false
	}
	cur.cmd.Process.Signal(syscall.SIGSTOP)
	return true
}

func (p *PipeWire) Unpause() bool {
	p.mu.Lock()
	cur := p.cur
	playing := p.q.Playing()
	p.mu.Unlock()
	if !playing || cur == nil || cur.cmd.Process == nil {
		return false
	}
	cur.cmd.Process.Signal(syscall.SIGCONT)
	return true
}

// Stop disconnects both queue slots. Queue.Stop calls each pipewireSlot's
// Disconnect, which already closes the track's stop channel, kills pw-cat,
// and waits on it — doing that here too would close an already-closed
// channel.
func (p *PipeWire) Stop() {
	p.mu.Lock()
	p.cur, p.next = nil, nil
	p.mu.Unlock()
	p.q.Stop()
	p.resetElapsed()
}

func (p *PipeWire) Flush() { p.Stop() }

func (p *PipeWire) Shift() { p.q.Shift() }

func (p *PipeWire) GetDur() time.Duration {
	p.elapsedMu.Lock()
	defer p.elapsedMu.Unlock()
	return p.elapsed
}

// pwDumpNode is the subset of a pw-dump JSON object this backend reads.
type pwDumpNode struct {
	Type string `json:"type"`
	Info struct {
		Props map[string]any `json:"props"`
	} `json:"info"`
}

func (p *PipeWire) GetOutputDeviceNames() ([]Device, error) {
	out, err := exec.Command("pw-dump").Output()
	if err != nil {
		return nil, fmt.Errorf("sink: pipewire: pw-dump: %w", err)
	}

	var nodes []pwDumpNode
	if err := json.Unmarshal(out, &nodes); err != nil {
		return nil, fmt.Errorf("sink: pipewire: parse pw-dump output: %w", err)
	}

	var devices []Device
	for _, n := range nodes {
		if n.Type != "PipeWire:Interface:Node" {
			continue
		}
		class, _ := n.Info.Props["media.class"].(string)
		if class != "Audio/Sink" {
			continue
		}
		name, _ := n.Info.Props["node.name"].(string)
		desc, _ := n.Info.Props["node.description"].(string)
		if name == "" {
			continue
		}
		if desc == "" {
			desc = name
		}
		devices = append(devices, Device{Name: name, Description: desc})
	}
	return devices, nil
}

func (p *PipeWire) Close() error {
	p.Stop()
	return nil
}
