// Package sink implements the sink adapter: a polymorphic audio-backend
// abstraction over PulseAudio, PipeWire, and a generic cross-platform
// backend, each presenting the same capability interface to the control
// core.
package sink

import (
	"time"

	"github.com/vibeclient/vibe/internal/decode"
	"github.com/vibeclient/vibe/internal/queue"
	"github.com/vibeclient/vibe/internal/state"
)

// Callbacks are the pipeline events a backend emits back to the control
// core. Each is invoked from an audio-callback context and must never
// block; the control core supplies callbacks that send without blocking
// (see control.Core.emit), and backends call them directly.
type Callbacks struct {
	StreamEstablished func()
	TrackStarted      func()
	EndOfDecode       func()
	NotSupported      func()
	Drained           func()
}

// Params mirrors the subset of StreamRequest a sink needs once the Decoder
// already exists.
type Params struct {
	OutputThreshold time.Duration
	Autostart       bool
}

// Device describes one enumerable output device.
type Device struct {
	Name        string
	Description string
}

// Sink is the capability interface every backend implements.
type Sink interface {
	// EnqueueNewStream takes ownership of dec, creates one backend stream,
	// registers callbacks, and enqueues it into the shared Queue. It must
	// emit StreamEstablished; on autostart it may also emit TrackStarted
	// immediately. Only the generic backend pulls OutputThreshold worth of
	// audio at enqueue time; the PulseAudio and PipeWire backends do no
	// pre-roll and start pulling from the decoder on first demand.
	EnqueueNewStream(dec *decode.Decoder, cb Callbacks, params Params, device string) error

	// Pause corks the playing slot, if any. Idempotent; returns whether a
	// playing slot existed.
	Pause() bool

	// Unpause uncorks the playing slot, if any. Idempotent; returns whether
	// a playing slot existed.
	Unpause() bool

	// Stop disconnects both slots and clears the queue.
	Stop()

	// Flush is equivalent to Stop.
	Flush()

	// Shift disconnects the current slot and promotes next_up.
	Shift()

	// GetDur returns elapsed playback time per the backend's clock, or 0
	// if no slot is playing.
	GetDur() time.Duration

	// GetOutputDeviceNames enumerates devices via the backend.
	GetOutputDeviceNames() ([]Device, error)

	// Close releases all backend resources.
	Close() error
}

// globalState threads the VOLUME/SKIP/STATUS cells into a backend; every
// constructor below accepts it so the fill callback can consume SKIP and
// apply VOLUME, and so GetDur and status frames read/write through the
// same StatusData.
type globalState = state.Global

// playbackQueue aliases queue.Queue for use by a backend without importing
// control-specific types — kept as a tiny alias for readability at call
// sites in generic.go/pulse.go/pipewire.go.
type playbackQueue = queue.Queue
