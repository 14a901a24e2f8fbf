// Package state holds the process-wide shared cells: VOLUME, SKIP, and
// STATUS. Each cell is guarded by a mutex or atomic; NewGlobal bundles one
// of each into a Global that is passed to the control core and to every
// sink and decoder that reads or writes them.
package state

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Volume holds per-channel linear gain, sqrt-scaled from the server's
// "gain" value.
type Volume struct {
	mu   sync.RWMutex
	l, r float32
	ok   bool
}

// NewVolume returns a Volume initialized to full scale.
func NewVolume() *Volume {
	return &Volume{l: 1, r: 1, ok: true}
}

// Set clamps (l, r) to [0,1] and stores their square roots.
func (v *Volume) Set(l, r float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.l = float32(math.Sqrt(clamp01(l)))
	v.r = float32(math.Sqrt(clamp01(r)))
	v.ok = true
}

// Get returns the current per-channel gain. When the lock cannot be taken
// promptly elsewhere in the system (e.g. a poisoned/unavailable cell), callers
// should fall back to (0.5, 0.5) lock-poisoning recovery rule;
// this implementation's RWMutex cannot itself be "unavailable", so Get always
// succeeds, but TryGet below exposes the fallback path for callers that model
// a non-blocking callback context.
func (v *Volume) Get() (float32, float32) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.l, v.r
}

// TryGet is the non-blocking variant used from audio callbacks 
// "When the lock is unavailable, use (0.5, 0.5)").
func (v *Volume) TryGet() (float32, float32) {
	if !v.mu.TryRLock() {
		return 0.5, 0.5
	}
	defer v.mu.RUnlock()
	if !v.ok {
		return 0.5, 0.5
	}
	return v.l, v.r
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Skip is the take-once duration cell written by Skip(duration) and consumed
// by the next fill-callback invocation.
type Skip struct {
	nanos atomic.Int64
}

// Store records a new skip request, overwriting any unconsumed one
// (Skip(d1); Skip(d2) with no fill between == Skip(d2)).
func (s *Skip) Store(d time.Duration) {
	s.nanos.Store(int64(d))
}

// TakeOnce atomically reads and clears the pending skip.
func (s *Skip) TakeOnce() time.Duration {
	return time.Duration(s.nanos.Swap(0))
}

// StatusData is the process-wide counter bag mutated only under a lock and
// read to build status frames.
type StatusData struct {
	mu sync.Mutex

	elapsedMs    int64
	elapsed      time.Duration
	outputSize   uint32
	outputFull   uint32
	crlfCount    uint32
	timestampRaw uint32
	jiffiesBase  time.Time
}

// NewStatusData returns a zeroed StatusData with its jiffies epoch set to now.
func NewStatusData() *StatusData {
	return &StatusData{jiffiesBase: time.Now()}
}

// SetElapsed records the backend's current playback-clock value.
func (s *StatusData) SetElapsed(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = d
	s.elapsedMs = d.Milliseconds()
}

// Reset zeroes elapsed and buffer-fullness counters (Stop/Flush/TrackStarted).
func (s *StatusData) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = 0
	s.elapsedMs = 0
	s.outputFull = 0
}

// SetOutputBuffer records backend output-buffer size/fullness.
func (s *StatusData) SetOutputBuffer(size, full uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputSize = size
	s.outputFull = full
}

// AddCRLF increments the observed CR/LF header count for the active stream.
func (s *StatusData) AddCRLF(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crlfCount += n
}

// SetTimestampEcho records the timestamp from the server's Status message so
// it can be echoed back verbatim in the next Timer frame.
func (s *StatusData) SetTimestampEcho(ts uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timestampRaw = ts
}

// Snapshot is an immutable read used to build outbound status frames.
type Snapshot struct {
	ElapsedMs    int64
	Elapsed      time.Duration
	OutputSize   uint32
	OutputFull   uint32
	CRLFCount    uint32
	TimestampRaw uint32
	Jiffies      uint32
}

// Snapshot reads all counters under the lock.
func (s *StatusData) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ElapsedMs:    s.elapsedMs,
		Elapsed:      s.elapsed,
		OutputSize:   s.outputSize,
		OutputFull:   s.outputFull,
		CRLFCount:    s.crlfCount,
		TimestampRaw: s.timestampRaw,
		Jiffies:      uint32(time.Since(s.jiffiesBase).Milliseconds()),
	}
}

// Global is the process-wide instance bundle threaded through the control
// core and every callback context.
type Global struct {
	Volume *Volume
	Skip   *Skip
	Status *StatusData
}

// NewGlobal constructs a fresh Global bundle.
func NewGlobal() *Global {
	return &Global{
		Volume: NewVolume(),
		Skip:   &Skip{},
		Status: NewStatusData(),
	}
}
