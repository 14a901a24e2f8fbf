package decode

import (
	"bufio"
	"io"
	"sync"

	"github.com/vibeclient/vibe/internal/state"
)

// SlimBuffer is a bounded read-through buffer over the per-track HTTP
// socket. It reports its fullness through StatusData's buffer counters
// (SetOutputBuffer) and signals the first crossing of its capacity threshold.
type SlimBuffer struct {
	r        *bufio.Reader
	capacity int // bytes
	status   *state.StatusData

	mu          sync.Mutex
	filled      int
	crossed     bool
	onThreshold func()
}

// NewSlimBuffer wraps r in a buffer of the given capacity (bytes).
// onThreshold is invoked exactly once, the first time the total number of
// bytes read through the buffer reaches capacity.
func NewSlimBuffer(r io.Reader, capacityBytes int, status *state.StatusData, onThreshold func()) *SlimBuffer {
	if capacityBytes < 1 {
		capacityBytes = 1
	}
	return &SlimBuffer{
		r:           bufio.NewReaderSize(r, capacityBytes),
		capacity:    capacityBytes,
		status:      status,
		onThreshold: onThreshold,
	}
}

// Read implements io.Reader, tracking fullness as bytes pass through.
func (b *SlimBuffer) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if n > 0 {
		b.mu.Lock()
		b.filled += n
		full := b.filled
		if full > b.capacity {
			full = b.capacity
		}
		crossedNow := !b.crossed && full >= b.capacity
		if crossedNow {
			b.crossed = true
		}
		b.mu.Unlock()

		if b.status != nil {
			b.status.SetOutputBuffer(uint32(b.capacity), uint32(full))
		}
		if crossedNow && b.onThreshold != nil {
			b.onThreshold()
		}
	}
	return n, err
}

// ReadByte satisfies io.ByteReader for consumers (e.g. header scanning)
// that want single-byte reads without losing the buffering.
func (b *SlimBuffer) ReadByte() (byte, error) {
	var one [1]byte
	_, err := b.Read(one[:])
	return one[0], err
}

// countingReader wraps the header-stripped stream handed to container
// probers and counts the bytes read through it; no caller reads the count.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
