// Package queue implements the playback queue: a two-slot state machine
// ("playing", "next_up") with gapless transitions and buffering/draining
// flags.
package queue

import (
	"fmt"
	"sync"
)

// Slot is the polymorphic handle a sink backend registers into the queue.
// Concrete backends (internal/sink) satisfy this with a type wrapping
// their native stream handle.
type Slot interface {
	// Disconnect releases the backend stream. It must not return until the
	// backend guarantees no further callback will fire for this slot.
	Disconnect()
}

// Queue is the two-slot state machine.
type Queue struct {
	mu sync.Mutex

	playing Slot
	nextUp  Slot

	buffering bool
	draining  bool
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue installs a newly-created slot. If playing is empty it becomes the
// playing slot; otherwise it becomes next_up, replacing the previous
// next_up (which is disconnected first, since next_up is at most one
// pending track and requires playing to be occupied).
func (q *Queue) Enqueue(slot Slot) (becamePlaying bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.playing == nil {
		q.playing = slot
		q.buffering = true
		q.draining = false
		return true
	}

	if q.nextUp != nil {
		q.nextUp.Disconnect()
	}
	q.nextUp = slot
	return false
}

// MarkBuffered transitions buffering -> false: the first audio byte has
// been handed to the backend.
func (q *Queue) MarkBuffered() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buffering = false
}

// MarkDraining transitions draining -> true on EndOfDecode.
func (q *Queue) MarkDraining() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.draining = true
}

// Shift disconnects the current playing slot and promotes next_up, the
// "drained, advance to the queued track" transition. The caller should call
// Shift and then immediately uncork the promoted slot, while holding no
// other lock that could race a new Enqueue, since some backends cannot
// gaplessly append across the boundary.
func (q *Queue) Shift() (promoted Slot, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.playing == nil {
		return nil, false
	}

	q.playing.Disconnect()
	q.playing = q.nextUp
	q.nextUp = nil
	q.draining = false
	q.buffering = q.playing != nil

	return q.playing, q.playing != nil
}

// Stop disconnects both slots and clears the queue.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.playing != nil {
		q.playing.Disconnect()
		q.playing = nil
	}
	if q.nextUp != nil {
		q.nextUp.Disconnect()
		q.nextUp = nil
	}
	q.buffering = false
	q.draining = false
}

// Playing reports whether a playing slot currently exists.
func (q *Queue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing != nil
}

// State is a read-only snapshot of the queue's flags, useful for status
// frames and tests.
type State struct {
	HasPlaying bool
	HasNextUp  bool
	Buffering  bool
	Draining   bool
}

// Snapshot returns the current State, and defensively checks that a
// next_up slot never exists without a playing slot.
func (q *Queue) Snapshot() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := State{
		HasPlaying: q.playing != nil,
		HasNextUp:  q.nextUp != nil,
		Buffering:  q.buffering,
		Draining:   q.draining,
	}
	if s.HasNextUp && !s.HasPlaying {
		panic(fmt.Sprintf("queue: invariant violated: next_up set with no playing slot: %+v", s))
	}
	return s
}
