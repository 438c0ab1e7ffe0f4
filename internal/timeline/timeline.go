// Package timeline buffers the two most recent captured frames and measures
// the time between them.
package timeline

import (
	"time"

	"gocv.io/x/gocv"
)

// Capacity is the number of frames a Timeline holds.
const Capacity = 2

// Frame is one captured image and the moment it was taken.
type Frame struct {
	Image     gocv.Mat
	Timestamp time.Time
}

// Clock supplies capture timestamps.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Timeline is a fixed-size FIFO of frames. It is not safe for concurrent use.
type Timeline struct {
	frames []Frame
	clock  Clock
}

// New creates an empty Timeline. A nil clock uses RealClock.
func New(clock Clock) *Timeline {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timeline{frames: make([]Frame, 0, Capacity), clock: clock}
}

// Push appends f. When the timeline is full the oldest frame is evicted and
// returned so the caller can release its image.
func (t *Timeline) Push(f Frame) (evicted Frame, ok bool) {
	if len(t.frames) == Capacity {
		evicted, ok = t.frames[0], true
		copy(t.frames, t.frames[1:])
		t.frames = t.frames[:Capacity-1]
	}
	t.frames = append(t.frames, f)
	return evicted, ok
}

// Capture pushes img stamped with the timeline's clock.
func (t *Timeline) Capture(img gocv.Mat) (evicted Frame, ok bool) {
	return t.Push(Frame{Image: img, Timestamp: t.clock.Now()})
}

func (t *Timeline) Len() int { return len(t.frames) }

func (t *Timeline) Full() bool { return len(t.frames) == Capacity }

// Pair returns the held frames oldest first; ok is false until two frames were pushed.
func (t *Timeline) Pair() (older, newer Frame, ok bool) {
	if !t.Full() {
		return Frame{}, Frame{}, false
	}
	return t.frames[0], t.frames[1], true
}

// Close releases every held image and empties the timeline.
func (t *Timeline) Close() {
	for _, f := range t.frames {
		f.Image.Close()
	}
	t.frames = t.frames[:0]
}

// Elapsed is newer.Timestamp - older.Timestamp truncated to whole seconds.
func Elapsed(older, newer Frame) time.Duration {
	return newer.Timestamp.Sub(older.Timestamp).Truncate(time.Second)
}
