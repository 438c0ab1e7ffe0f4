package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestTimeline_FIFO(t *testing.T) {
	start := time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC)
	tl := New(nil)
	assert.Equal(t, 0, tl.Len())

	_, _, ok := tl.Pair()
	assert.False(t, ok)

	_, evicted := tl.Push(Frame{Timestamp: start})
	assert.False(t, evicted)
	assert.False(t, tl.Full())

	_, evicted = tl.Push(Frame{Timestamp: start.Add(5 * time.Second)})
	assert.False(t, evicted)
	assert.True(t, tl.Full())

	old, evicted := tl.Push(Frame{Timestamp: start.Add(10 * time.Second)})
	require.True(t, evicted)
	assert.Equal(t, start, old.Timestamp)
	assert.Equal(t, Capacity, tl.Len())

	older, newer, ok := tl.Pair()
	require.True(t, ok)
	assert.Equal(t, start.Add(5*time.Second), older.Timestamp)
	assert.Equal(t, start.Add(10*time.Second), newer.Timestamp)
}

func TestTimeline_CaptureUsesClock(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC), step: 6500 * time.Millisecond}
	tl := New(clock)

	a := gocv.NewMat()
	b := gocv.NewMat()
	tl.Capture(a)
	tl.Capture(b)
	defer tl.Close()

	older, newer, ok := tl.Pair()
	require.True(t, ok)
	assert.Equal(t, 6*time.Second, Elapsed(older, newer))
}

func TestTimeline_Close(t *testing.T) {
	tl := New(nil)
	tl.Capture(gocv.NewMat())
	tl.Capture(gocv.NewMat())
	tl.Close()
	assert.Equal(t, 0, tl.Len())
}

func TestElapsed(t *testing.T) {
	base := time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		delta time.Duration
		want  time.Duration
	}{
		{"WholeSeconds", 5 * time.Second, 5 * time.Second},
		{"Truncated", 5*time.Second + 999*time.Millisecond, 5 * time.Second},
		{"SubSecond", 400 * time.Millisecond, 0},
		{"Negative", -2500 * time.Millisecond, -2 * time.Second},
		{"OverAMinute", 83 * time.Second, 83 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Elapsed(Frame{Timestamp: base}, Frame{Timestamp: base.Add(tt.delta)})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestElapsed_TruncatesDifference(t *testing.T) {
	base := time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC)
	// Crossing a second boundary 200ms apart is still zero whole seconds.
	older := Frame{Timestamp: base.Add(900 * time.Millisecond)}
	newer := Frame{Timestamp: base.Add(1100 * time.Millisecond)}
	assert.Equal(t, time.Duration(0), Elapsed(older, newer))
}
