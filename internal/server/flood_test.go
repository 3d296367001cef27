package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFloodGuardNineRapidFramesNeverFlag(t *testing.T) {
	g := newFloodGuard(10, 5*time.Second)
	base := time.Unix(1000, 0)

	for i := 0; i < 9; i++ {
		at := base.Add(time.Duration(i) * 100 * time.Millisecond)
		assert.False(t, g.Record(at), "frame %d should not flag", i)
	}
}

func TestFloodGuardTenthFrameWithinWindowFlags(t *testing.T) {
	g := newFloodGuard(10, 5*time.Second)
	base := time.Unix(1000, 0)

	for i := 0; i < 9; i++ {
		assert.False(t, g.Record(base.Add(time.Duration(i)*100*time.Millisecond)))
	}
	assert.True(t, g.Record(base.Add(4*time.Second)))
}

func TestFloodGuardSlowSenderNeverFlags(t *testing.T) {
	g := newFloodGuard(10, 5*time.Second)
	base := time.Unix(1000, 0)

	// Ten frames spread over 5.4s: the full ring spans >= 5s.
	for i := 0; i < 20; i++ {
		at := base.Add(time.Duration(i) * 600 * time.Millisecond)
		assert.False(t, g.Record(at), "frame %d should not flag", i)
	}
}

func TestFloodGuardWindowSlides(t *testing.T) {
	g := newFloodGuard(10, 5*time.Second)
	base := time.Unix(1000, 0)

	// One old frame followed by a burst: the old frame shields the first
	// full-ring check, but it is evicted by the next frame.
	assert.False(t, g.Record(base))
	burst := base.Add(100 * time.Second)
	for i := 0; i < 9; i++ {
		assert.False(t, g.Record(burst.Add(time.Duration(i)*100*time.Millisecond)))
	}
	// The ring now holds only burst frames spanning under a second.
	assert.True(t, g.Record(burst.Add(900*time.Millisecond)))
}

func TestFloodGuardExactWindowBoundaryDoesNotFlag(t *testing.T) {
	g := newFloodGuard(10, 5*time.Second)
	base := time.Unix(1000, 0)

	for i := 0; i < 9; i++ {
		assert.False(t, g.Record(base.Add(time.Duration(i)*100*time.Millisecond)))
	}
	// Span of exactly the interval is not a flood: the check is strict.
	assert.False(t, g.Record(base.Add(5*time.Second)))
}
