package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowCooldown(t *testing.T) {
	w := NewWindow(30*time.Second, 5*time.Minute, 10)
	t0 := time.Unix(1_700_000_000, 0)

	assert.True(t, w.Acquire("BTCUSDT", t0))
	assert.False(t, w.Allow("BTCUSDT", t0.Add(29*time.Second)))
	assert.True(t, w.Allow("ETHUSDT", t0.Add(time.Second)))
	assert.True(t, w.Acquire("BTCUSDT", t0.Add(30*time.Second)))
}

func TestWindowCapWithinSpan(t *testing.T) {
	w := NewWindow(0, 5*time.Minute, 3)
	t0 := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, w.Acquire("SOLUSDT", t0.Add(time.Duration(i)*time.Minute)))
	}
	assert.False(t, w.Acquire("SOLUSDT", t0.Add(4*time.Minute)))
	assert.Equal(t, 3, w.Count("SOLUSDT", t0.Add(4*time.Minute)))

	// the first event leaves the trailing window after five minutes
	assert.True(t, w.Acquire("SOLUSDT", t0.Add(5*time.Minute)))
	assert.Equal(t, 3, w.Count("SOLUSDT", t0.Add(5*time.Minute)))
}

func TestWindowForget(t *testing.T) {
	w := NewWindow(time.Hour, time.Hour, 1)
	t0 := time.Unix(1_700_000_000, 0)
	assert.True(t, w.Acquire("X", t0))
	assert.False(t, w.Allow("X", t0))
	w.Forget("X")
	assert.True(t, w.Allow("X", t0))
}

func TestLimiterRefills(t *testing.T) {
	l := New()
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("ip", 2, 1))
	assert.True(t, l.Allow("ip", 2, 1))
	assert.False(t, l.Allow("ip", 2, 1))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("ip", 2, 1))
}
