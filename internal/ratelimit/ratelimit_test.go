package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(maxRequests int, interval time.Duration) (*FixedWindow, *time.Time) {
	l := NewFixedWindow(maxRequests, interval)
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestAllow_UpToLimit(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestAllow_WindowResets(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	*clock = clock.Add(59 * time.Second)
	assert.False(t, l.Allow("10.0.0.1"))

	*clock = clock.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestAllow_SweepsExpiredWindows(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")

	*clock = clock.Add(2 * time.Minute)
	l.Allow("10.0.0.3")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.windows, 1)
}

func TestNewFixedWindow_Defaults(t *testing.T) {
	l := NewFixedWindow(0, 0)
	assert.Equal(t, 20, l.maxRequests)
	assert.Equal(t, time.Minute, l.interval)
}
