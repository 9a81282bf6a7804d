package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int, window time.Duration) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(max, window, time.Minute)
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiterWindow(t *testing.T) {
	l, clock := newTestLimiter(10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := l.Check(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 10-(i+1), res.Remaining)
		clock.Advance(time.Second)
	}

	res, err := l.Check(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	// oldest request was at 12:00:00, now is 12:00:10
	assert.Equal(t, 50, res.WaitSeconds(clock.Now()))

	clock.Advance(time.Minute)
	res, err = l.Check(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiterUsersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	res, _ := l.Check(ctx, "a")
	assert.True(t, res.Allowed)
	res, _ = l.Check(ctx, "a")
	assert.False(t, res.Allowed)

	res, _ = l.Check(ctx, "b")
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, l.Tracked())
}

func TestMemoryLimiterSlidesWithOldest(t *testing.T) {
	l, clock := newTestLimiter(2, 10*time.Second)
	ctx := context.Background()

	l.Check(ctx, "u")
	clock.Advance(6 * time.Second)
	l.Check(ctx, "u")

	res, _ := l.Check(ctx, "u")
	assert.False(t, res.Allowed)
	assert.Equal(t, 4, res.WaitSeconds(clock.Now()))

	clock.Advance(5 * time.Second)
	res, _ = l.Check(ctx, "u")
	assert.True(t, res.Allowed, "first request left the window")
}

func TestWaitSeconds(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 0, Result{Allowed: true}.WaitSeconds(now))
	assert.Equal(t, 1, Result{ResetTime: now.Add(200 * time.Millisecond)}.WaitSeconds(now))
	assert.Equal(t, 1, Result{ResetTime: now.Add(-time.Second)}.WaitSeconds(now))
	assert.Equal(t, 3, Result{ResetTime: now.Add(2100 * time.Millisecond)}.WaitSeconds(now))
}
