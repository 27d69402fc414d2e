package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, rate float64, burst int) (*MemoryLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemoryLimiter(rate, burst)
	m.now = clock.Now
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m, clock
}

func allow(t *testing.T, m *MemoryLimiter, key string) Decision {
	t.Helper()
	d, err := m.Allow(context.Background(), key)
	require.NoError(t, err)
	return d
}

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	t.Parallel()
	m, _ := newTestLimiter(t, 1, 3)

	for i := range 3 {
		assert.True(t, allow(t, m, "k").Allowed, "request %d within burst", i)
	}
	d := allow(t, m, "k")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestMemoryLimiterRefill(t *testing.T) {
	t.Parallel()
	m, clock := newTestLimiter(t, 2, 1)

	assert.True(t, allow(t, m, "k").Allowed)
	d := allow(t, m, "k")
	require.False(t, d.Allowed)
	assert.Equal(t, 500*time.Millisecond, d.RetryAfter)

	clock.Advance(500 * time.Millisecond)
	assert.True(t, allow(t, m, "k").Allowed)
}

func TestMemoryLimiterTokensCapAtBurst(t *testing.T) {
	t.Parallel()
	m, clock := newTestLimiter(t, 1000, 3)

	allow(t, m, "k")
	clock.Advance(time.Hour)

	for i := range 3 {
		assert.True(t, allow(t, m, "k").Allowed, "request %d after long idle", i)
	}
	assert.False(t, allow(t, m, "k").Allowed)
}

func TestMemoryLimiterIndependentKeys(t *testing.T) {
	t.Parallel()
	m, _ := newTestLimiter(t, 1, 1)

	assert.True(t, allow(t, m, "a").Allowed)
	assert.False(t, allow(t, m, "a").Allowed)
	assert.True(t, allow(t, m, "b").Allowed)
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	t.Parallel()
	m, _ := newTestLimiter(t, 1, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				d, err := m.Allow(context.Background(), "shared")
				if err != nil {
					t.Errorf("Allow: %v", err)
					return
				}
				if d.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestMemoryLimiterEvictsStale(t *testing.T) {
	t.Parallel()
	m, clock := newTestLimiter(t, 1, 5)

	allow(t, m, "stale")
	clock.Advance(staleThreshold / 2)
	allow(t, m, "recent")
	clock.Advance(staleThreshold/2 + time.Second)

	m.evictStale()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.buckets, "stale")
	assert.Contains(t, m.buckets, "recent")
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	t.Parallel()
	m := NewMemoryLimiter(10, 5)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	t.Parallel()
	var l NoopLimiter
	for range 100 {
		d, err := l.Allow(context.Background(), "anything")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	require.NoError(t, l.Close())
}
