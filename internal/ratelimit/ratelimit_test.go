package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

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
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
}

func TestWindow_TenAllowedEleventhRejected(t *testing.T) {
	clk := newClock()
	w := NewWindow(time.Minute, 10, WithClock(clk.Now))

	for i := 1; i <= 10; i++ {
		assert.True(t, w.Allow("1.2.3.4"), "call %d should be allowed", i)
	}
	assert.False(t, w.Allow("1.2.3.4"), "11th call should be rejected")
	assert.Equal(t, 10, w.Count("1.2.3.4"))
}

func TestWindow_ResetsAfterWindow(t *testing.T) {
	clk := newClock()
	w := NewWindow(time.Minute, 10, WithClock(clk.Now))

	for i := 0; i < 11; i++ {
		w.Allow("k")
	}
	clk.Advance(time.Minute)

	assert.True(t, w.Allow("k"))
	assert.Equal(t, 1, w.Count("k"))
}

func TestWindow_StillLimitedJustBeforeReset(t *testing.T) {
	clk := newClock()
	w := NewWindow(time.Minute, 2, WithClock(clk.Now))

	assert.True(t, w.Allow("k"))
	assert.True(t, w.Allow("k"))
	clk.Advance(59 * time.Second)
	assert.False(t, w.Allow("k"))
}

func TestWindow_KeysAreIndependent(t *testing.T) {
	clk := newClock()
	w := NewWindow(time.Minute, 1, WithClock(clk.Now))

	assert.True(t, w.Allow("a"))
	assert.False(t, w.Allow("a"))
	assert.True(t, w.Allow("b"))
}

func TestWindow_SweepDropsExpired(t *testing.T) {
	clk := newClock()
	w := NewWindow(time.Minute, 5, WithClock(clk.Now))

	for i := 0; i < 20; i++ {
		w.Allow(fmt.Sprintf("client-%d", i))
	}
	clk.Advance(11 * time.Minute)
	w.Allow("fresh")

	w.mu.Lock()
	n := len(w.records)
	w.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestWindow_ConcurrentCallsRespectCap(t *testing.T) {
	w := NewWindow(time.Minute, 10)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(10), allowed.Load())
}

func TestNop(t *testing.T) {
	var l Limiter = Nop{}
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("x"))
	}
}
