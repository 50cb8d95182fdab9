package typing

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 手动推进的时钟，到期回调在 Advance 中同步执行
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fn()
	}
}

func TestAddRefreshesExpiry(t *testing.T) {
	clock := &fakeClock{}
	s := NewSet(WithAfterFunc(clock.AfterFunc))

	s.Add("u")
	clock.Advance(2 * time.Second)
	s.Add("u")

	clock.Advance(time.Second)
	assert.True(t, s.Has("u"), "refreshed at t=2s, still present at t=3s")

	clock.Advance(time.Second + 900*time.Millisecond)
	assert.True(t, s.Has("u"))

	clock.Advance(100 * time.Millisecond)
	assert.False(t, s.Has("u"), "expired by t=5s")
}

func TestRemoveCancelsExpiry(t *testing.T) {
	clock := &fakeClock{}
	changes := 0
	s := NewSet(WithAfterFunc(clock.AfterFunc), WithOnChange(func() { changes++ }))

	s.Add("u")
	s.Remove("u")
	assert.False(t, s.Has("u"))

	s.Add("u")
	clock.Advance(3 * time.Second)
	assert.False(t, s.Has("u"))
	assert.Equal(t, 4, changes)
}

func TestStaleTimerDoesNotRemoveReAdded(t *testing.T) {
	clock := &fakeClock{}
	s := NewSet(WithAfterFunc(clock.AfterFunc))

	s.Add("u")
	first := clock.timers[0]
	s.Remove("u")
	s.Add("u")

	// 即使旧定时器的回调仍被触发，也不能移除新条目
	first.fn()
	assert.True(t, s.Has("u"))
}

func TestUsersOrderAndClear(t *testing.T) {
	clock := &fakeClock{}
	s := NewSet(WithAfterFunc(clock.AfterFunc))

	s.Add("b")
	s.Add("a")
	s.Add("b")
	require.Equal(t, []string{"b", "a"}, s.Users())

	s.Clear()
	assert.Empty(t, s.Users())
	clock.Advance(10 * time.Second)
	assert.Empty(t, s.Users())
}

func TestRealTimerExpires(t *testing.T) {
	s := NewSet(WithTTL(20 * time.Millisecond))
	s.Add("u")
	require.True(t, s.Has("u"))
	assert.Eventually(t, func() bool { return !s.Has("u") }, time.Second, 5*time.Millisecond)
}
