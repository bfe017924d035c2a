// Package tchantest provides the injected clock/timer/rng harness spec.md
// §3 and §8 require for deterministic tests of the timeout sweeper: a
// fake Now(), a manually-advanced timer queue, and a fixed Random().
package tchantest

import (
	"sort"
	"sync"
	"time"

	"github.com/gochannel/tchan"
)

// Clock is a manually-advanced virtual clock. Build one with NewClock (the
// zero value has no timer table, so SetTimer on it panics); call Advance
// to move time forward and fire any timers whose deadline has passed.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	timers  map[int]*fakeTimer
	random  float64
}

type fakeTimer struct {
	id       int
	deadline time.Time
	fire     func()
	stopped  bool
}

func (t *fakeTimer) Stop() {
	t.stopped = true
}

// NewClock returns a Clock starting at t0, with Random() fixed at
// rng (use 0.5 for "no jitter" in tests that don't care about fuzz).
func NewClock(t0 time.Time, rng float64) *Clock {
	return &Clock{now: t0, timers: make(map[int]*fakeTimer), random: rng}
}

// Now matches the signature of Options.Now.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Random matches the signature of Options.Random.
func (c *Clock) Random() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.random
}

// SetRandom changes the fixed value future Random() calls return.
func (c *Clock) SetRandom(r float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.random = r
}

// SetTimer matches the signature of Options.SetTimer: it records f to
// fire no earlier than d from the current virtual time.
func (c *Clock) SetTimer(d time.Duration, f func()) tchan.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	t := &fakeTimer{id: c.nextID, deadline: c.now.Add(d), fire: f}
	c.timers[t.id] = t
	return t
}

// ClearTimer matches the signature of Options.ClearTimer.
func (c *Clock) ClearTimer(t tchan.Timer) {
	ft, ok := t.(*fakeTimer)
	if !ok || ft == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.timers, ft.id)
}

// Advance moves the virtual clock forward by d, firing every timer whose
// deadline now lies at-or-before the new time, in deadline order. Fired
// timers are removed before their callback runs so a callback that
// re-arms itself (as the timeout sweep does) doesn't get invoked twice
// for the same deadline.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now

	var due []*fakeTimer
	for id, t := range c.timers {
		if !t.stopped && !t.deadline.After(target) {
			due = append(due, t)
			delete(c.timers, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	c.mu.Unlock()

	for _, t := range due {
		t.fire()
	}
}
