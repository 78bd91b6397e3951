package livelocation_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"safecircle/backend/internal/livelocation"
	"safecircle/backend/internal/models"
	"safecircle/backend/internal/realtime"
)

// delivery is one event as received by one connection.
type delivery struct {
	ConnID  string
	Event   string
	Payload interface{}
}

// fakeTransport records deliveries per connection and tracks group membership.
type fakeTransport struct {
	mu         sync.Mutex
	groups     map[string]map[string]bool
	deliveries []delivery
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{groups: make(map[string]map[string]bool)}
}

func (t *fakeTransport) Emit(connID, event string, payload interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deliveries = append(t.deliveries, delivery{ConnID: connID, Event: event, Payload: payload})
}

func (t *fakeTransport) Join(group, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.groups[group] == nil {
		t.groups[group] = make(map[string]bool)
	}
	t.groups[group][connID] = true
}

func (t *fakeTransport) Leave(group, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.groups[group], connID)
	if len(t.groups[group]) == 0 {
		delete(t.groups, group)
	}
}

func (t *fakeTransport) EmitToGroup(group, except, event string, payload interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	members := make([]string, 0, len(t.groups[group]))
	for id := range t.groups[group] {
		members = append(members, id)
	}
	sort.Strings(members)
	for _, id := range members {
		if id != except {
			t.deliveries = append(t.deliveries, delivery{ConnID: id, Event: event, Payload: payload})
		}
	}
}

// received returns the deliveries of event to connID.
func (t *fakeTransport) received(connID, event string) []delivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []delivery
	for _, d := range t.deliveries {
		if d.ConnID == connID && d.Event == event {
			out = append(out, d)
		}
	}
	return out
}

func (t *fakeTransport) count(event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, d := range t.deliveries {
		if d.Event == event {
			n++
		}
	}
	return n
}

// fakeClock replaces the wall clock and timers; tests fire timers by hand.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) livelocation.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock and runs every live timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(c.now) {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// acks collects acknowledgment responses.
type acks struct {
	got []models.AckResponse
}

func (a *acks) fn() realtime.AckFunc {
	return func(resp models.AckResponse) { a.got = append(a.got, resp) }
}

func (a *acks) last() models.AckResponse {
	if len(a.got) == 0 {
		return models.AckResponse{}
	}
	return a.got[len(a.got)-1]
}

type fakeNotifier struct {
	started []string
}

func (n *fakeNotifier) LiveLocationStarted(_ context.Context, shareID string) {
	n.started = append(n.started, shareID)
}

func ptr(f float64) *float64 { return &f }
