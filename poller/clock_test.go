package poller

import (
	"sync"
	"time"
)

// manualClock only moves when Advance is called. Timers due inside an
// Advance window fire in deadline order.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	entries []*clockEntry
}

type clockEntry struct {
	clock   *manualClock
	ch      chan time.Time
	at      time.Time
	period  time.Duration
	stopped bool
}

func (e *clockEntry) C() <-chan time.Time { return e.ch }

func (e *clockEntry) stop() bool {
	e.clock.mu.Lock()
	defer e.clock.mu.Unlock()
	active := !e.stopped
	e.stopped = true
	return active
}

type manualTicker struct{ *clockEntry }

func (t manualTicker) Stop() { t.stop() }

type manualTimer struct{ *clockEntry }

func (t manualTimer) Stop() bool { return t.stop() }

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	return manualTicker{c.add(d, d)}
}

func (c *manualClock) NewTimer(d time.Duration) Timer {
	return manualTimer{c.add(d, 0)}
}

func (c *manualClock) add(d, period time.Duration) *clockEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &clockEntry{clock: c, ch: make(chan time.Time, 1), at: c.now.Add(d), period: period}
	c.entries = append(c.entries, e)
	return e
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.now.Add(d)
	for {
		var next *clockEntry
		for _, e := range c.entries {
			if e.stopped || e.at.After(target) {
				continue
			}
			if next == nil || e.at.Before(next.at) {
				next = e
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		select {
		case next.ch <- next.at:
		default:
		}
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			next.stopped = true
		}
	}
	c.now = target
}

// Active counts timers and tickers that can still fire.
func (c *manualClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.stopped {
			n++
		}
	}
	return n
}
