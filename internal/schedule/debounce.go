// Package schedule provides small timer-driven task abstractions with
// explicit ownership and cancellation.
package schedule

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single trailing-edge call:
// only the function passed to the last Trigger within a settling period runs.
// Superseded triggers are dropped, never queued.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a Debouncer with the given settling delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the settling delay, replacing any pending
// call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.gen == gen
		d.mu.Unlock()
		// A newer trigger may have landed between the timer firing and this
		// check; it wins.
		if current {
			fn()
		}
	})
}

// Stop cancels any pending call. The Debouncer remains usable.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
