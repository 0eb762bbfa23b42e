package schedule

import (
	"sync"
	"testing"
	"time"
)

func TestTrigger_RunsAfterDelay(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	done := make(chan struct{})
	d.Trigger(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}
}

func TestTrigger_BurstCoalescesToLast(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	var mu sync.Mutex
	var ran []int
	record := func(i int) func() {
		return func() {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		}
	}

	d.Trigger(record(1))
	d.Trigger(record(2))
	d.Trigger(record(3))

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 1 || ran[0] != 3 {
		t.Errorf("ran = %v, want only the last trigger [3]", ran)
	}
}

func TestStop_CancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	fired := make(chan struct{}, 1)
	d.Trigger(func() { fired <- struct{}{} })
	d.Stop()

	select {
	case <-fired:
		t.Fatal("stopped debouncer still fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStop_RemainsUsable(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Trigger(func() {})
	d.Stop()

	done := make(chan struct{})
	d.Trigger(func() { close(done) })
	defer d.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debouncer unusable after Stop")
	}
}
