package daemon

import (
	"sync"
	"testing"
	"time"
)

// callLog records debounced calls.
type callLog struct {
	mu    sync.Mutex
	calls []string
	at    []time.Time
}

func (c *callLog) record(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, key)
	c.at = append(c.at, time.Now())
}

func (c *callLog) snapshot() ([]string, []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...), append([]time.Time(nil), c.at...)
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var log callLog
	d := newDebouncer(100*time.Millisecond, log.record)
	defer d.Stop()

	var last time.Time
	for i := 0; i < 10; i++ {
		d.Trigger("TASKS.md")
		last = time.Now()
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	calls, at := log.snapshot()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1: %v", len(calls), calls)
	}
	if gap := at[0].Sub(last); gap < 100*time.Millisecond {
		t.Errorf("fired %v after the last trigger, want at least the window", gap)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after firing, want 0", d.Pending())
	}
}

func TestDebouncer_IndependentKeys(t *testing.T) {
	var log callLog
	d := newDebouncer(50*time.Millisecond, log.record)
	defer d.Stop()

	d.Trigger("a.md")
	d.Trigger("b.md")
	d.Trigger("a.md")

	if d.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", d.Pending())
	}

	time.Sleep(250 * time.Millisecond)

	calls, _ := log.snapshot()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2: %v", len(calls), calls)
	}
	seen := map[string]bool{calls[0]: true, calls[1]: true}
	if !seen["a.md"] || !seen["b.md"] {
		t.Errorf("calls = %v", calls)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var log callLog
	d := newDebouncer(50*time.Millisecond, log.record)

	d.Trigger("a.md")
	d.Stop()
	d.Trigger("b.md")

	time.Sleep(150 * time.Millisecond)

	if calls, _ := log.snapshot(); len(calls) != 0 {
		t.Errorf("got calls after Stop: %v", calls)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", d.Pending())
	}
}
