package daemon

import (
	"sync"
	"time"
)

// pending is one scheduled callback. gen identifies the event that armed
// it; a timer whose gen is no longer current does nothing.
type pending struct {
	timer *time.Timer
	gen   uint64
}

// debouncer coalesces triggers per key and calls fn once the key has been
// quiet for delay. Each key moves Idle -> Debouncing -> (fire) -> Idle.
type debouncer struct {
	delay time.Duration
	fn    func(key string)

	mu      sync.Mutex
	entries map[string]pending
	gen     uint64
	stopped bool

	inflight sync.WaitGroup
}

func newDebouncer(delay time.Duration, fn func(key string)) *debouncer {
	return &debouncer{
		delay:   delay,
		fn:      fn,
		entries: make(map[string]pending),
	}
}

// Trigger (re)arms the timer for key. The window is measured from the last
// trigger.
func (d *debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if p, ok := d.entries[key]; ok {
		p.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.entries[key] = pending{
		timer: time.AfterFunc(d.delay, func() { d.fire(key, gen) }),
		gen:   gen,
	}
}

func (d *debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	p, ok := d.entries[key]
	if !ok || p.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.fn(key)
}

// Pending returns the number of keys waiting to fire.
func (d *debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Stop cancels every pending timer and waits for callbacks already running.
// Later triggers are ignored.
func (d *debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, p := range d.entries {
		p.timer.Stop()
		delete(d.entries, key)
	}
	d.mu.Unlock()

	d.inflight.Wait()
}
