package core

import (
	"sync"
	"time"
)

// Debouncer coalesces Schedule calls: fn runs once, delay after the last call.
// fn should read the latest state itself rather than capture it at schedule time.
type Debouncer struct {
	mu      sync.Mutex
	idle    *sync.Cond // signalled when running drops
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	gen     uint64
	running int
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	d := &Debouncer{delay: delay, fn: fn}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Schedule cancels any pending run and arms a new one.
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// superseded by a later Schedule, Flush or Stop
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.running++
	d.mu.Unlock()

	d.run()
}

func (d *Debouncer) run() {
	defer func() {
		d.mu.Lock()
		d.running--
		d.idle.Broadcast()
		d.mu.Unlock()
	}()
	d.fn()
}

// Flush runs a pending call now, or waits for one the timer already started.
// It reports whether a call was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.timer == nil {
		for d.running > 0 {
			d.idle.Wait()
		}
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	d.running++
	d.mu.Unlock()

	d.run()
	return true
}

// Stop drops a pending call without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
