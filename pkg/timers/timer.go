// Package timers implements the forwarder's two periodic drivers,
// liveness re-emit and synthetic-update generation, which share one shape:
// a periodic waker invoking a callback until stopped.
package timers

import (
	"sync"
	"time"
)

// Timer is a periodic driver that invokes a callback on every tick until
// stopped. A period of 0 disables the timer entirely: New returns nil in
// that case, and all methods on a nil *Timer are safe no-ops so callers
// need no special-casing.
type Timer struct {
	period   time.Duration
	callback func()

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Timer invoking callback every period. It returns nil if
// period is zero, the "0 disables" convention of the timer config fields.
func New(period time.Duration, callback func()) *Timer {
	if period <= 0 {
		return nil
	}
	return &Timer{
		period:   period,
		callback: callback,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the timer's goroutine. Calling Start on a nil Timer is a
// no-op.
func (t *Timer) Start() {
	if t == nil {
		return
	}
	go t.run()
}

func (t *Timer) run() {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.callback()
		case <-t.stopCh:
			return
		}
	}
}

// TriggerStop sets the stop flag without waiting for the goroutine to
// exit. Safe to call more than once and safe on a nil Timer.
func (t *Timer) TriggerStop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// WaitForStop blocks until the timer's goroutine has exited. TriggerStop
// must be called first or this blocks forever. Safe on a nil Timer
// (returns immediately).
func (t *Timer) WaitForStop() {
	if t == nil {
		return
	}
	<-t.doneCh
}

// Stop is a convenience combining TriggerStop and WaitForStop, used by
// callers that don't need to overlap shutdown of multiple timers.
func (t *Timer) Stop() {
	t.TriggerStop()
	t.WaitForStop()
}
