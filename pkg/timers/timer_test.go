package timers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerFiresCallbackPeriodically(t *testing.T) {
	var n int32
	tm := New(5*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	tm.Start()
	defer tm.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&n) >= 3 }, time.Second, time.Millisecond)
}

func TestTimerZeroPeriodIsDisabled(t *testing.T) {
	tm := New(0, func() { t.Fatal("callback must never fire") })
	require.Nil(t, tm)

	// All methods on a nil *Timer must be safe no-ops.
	tm.Start()
	tm.TriggerStop()
	tm.WaitForStop()
	tm.Stop()
}

func TestTimerTriggerStopThenWaitForStopJoins(t *testing.T) {
	tm := New(time.Millisecond, func() {})
	tm.Start()

	tm.TriggerStop()
	done := make(chan struct{})
	go func() {
		tm.WaitForStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForStop did not return after TriggerStop")
	}
}

func TestTimerTriggerStopIsIdempotent(t *testing.T) {
	tm := New(time.Millisecond, func() {})
	tm.Start()
	require.NotPanics(t, func() {
		tm.TriggerStop()
		tm.TriggerStop()
	})
	tm.WaitForStop()
}
