package x32

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
)

func TestWatchdogProbes(t *testing.T) {
	var probes atomic.Int32
	w := NewWatchdog(10*time.Millisecond, func() { probes.Add(1) }, logging.Default())
	defer w.Stop()

	w.Reset()

	deadline := time.After(time.Second)
	for probes.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("watchdog never probed twice")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWatchdogStop(t *testing.T) {
	var probes atomic.Int32
	w := NewWatchdog(10*time.Millisecond, func() { probes.Add(1) }, logging.Default())

	w.Reset()
	time.Sleep(35 * time.Millisecond)
	w.Stop()

	after := probes.Load()
	time.Sleep(50 * time.Millisecond)
	if got := probes.Load(); got != after {
		t.Errorf("watchdog probed after Stop: %d -> %d", after, got)
	}

	// Stop on a stopped watchdog is a no-op.
	w.Stop()
}

func TestWatchdogResetRestartsInterval(t *testing.T) {
	var probes atomic.Int32
	w := NewWatchdog(50*time.Millisecond, func() { probes.Add(1) }, logging.Default())
	defer w.Stop()

	// Keep resetting faster than the interval; no probe should land.
	for i := 0; i < 5; i++ {
		w.Reset()
		time.Sleep(15 * time.Millisecond)
	}

	if got := probes.Load(); got != 0 {
		t.Errorf("watchdog probed %d times despite continual resets, want 0", got)
	}
}
