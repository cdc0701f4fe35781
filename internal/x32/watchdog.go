package x32

import (
	"sync"
	"time"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
)

// Watchdog runs the periodic keep-alive probe against the registered
// console address. This is how address migration and silent loss are
// detected during steady-state operation, not only at startup.
//
// Reset cancels the running interval and starts a fresh one; the registry
// calls it on every genuine address change so the first probe after a
// change is a full interval away.
//
// Thread Safety: all methods are safe for concurrent use.
type Watchdog struct {
	interval time.Duration
	probe    func()
	logger   *logging.Logger

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWatchdog creates a stopped watchdog. probe is invoked once per
// interval on the watchdog goroutine; it must not block.
func NewWatchdog(interval time.Duration, probe func(), logger *logging.Logger) *Watchdog {
	return &Watchdog{
		interval: interval,
		probe:    probe,
		logger:   logger,
	}
}

// Reset cancels any running interval and starts a new one.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()

	stop := make(chan struct{})
	w.stop = stop
	w.wg.Add(1)
	go w.run(stop)

	w.logger.Debug("watchdog interval reset", "interval", w.interval)
}

// Stop cancels the running interval, if any.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// stopLocked closes the current run's stop channel and waits for its
// goroutine. Caller must hold w.mu.
func (w *Watchdog) stopLocked() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	w.wg.Wait()
	w.stop = nil
}

func (w *Watchdog) run(stop chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.probe()
		}
	}
}
