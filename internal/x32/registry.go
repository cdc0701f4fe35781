package x32

import (
	"net"
	"sync"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
)

// Registry is the single mutable slot holding the currently known console
// address. All mutation funnels through Update so the re-sync and
// watchdog-reset side effects cannot be skipped.
//
// Policy: the most recently observed replying address wins. If a probe
// elicits a reply from a different address than currently registered, the
// registry switches to it without a challenge step. This is a simplicity
// trade-off for trusted LANs, not a security boundary.
//
// The slot is never cleared: the last known address is retained even when
// the console goes silent, so recovery after a power cycle is immediate.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	addr     *net.UDPAddr
	onChange []func(addr *net.UDPAddr, reason string)
	logger   *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{logger: logger}
}

// Current returns the known console address, or nil if none yet.
func (r *Registry) Current() *net.UDPAddr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.addr == nil {
		return nil
	}
	cp := *r.addr
	return &cp
}

// OnChange registers a callback invoked after every genuine address
// change. Callbacks run synchronously on the updating goroutine; keep
// them short. Must be called during wiring, before concurrent use.
func (r *Registry) OnChange(fn func(addr *net.UDPAddr, reason string)) {
	r.onChange = append(r.onChange, fn)
}

// Update records newAddr as the console address.
//
// Updating to the already-registered address is a logged no-op: no
// re-sync is scheduled and the watchdog is not reset. On a genuine change
// the new address is stored and every OnChange callback fires exactly
// once.
func (r *Registry) Update(newAddr *net.UDPAddr, reason string) {
	if newAddr == nil {
		return
	}

	r.mu.Lock()
	if sameAddr(r.addr, newAddr) {
		r.mu.Unlock()
		r.logger.Debug("device address unchanged", "address", newAddr.String(), "reason", reason)
		return
	}

	prev := r.addr
	cp := *newAddr
	r.addr = &cp
	callbacks := r.onChange
	r.mu.Unlock()

	if prev == nil {
		r.logger.Info("device registered", "address", newAddr.String(), "reason", reason)
	} else {
		r.logger.Info("device address changed",
			"previous", prev.String(),
			"address", newAddr.String(),
			"reason", reason,
		)
	}

	for _, fn := range callbacks {
		fn(&cp, reason)
	}
}

// sameAddr reports whether two addresses are the same endpoint.
func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
