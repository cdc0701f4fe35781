// Package x32 contains the device discovery and routing-state correlation
// engine for Behringer X32 consoles.
//
// The console speaks OSC over UDP: stateless, connectionless, no
// request/response correlation and no delivery guarantees. Everything in
// this package exists to put a usable contract on top of that:
//
//   - Transport: one bound UDP socket, fire-and-forget sends, inbound
//     dispatch with sender metadata (transport.go)
//   - Registry: the single slot holding the console's last known address,
//     with re-sync and watchdog side effects on change (registry.go)
//   - Correlator: the pending-query table that matches scattered,
//     unordered, possibly-missing replies back to the logical query that
//     asked for them, resolving exactly once per query (correlator.go)
//   - Cache: last-known channel names, patch values and routing snapshot,
//     used to answer new sessions immediately (cache.go)
//   - Watchdog: the periodic keep-alive probe that detects silent console
//     loss or address migration (watchdog.go)
//   - Engine: wires the above together and implements the operations the
//     session and HTTP surfaces expose (engine.go)
//
// # Concurrency
//
// Inbound datagrams are dispatched from a single read loop; timers fire on
// their own goroutines. Shared state (registry slot, pending-query table,
// attribute cache) is guarded by per-component mutexes, and each pending
// query carries its own cancellable timer so a resolved query can never
// fire a second callback.
package x32
