package x32

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/MMSchneider/dubswitch-sub000/internal/history"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/config"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
	"github.com/MMSchneider/dubswitch-sub000/internal/osc"
)

// Sink receives one engine result message, either for a single session
// or for the broadcast hub.
type Sink func(msg any)

// Broadcaster fans a message out to every attached session.
// Implemented by the API package's websocket hub.
type Broadcaster interface {
	Broadcast(msg any)
}

// HistoryRecorder persists observed routing-block changes.
// It is optional - if nil, the engine operates without a history log.
type HistoryRecorder interface {
	RecordRoutingChange(ctx context.Context, block, value int, source string) error
}

// StateMirror publishes cache changes to an external bus.
// It is optional - if nil, the engine operates without mirroring.
type StateMirror interface {
	PublishRouting(values []*int)
	PublishNames(names map[string]string)
}

// EngineOptions holds configuration for creating an engine.
type EngineOptions struct {
	// Config is the X32 section of the loaded configuration.
	Config config.X32Config

	// Transport is the outbound half of the UDP adapter.
	Transport Sender

	// Logger is the structured logger.
	Logger *logging.Logger

	// Metrics is the engine metrics set.
	Metrics *Metrics

	// History is optional routing-change persistence.
	History HistoryRecorder

	// Mirror is optional external state mirroring.
	Mirror StateMirror
}

// Engine is the discovery and routing-state correlation engine.
//
// It owns the device registry, the pending-query table, the attribute
// cache and the liveness watchdog, and implements every operation the
// session and HTTP surfaces expose.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Engine struct {
	cfg        config.X32Config
	transport  Sender
	registry   *Registry
	correlator *Correlator
	cache      *Cache
	watchdog   *Watchdog
	history    HistoryRecorder
	mirror     StateMirror
	logger     *logging.Logger
	metrics    *Metrics

	hubMu sync.RWMutex
	hub   Broadcaster

	// toggleMu guards pendingToggles, the block values written by the
	// toggle path whose confirming replies have not yet been observed.
	toggleMu       sync.Mutex
	pendingToggles map[int]int
}

// NewEngine creates an engine. Call SetBroadcaster once the session hub
// exists, then hand HandleInbound to the transport.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts.Metrics == nil {
		return nil, fmt.Errorf("metrics are required")
	}

	e := &Engine{
		cfg:            opts.Config,
		transport:      opts.Transport,
		history:        opts.History, // May be nil (optional)
		mirror:         opts.Mirror,  // May be nil (optional)
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		pendingToggles: make(map[int]int),
	}

	e.registry = NewRegistry(opts.Logger)
	e.correlator = NewCorrelator(opts.Logger, opts.Metrics)
	e.cache = NewCache()
	e.watchdog = NewWatchdog(opts.Config.GetWatchdogInterval(), e.keepAliveProbe, opts.Logger)

	// Every genuine address change restarts the watchdog interval and
	// schedules a full re-synchronisation against the new address.
	e.registry.OnChange(func(_ *net.UDPAddr, _ string) {
		e.watchdog.Reset()
		e.Resync()
	})

	return e, nil
}

// SetBroadcaster wires the session hub for fan-out.
func (e *Engine) SetBroadcaster(hub Broadcaster) {
	e.hubMu.Lock()
	e.hub = hub
	e.hubMu.Unlock()
}

// Close stops the watchdog and resolves in-flight queries.
func (e *Engine) Close() {
	e.watchdog.Stop()
	e.correlator.Close()
	e.logger.Info("engine stopped")
}

// Registry returns the device registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Cache returns the attribute cache.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// DeviceIP returns the registered console IP, or "" when none is known.
func (e *Engine) DeviceIP() string {
	addr := e.registry.Current()
	if addr == nil {
		return ""
	}
	return addr.IP.String()
}

// PendingQueries returns the number of in-flight queries.
func (e *Engine) PendingQueries() int {
	return e.correlator.PendingCount()
}

// Metrics returns the engine metrics set.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// HandleInbound is the transport's inbound handler. Every message is
// offered to two independent consumers: the unsolicited-reply path
// (registry and attribute cache updates, attribute fan-out) and the
// correlator's pending-query table. The unsolicited path runs first so a
// query whose resolution reads the registry sees the updated address.
func (e *Engine) HandleInbound(msg osc.Message, sender *net.UDPAddr) {
	e.handleUnsolicited(msg, sender)
	e.correlator.HandleReply(msg)
}

// handleUnsolicited dispatches a message by address class.
func (e *Engine) handleUnsolicited(msg osc.Message, sender *net.UDPAddr) {
	if msg.Address == InfoAddress {
		// The reply's sender is the authoritative console address.
		e.registry.Update(sender, "info reply")
		return
	}

	if block := routingBlockFor(msg.Address); block >= 0 {
		if value, ok := asInt(firstValue(msg)); ok {
			e.observeRouting(block, value, e.routingSource(block, value))
		}
		return
	}

	if ch, attr, ok := parseChannelAddress(msg.Address); ok {
		e.handleChannelAttribute(ch, attr, msg)
		return
	}

	// Replies outside the tracked classes are relayed verbatim so generic
	// passthrough consumers still see them.
	e.broadcast(NewClpMessage(msg.Address, msg.Values()))
}

// handleChannelAttribute caches a per-channel attribute reply and fans it
// out. A name-cache change pushes the full updated name map.
func (e *Engine) handleChannelAttribute(ch int, attr channelAttr, msg osc.Message) {
	switch attr {
	case attrName:
		name, _ := firstValue(msg).(string)
		if e.cache.SetName(ch, name) {
			names := e.cache.Names()
			e.broadcast(NewChannelNamesMessage(names))
			if e.mirror != nil {
				e.mirror.PublishNames(names)
			}
		}
	case attrColor:
		if v, ok := asInt(firstValue(msg)); ok {
			e.cache.SetColor(ch, v)
		}
		e.broadcast(NewClpMessage(msg.Address, msg.Values()))
	case attrPatch:
		if v, ok := asInt(firstValue(msg)); ok {
			e.cache.SetPatch(ch, v)
		}
		e.broadcast(NewClpMessage(msg.Address, msg.Values()))
	}
}

// observeRouting records a routing-block value in the cache and, when it
// changed, in the history log, fanning the fresh snapshot out.
func (e *Engine) observeRouting(block, value int, source string) {
	if !e.cache.SetRouting(block, value) {
		return
	}

	if e.history != nil {
		if err := e.history.RecordRoutingChange(context.Background(), block, value, source); err != nil {
			e.logger.Debug("routing history write failed", "block", block, "error", err)
		}
	}

	values := e.cache.Routing()
	e.broadcast(NewRoutingMessage(values))
	if e.mirror != nil {
		e.mirror.PublishRouting(values)
	}
}

// Discover sends one broadcast probe and waits up to the discovery
// timeout for a console to answer.
//
// Returns:
//   - string: Discovered console IP, or "" when nothing answered in time
//   - error: Only when ctx is cancelled first
func (e *Engine) Discover(ctx context.Context) (string, error) {
	results := make(chan QueryResult, 1)
	id := e.correlator.Issue([]string{InfoAddress}, e.cfg.GetDiscoveryTimeout(), func(res QueryResult) {
		results <- res
	})
	if id == 0 {
		return "", ErrClosed
	}

	e.metrics.discoveryProbe()
	e.transport.Send(osc.Message{Address: InfoAddress}, e.transport.BroadcastDest())

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		if res.TimedOut && res.Values[0] == nil {
			e.logger.Info("discovery probe elicited no reply")
			return "", nil
		}
		// The unsolicited path has already registered the sender.
		return e.DeviceIP(), nil
	}
}

// SetDeviceIP registers a manually supplied console IP.
func (e *Engine) SetDeviceIP(ip string) error {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}
	e.registry.Update(&net.UDPAddr{IP: parsed, Port: e.cfg.DevicePort}, "manual override")
	return nil
}

// LoadRouting reads the four routing blocks and delivers one
// RoutingMessage to sink, partial slots null on timeout.
func (e *Engine) LoadRouting(sink Sink) error {
	addr := e.registry.Current()
	if addr == nil {
		e.logger.Warn("load_routing dropped: no device registered")
		return ErrNoDevice
	}

	parts := RoutingBlockAddresses()
	e.correlator.Issue(parts, e.cfg.GetQueryTimeout(), func(res QueryResult) {
		values := make([]*int, len(res.Values))
		for i, v := range res.Values {
			if n, ok := asInt(v); ok {
				cp := n
				values[i] = &cp
			}
		}
		sink(NewRoutingMessage(values))
	})

	for _, part := range parts {
		e.transport.Send(osc.Message{Address: part}, addr)
	}
	return nil
}

// ToggleInputs flips all four routing blocks between their local preamps
// and the given targets, then re-reads routing and fans the fresh
// snapshot out. A block already at its target flips back to local.
func (e *Engine) ToggleInputs(targets [NumRoutingBlocks]int, sink Sink) error {
	toggles := make(map[int]int, NumRoutingBlocks)
	for block, target := range targets {
		toggles[block] = target
	}
	return e.toggle(toggles, sink)
}

// ToggleBlock flips one routing block between local and target.
func (e *Engine) ToggleBlock(block, target int, sink Sink) error {
	if block < 0 || block >= NumRoutingBlocks {
		return fmt.Errorf("%w: %d", ErrInvalidBlock, block)
	}
	return e.toggle(map[int]int{block: target}, sink)
}

// toggle reads the current routing values, writes the flipped value for
// each requested block, then issues a confirming re-read.
func (e *Engine) toggle(toggles map[int]int, sink Sink) error {
	addr := e.registry.Current()
	if addr == nil {
		e.logger.Warn("toggle dropped: no device registered")
		return ErrNoDevice
	}

	parts := RoutingBlockAddresses()
	e.correlator.Issue(parts, e.cfg.GetQueryTimeout(), func(res QueryResult) {
		dest := e.registry.Current()
		if dest == nil {
			return
		}

		for block, target := range toggles {
			desired := target
			if cur, ok := asInt(res.Values[block]); ok && cur == target {
				desired = RoutingLocalValue(block)
			}
			e.markToggleWrite(block, desired)
			e.transport.Send(osc.Message{
				Address: RoutingBlockAddress(block),
				Args:    []osc.Arg{osc.Int(int32(desired))},
			}, dest)
		}

		// Confirm what the console actually applied.
		if err := e.LoadRouting(sink); err != nil {
			e.logger.Warn("post-toggle routing read failed", "error", err)
		}
	})

	for _, part := range parts {
		e.transport.Send(osc.Message{Address: part}, addr)
	}
	return nil
}

// ChannelSource is one channel's classified patch value.
type ChannelSource struct {
	Channel int         `json:"channel"`
	Value   *int        `json:"value"`
	Class   SourceClass `json:"class"`
}

// EnumerateSources probes all 32 channels' patch values and classifies
// them into labelled ranges. Channels that do not answer in time come
// back with a null value and class Other.
func (e *Engine) EnumerateSources(ctx context.Context) ([]ChannelSource, error) {
	addr := e.registry.Current()
	if addr == nil {
		return nil, ErrNoDevice
	}

	parts := make([]string, NumChannels)
	for ch := 1; ch <= NumChannels; ch++ {
		parts[ch-1] = ChannelPatchAddress(ch)
	}

	results := make(chan QueryResult, 1)
	id := e.correlator.Issue(parts, e.cfg.GetQueryTimeout(), func(res QueryResult) {
		results <- res
	})
	if id == 0 {
		return nil, ErrClosed
	}

	for _, part := range parts {
		e.transport.Send(osc.Message{Address: part}, addr)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		sources := make([]ChannelSource, NumChannels)
		for i, v := range res.Values {
			src := ChannelSource{Channel: i + 1, Class: SourceOther}
			if n, ok := asInt(v); ok {
				cp := n
				src.Value = &cp
				src.Class = ClassifySource(n)
			}
			sources[i] = src
		}
		return sources, nil
	}
}

// ReadParam issues a generic one-part read and relays the reply to sink
// as a clp message; a timeout relays null args.
func (e *Engine) ReadParam(address string, sink Sink) error {
	if !osc.ValidAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr := e.registry.Current()
	if addr == nil {
		e.logger.Warn("clp read dropped: no device registered", "address", address)
		return ErrNoDevice
	}

	e.correlator.Issue([]string{address}, e.cfg.GetQueryTimeout(), func(res QueryResult) {
		var args []any
		if res.Values[0] != nil {
			args = []any{res.Values[0]}
		}
		sink(NewClpMessage(address, args))
	})

	e.transport.Send(osc.Message{Address: address}, addr)
	return nil
}

// WriteParam sends a generic fire-and-forget parameter write.
func (e *Engine) WriteParam(address string, args []any) error {
	if !osc.ValidAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	addr := e.registry.Current()
	if addr == nil {
		e.logger.Warn("clp write dropped: no device registered", "address", address)
		return ErrNoDevice
	}

	oscArgs := make([]osc.Arg, 0, len(args))
	for _, a := range args {
		arg, err := osc.FromValue(a)
		if err != nil {
			return fmt.Errorf("converting argument: %w", err)
		}
		oscArgs = append(oscArgs, arg)
	}

	e.transport.Send(osc.Message{Address: address, Args: oscArgs}, addr)
	return nil
}

// Resync re-reads channel names, colours, patch values and routing from
// the console. Called on every address change and whenever a session
// attaches, so state converges quickly.
func (e *Engine) Resync() {
	addr := e.registry.Current()
	if addr == nil {
		return
	}

	e.logger.Info("resynchronising console state", "address", addr.String())

	// Cache writes and fan-out happen on the unsolicited path as the
	// replies arrive; the queries exist to elicit them and to bound the
	// wait. Routing goes through LoadRouting so the snapshot message is
	// emitted even when nothing changed.
	var attrs []string
	for ch := 1; ch <= NumChannels; ch++ {
		attrs = append(attrs, ChannelNameAddress(ch), ChannelColorAddress(ch), ChannelPatchAddress(ch))
	}
	e.correlator.Issue(attrs, e.cfg.GetQueryTimeout(), func(QueryResult) {})
	for _, part := range attrs {
		e.transport.Send(osc.Message{Address: part}, addr)
	}

	if err := e.LoadRouting(e.broadcast); err != nil {
		e.logger.Warn("resync routing read failed", "error", err)
	}
}

// keepAliveProbe is the watchdog tick: a one-part info query at the
// registered address. A reply from a migrated console re-triggers the
// registry update path via the unsolicited handler; silence is logged
// and the next tick is the retry.
func (e *Engine) keepAliveProbe() {
	addr := e.registry.Current()
	if addr == nil {
		return
	}

	e.metrics.watchdogProbe()
	e.correlator.Issue([]string{InfoAddress}, e.cfg.GetQueryTimeout(), func(res QueryResult) {
		if res.TimedOut && res.Values[0] == nil {
			e.logger.Warn("console not answering keep-alive", "address", addr.String())
		}
	})
	e.transport.Send(osc.Message{Address: InfoAddress}, addr)
}

// markToggleWrite notes a routing write issued by the toggle path so its
// confirming reply is attributed to the toggle in the history log.
func (e *Engine) markToggleWrite(block, desired int) {
	e.toggleMu.Lock()
	e.pendingToggles[block] = desired
	e.toggleMu.Unlock()
}

// routingSource consumes a pending toggle write matching the observed
// value. An observed value no toggle wrote is a console-side change.
func (e *Engine) routingSource(block, value int) string {
	e.toggleMu.Lock()
	defer e.toggleMu.Unlock()
	if desired, ok := e.pendingToggles[block]; ok && desired == value {
		delete(e.pendingToggles, block)
		return history.SourceToggle
	}
	return history.SourceReply
}

// broadcast fans a message to all sessions, if a hub is wired.
func (e *Engine) broadcast(msg any) {
	e.hubMu.RLock()
	hub := e.hub
	e.hubMu.RUnlock()
	if hub != nil {
		hub.Broadcast(msg)
	}
}

// firstValue returns the unwrapped first argument, or nil.
func firstValue(msg osc.Message) any {
	if len(msg.Args) == 0 {
		return nil
	}
	return msg.Args[0].Value()
}

// asInt coerces the numeric types the codec produces to int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int:
		return n, true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
