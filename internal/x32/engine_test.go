package x32

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MMSchneider/dubswitch-sub000/internal/history"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/config"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
	"github.com/MMSchneider/dubswitch-sub000/internal/osc"
)

// fakeSender captures outbound messages instead of touching the network.
type fakeSender struct {
	mu     sync.Mutex
	sent   []sentDatagram
	onSend func(msg osc.Message, dest *net.UDPAddr)
}

type sentDatagram struct {
	msg  osc.Message
	dest *net.UDPAddr
}

func (f *fakeSender) Send(msg osc.Message, dest *net.UDPAddr) {
	f.mu.Lock()
	f.sent = append(f.sent, sentDatagram{msg: msg, dest: dest})
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(msg, dest)
	}
}

func (f *fakeSender) BroadcastDest() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4bcast, Port: 10023}
}

func (f *fakeSender) sentTo(address string) []sentDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentDatagram
	for _, d := range f.sent {
		if d.msg.Address == address {
			out = append(out, d)
		}
	}
	return out
}

// fakeHub collects broadcast fan-out messages.
type fakeHub struct {
	mu   sync.Mutex
	msgs []any
}

func (f *fakeHub) Broadcast(msg any) {
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
}

func (f *fakeHub) ofType(msgType string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, m := range f.msgs {
		switch v := m.(type) {
		case RoutingMessage:
			if v.Type == msgType {
				out = append(out, m)
			}
		case ChannelNamesMessage:
			if v.Type == msgType {
				out = append(out, m)
			}
		case ClpMessage:
			if v.Type == msgType {
				out = append(out, m)
			}
		}
	}
	return out
}

// fakeHistory records routing-change writes.
type fakeHistory struct {
	mu      sync.Mutex
	entries []recordedChange
}

type recordedChange struct {
	block, value int
	source       string
}

func (f *fakeHistory) RecordRoutingChange(_ context.Context, block, value int, source string) error {
	f.mu.Lock()
	f.entries = append(f.entries, recordedChange{block, value, source})
	f.mu.Unlock()
	return nil
}

func newTestEngine(t *testing.T, sender *fakeSender, history HistoryRecorder) *Engine {
	t.Helper()

	e, err := NewEngine(EngineOptions{
		Config: config.X32Config{
			DevicePort:         10023,
			QueryTimeoutMS:     150,
			DiscoveryTimeoutMS: 150,
			WatchdogIntervalMS: 60000,
		},
		Transport: sender,
		Logger:    logging.Default(),
		Metrics:   NewMetrics(prometheus.NewRegistry()),
		History:   history,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func routingReply(block, value int) osc.Message {
	return osc.Message{
		Address: RoutingBlockAddress(block),
		Args:    []osc.Arg{osc.Int(int32(value))},
	}
}

func TestEngineDiscover(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	console := udpAddr("192.168.1.42", 10023)
	sender.onSend = func(msg osc.Message, dest *net.UDPAddr) {
		if msg.Address == InfoAddress && dest.IP.Equal(net.IPv4bcast) {
			go e.HandleInbound(osc.Message{
				Address: InfoAddress,
				Args: []osc.Arg{
					osc.String("192.168.1.42"),
					osc.String("mixer"),
					osc.String("X32"),
					osc.String("4.06"),
				},
			}, console)
		}
	}

	ip, err := e.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if ip != "192.168.1.42" {
		t.Errorf("Discover() = %q, want sender address 192.168.1.42", ip)
	}
	if got := e.DeviceIP(); got != "192.168.1.42" {
		t.Errorf("DeviceIP() = %q after discovery", got)
	}
}

func TestEngineDiscoverTimeout(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	ip, err := e.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if ip != "" {
		t.Errorf("Discover() = %q with no console answering, want empty", ip)
	}
}

func TestEngineDiscoverContextCancel(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Discover(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Discover() error = %v, want context.Canceled", err)
	}
}

func TestEngineLoadRoutingNoDevice(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	if err := e.LoadRouting(func(any) {}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("LoadRouting() error = %v, want ErrNoDevice", err)
	}
}

func TestEngineLoadRouting(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	if err := e.SetDeviceIP("10.0.0.5"); err != nil {
		t.Fatalf("SetDeviceIP() error = %v", err)
	}

	results := make(chan any, 4)
	if err := e.LoadRouting(func(msg any) { results <- msg }); err != nil {
		t.Fatalf("LoadRouting() error = %v", err)
	}

	console := udpAddr("10.0.0.5", 10023)
	e.HandleInbound(routingReply(0, 0), console)
	e.HandleInbound(routingReply(1, 21), console)
	e.HandleInbound(routingReply(2, 2), console)
	e.HandleInbound(routingReply(3, 23), console)

	select {
	case msg := <-results:
		routing, ok := msg.(RoutingMessage)
		if !ok {
			t.Fatalf("sink received %T, want RoutingMessage", msg)
		}
		want := []int{0, 21, 2, 23}
		for i, v := range routing.Values {
			if v == nil || *v != want[i] {
				t.Errorf("Values[%d] = %v, want %d", i, v, want[i])
			}
		}
	case <-time.After(time.Second):
		t.Fatal("routing message never delivered")
	}
}

func TestEngineToggleBlock(t *testing.T) {
	tests := []struct {
		name    string
		block   int
		current int
		target  int
		want    int
	}{
		{"local to card", 1, 1, 21, 21},
		{"card back to local", 1, 21, 21, 1},
		{"other value to card", 2, 5, 22, 22},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			e := newTestEngine(t, sender, nil)

			if err := e.SetDeviceIP("10.0.0.5"); err != nil {
				t.Fatalf("SetDeviceIP() error = %v", err)
			}

			if err := e.ToggleBlock(tt.block, tt.target, func(any) {}); err != nil {
				t.Fatalf("ToggleBlock() error = %v", err)
			}

			console := udpAddr("10.0.0.5", 10023)
			for block := 0; block < NumRoutingBlocks; block++ {
				value := RoutingLocalValue(block)
				if block == tt.block {
					value = tt.current
				}
				e.HandleInbound(routingReply(block, value), console)
			}

			var wrote *sentDatagram
			for _, d := range sender.sentTo(RoutingBlockAddress(tt.block)) {
				if len(d.msg.Args) > 0 {
					wrote = &d
					break
				}
			}
			if wrote == nil {
				t.Fatal("no routing write was sent")
			}
			if got := wrote.msg.Args[0].Int; got != int32(tt.want) {
				t.Errorf("wrote value %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEngineToggleBlockValidation(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	if err := e.ToggleBlock(4, 20, func(any) {}); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("ToggleBlock(4) error = %v, want ErrInvalidBlock", err)
	}
	if err := e.ToggleBlock(0, 20, func(any) {}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("ToggleBlock with no device error = %v, want ErrNoDevice", err)
	}
}

func TestEngineEnumerateSources(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	if err := e.SetDeviceIP("10.0.0.5"); err != nil {
		t.Fatalf("SetDeviceIP() error = %v", err)
	}

	console := udpAddr("10.0.0.5", 10023)
	sender.onSend = func(msg osc.Message, _ *net.UDPAddr) {
		ch, attr, ok := parseChannelAddress(msg.Address)
		if !ok || attr != attrPatch || len(msg.Args) > 0 || ch > 3 {
			return
		}
		// Channels 1..3 answer with representative values; the rest stay
		// silent so the query resolves partial at the deadline.
		values := map[int]int32{1: 1, 2: 33, 3: 129}
		go e.HandleInbound(osc.Message{
			Address: msg.Address,
			Args:    []osc.Arg{osc.Int(values[ch])},
		}, console)
	}

	sources, err := e.EnumerateSources(context.Background())
	if err != nil {
		t.Fatalf("EnumerateSources() error = %v", err)
	}
	if len(sources) != NumChannels {
		t.Fatalf("got %d sources, want %d", len(sources), NumChannels)
	}

	wantClass := map[int]SourceClass{1: SourceLocal, 2: SourceAES50A, 3: SourceDAW}
	for _, src := range sources {
		want, answered := wantClass[src.Channel]
		if answered {
			if src.Value == nil || src.Class != want {
				t.Errorf("channel %d = (%v, %q), want class %q", src.Channel, src.Value, src.Class, want)
			}
			continue
		}
		if src.Value != nil || src.Class != SourceOther {
			t.Errorf("silent channel %d = (%v, %q), want (nil, Other)", src.Channel, src.Value, src.Class)
		}
	}
}

func TestEngineUnsolicitedRouting(t *testing.T) {
	sender := &fakeSender{}
	recorder := &fakeHistory{}
	e := newTestEngine(t, sender, recorder)

	hub := &fakeHub{}
	e.SetBroadcaster(hub)

	console := udpAddr("10.0.0.5", 10023)
	e.HandleInbound(routingReply(0, 20), console)
	e.HandleInbound(routingReply(0, 20), console) // unchanged, no fan-out

	if got := len(hub.ofType(MsgTypeRouting)); got != 1 {
		t.Errorf("routing broadcast %d times, want 1 (only on change)", got)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.entries) != 1 {
		t.Fatalf("history recorded %d entries, want 1", len(recorder.entries))
	}
	got := recorder.entries[0]
	if got.block != 0 || got.value != 20 || got.source != history.SourceReply {
		t.Errorf("history entry = %+v, want block 0 value 20 source reply", got)
	}
}

func TestEngineToggleRecordsToggleSource(t *testing.T) {
	sender := &fakeSender{}
	recorder := &fakeHistory{}
	e := newTestEngine(t, sender, recorder)

	if err := e.SetDeviceIP("10.0.0.5"); err != nil {
		t.Fatalf("SetDeviceIP() error = %v", err)
	}

	if err := e.ToggleBlock(0, 20, func(any) {}); err != nil {
		t.Fatalf("ToggleBlock() error = %v", err)
	}

	// The current values answer the toggle's read; these are console-side
	// observations, not toggle confirmations.
	console := udpAddr("10.0.0.5", 10023)
	for block := 0; block < NumRoutingBlocks; block++ {
		e.HandleInbound(routingReply(block, RoutingLocalValue(block)), console)
	}

	// The console confirms the value the toggle wrote.
	e.HandleInbound(routingReply(0, 20), console)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	var confirm *recordedChange
	for i, entry := range recorder.entries {
		if entry.block == 0 && entry.value == 20 {
			confirm = &recorder.entries[i]
			continue
		}
		if entry.source != history.SourceReply {
			t.Errorf("pre-toggle entry %+v, want source reply", entry)
		}
	}
	if confirm == nil {
		t.Fatal("toggle confirmation was never recorded")
	}
	if confirm.source != history.SourceToggle {
		t.Errorf("confirmation source = %q, want %q", confirm.source, history.SourceToggle)
	}
}

func TestEngineUnsolicitedChannelName(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	hub := &fakeHub{}
	e.SetBroadcaster(hub)

	console := udpAddr("10.0.0.5", 10023)
	msg := osc.Message{Address: ChannelNameAddress(4), Args: []osc.Arg{osc.String("Bass")}}
	e.HandleInbound(msg, console)
	e.HandleInbound(msg, console) // unchanged, no fan-out

	broadcasts := hub.ofType(MsgTypeChannelNames)
	if len(broadcasts) != 1 {
		t.Fatalf("channel names broadcast %d times, want 1", len(broadcasts))
	}
	names := broadcasts[0].(ChannelNamesMessage)
	if got := names.Names["04"]; got != "Bass" {
		t.Errorf(`Names["04"] = %q, want "Bass"`, got)
	}
}

func TestEngineParamValidation(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	if err := e.WriteParam("no-slash", nil); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("WriteParam error = %v, want ErrInvalidAddress", err)
	}
	if err := e.ReadParam("", func(any) {}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("ReadParam error = %v, want ErrInvalidAddress", err)
	}
	if err := e.WriteParam("/main/st/mix/fader", []any{0.75}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("WriteParam with no device error = %v, want ErrNoDevice", err)
	}
}

func TestEngineWriteParam(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	if err := e.SetDeviceIP("10.0.0.5"); err != nil {
		t.Fatalf("SetDeviceIP() error = %v", err)
	}

	if err := e.WriteParam("/ch/01/mix/on", []any{float64(1)}); err != nil {
		t.Fatalf("WriteParam() error = %v", err)
	}

	sent := sender.sentTo("/ch/01/mix/on")
	if len(sent) != 1 {
		t.Fatalf("sent %d datagrams, want 1", len(sent))
	}
	if got := sent[0].msg.Args[0]; got.Type != osc.TagInt || got.Int != 1 {
		t.Errorf("sent arg = %+v, want integer 1", got)
	}
}

func TestEngineSetDeviceIPInvalid(t *testing.T) {
	sender := &fakeSender{}
	e := newTestEngine(t, sender, nil)

	if err := e.SetDeviceIP("not-an-ip"); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("SetDeviceIP error = %v, want ErrInvalidAddress", err)
	}
}
