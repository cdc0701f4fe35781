package x32

import (
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/config"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
	"github.com/MMSchneider/dubswitch-sub000/internal/osc"
)

// maxDatagramSize is the read buffer size for inbound OSC datagrams.
// The largest console reply (a full scene line) is well under this.
const maxDatagramSize = 4096

// Sender is the outbound half of the transport, abstracted so the engine
// and its tests do not need a real socket.
type Sender interface {
	// Send marshals and transmits one OSC message. Fire-and-forget:
	// transport errors are logged, never returned (the datagram transport
	// has no delivery guarantee to begin with).
	Send(msg osc.Message, dest *net.UDPAddr)

	// BroadcastDest returns the LAN broadcast destination for discovery
	// probes, aimed at the console's well-known port.
	BroadcastDest() *net.UDPAddr
}

// Transport wraps the single bound UDP socket.
//
// Thread Safety: Send may be called from any goroutine. The inbound
// handler is invoked synchronously from one read loop, in arrival order.
type Transport struct {
	conn      *net.UDPConn
	broadcast *net.UDPAddr
	handler   func(msg osc.Message, sender *net.UDPAddr)
	logger    *logging.Logger
	metrics   *Metrics

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewTransport binds the local UDP socket and computes the broadcast
// destination from the first usable non-loopback IPv4 interface. With no
// such interface the global broadcast address is used.
func NewTransport(cfg config.X32Config, logger *logging.Logger, metrics *Metrics) (*Transport, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: cfg.LocalPort})
	if err != nil {
		return nil, fmt.Errorf("binding UDP socket: %w", err)
	}

	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling broadcast: %w", err)
	}

	t := &Transport{
		conn: conn,
		broadcast: &net.UDPAddr{
			IP:   interfaceBroadcastIP(),
			Port: cfg.DevicePort,
		},
		logger:  logger,
		metrics: metrics,
	}

	logger.Info("UDP socket bound",
		"local", conn.LocalAddr().String(),
		"broadcast", t.broadcast.String(),
	)

	return t, nil
}

// SetHandler registers the inbound message handler. Must be called before
// Start.
func (t *Transport) SetHandler(handler func(msg osc.Message, sender *net.UDPAddr)) {
	t.handler = handler
}

// Start launches the read loop.
func (t *Transport) Start() {
	t.wg.Add(1)
	go t.readLoop()
}

// Close shuts the socket and waits for the read loop to exit.
func (t *Transport) Close() {
	t.stopOnce.Do(func() {
		t.conn.Close()
		t.wg.Wait()
		t.logger.Info("UDP socket closed")
	})
}

// Send implements Sender.
func (t *Transport) Send(msg osc.Message, dest *net.UDPAddr) {
	data, err := msg.Marshal()
	if err != nil {
		t.logger.Error("failed to encode OSC message", "address", msg.Address, "error", err)
		return
	}

	if _, err := t.conn.WriteToUDP(data, dest); err != nil {
		t.logger.Error("UDP send failed", "dest", dest.String(), "error", err)
		return
	}
	t.metrics.datagramSent()
}

// BroadcastDest implements Sender.
func (t *Transport) BroadcastDest() *net.UDPAddr {
	return t.broadcast
}

// LocalPort returns the bound local port.
func (t *Transport) LocalPort() int {
	return t.conn.LocalAddr().(*net.UDPAddr).Port
}

// readLoop delivers inbound datagrams to the handler in arrival order.
func (t *Transport) readLoop() {
	defer t.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, sender, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			// Closed socket ends the loop; anything else is transient.
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		t.metrics.datagramReceived()

		msg, err := osc.Unmarshal(buf[:n])
		if err != nil {
			t.logger.Debug("dropping undecodable datagram",
				"sender", sender.String(),
				"error", err,
			)
			continue
		}

		if t.handler != nil {
			t.handler(msg, sender)
		}
	}
}

// enableBroadcast sets SO_BROADCAST so discovery probes can target the
// subnet broadcast address.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// interfaceBroadcastIP computes the directed broadcast address of the
// first up, non-loopback IPv4 interface. Computed once at startup.
func interfaceBroadcastIP() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return net.IPv4bcast
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			mask := ipNet.Mask
			if len(mask) == net.IPv6len {
				mask = mask[12:]
			}
			bcast := make(net.IP, net.IPv4len)
			for i := range bcast {
				bcast[i] = ip4[i] | ^mask[i]
			}
			return bcast
		}
	}

	return net.IPv4bcast
}
