package x32

import (
	"net"
	"testing"

	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
)

func udpAddr(ip string, port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
}

func TestRegistryUpdate(t *testing.T) {
	r := NewRegistry(logging.Default())

	var changes []string
	r.OnChange(func(addr *net.UDPAddr, reason string) {
		changes = append(changes, addr.String()+" "+reason)
	})

	if r.Current() != nil {
		t.Fatal("fresh registry should have no address")
	}

	r.Update(udpAddr("192.168.1.50", 10023), "info reply")

	if got := r.Current(); got == nil || got.IP.String() != "192.168.1.50" {
		t.Fatalf("Current() = %v, want 192.168.1.50:10023", got)
	}
	if len(changes) != 1 {
		t.Fatalf("callbacks fired %d times after first update, want 1", len(changes))
	}

	// Same endpoint again is a no-op.
	r.Update(udpAddr("192.168.1.50", 10023), "info reply")
	if len(changes) != 1 {
		t.Errorf("callbacks fired %d times after idempotent update, want 1", len(changes))
	}

	// Genuine change fires exactly once more.
	r.Update(udpAddr("192.168.1.99", 10023), "info reply")
	if len(changes) != 2 {
		t.Errorf("callbacks fired %d times after address change, want 2", len(changes))
	}
	if got := r.Current(); got.IP.String() != "192.168.1.99" {
		t.Errorf("Current() = %v, want 192.168.1.99:10023", got)
	}
}

func TestRegistryNilUpdateIgnored(t *testing.T) {
	r := NewRegistry(logging.Default())

	fired := false
	r.OnChange(func(*net.UDPAddr, string) { fired = true })

	r.Update(nil, "bogus")

	if fired {
		t.Error("nil update fired callbacks")
	}
	if r.Current() != nil {
		t.Error("nil update stored an address")
	}
}

func TestRegistryCurrentReturnsCopy(t *testing.T) {
	r := NewRegistry(logging.Default())
	r.Update(udpAddr("10.0.0.1", 10023), "test")

	got := r.Current()
	got.Port = 9999

	if r.Current().Port != 10023 {
		t.Error("mutating the returned address changed registry state")
	}
}
