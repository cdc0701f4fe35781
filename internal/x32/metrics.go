package x32

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks engine activity. Atomic counters feed the /status
// diagnostic snapshot; the same events increment Prometheus counters for
// the /metrics endpoint.
type Metrics struct {
	DatagramsSent     atomic.Uint64
	DatagramsReceived atomic.Uint64
	QueriesIssued     atomic.Uint64
	QueriesFulfilled  atomic.Uint64
	QueriesTimedOut   atomic.Uint64
	DiscoveryProbes   atomic.Uint64
	WatchdogProbes    atomic.Uint64

	promSent      prometheus.Counter
	promReceived  prometheus.Counter
	promIssued    prometheus.Counter
	promFulfilled prometheus.Counter
	promTimedOut  prometheus.Counter
	promDiscovery prometheus.Counter
	promWatchdog  prometheus.Counter
}

// NewMetrics creates engine metrics registered on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		promSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "dubswitch_osc_datagrams_sent_total",
			Help: "OSC datagrams sent to the console.",
		}),
		promReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "dubswitch_osc_datagrams_received_total",
			Help: "OSC datagrams received from the network.",
		}),
		promIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "dubswitch_queries_issued_total",
			Help: "Multi-part queries issued.",
		}),
		promFulfilled: factory.NewCounter(prometheus.CounterOpts{
			Name: "dubswitch_queries_fulfilled_total",
			Help: "Queries resolved with all expected parts.",
		}),
		promTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "dubswitch_queries_timed_out_total",
			Help: "Queries resolved at deadline with missing parts.",
		}),
		promDiscovery: factory.NewCounter(prometheus.CounterOpts{
			Name: "dubswitch_discovery_probes_total",
			Help: "Broadcast discovery probes sent.",
		}),
		promWatchdog: factory.NewCounter(prometheus.CounterOpts{
			Name: "dubswitch_watchdog_probes_total",
			Help: "Keep-alive probes sent to the registered console.",
		}),
	}
}

func (m *Metrics) datagramSent() {
	m.DatagramsSent.Add(1)
	m.promSent.Inc()
}

func (m *Metrics) datagramReceived() {
	m.DatagramsReceived.Add(1)
	m.promReceived.Inc()
}

func (m *Metrics) queryIssued() {
	m.QueriesIssued.Add(1)
	m.promIssued.Inc()
}

func (m *Metrics) queryFulfilled() {
	m.QueriesFulfilled.Add(1)
	m.promFulfilled.Inc()
}

func (m *Metrics) queryTimedOut() {
	m.QueriesTimedOut.Add(1)
	m.promTimedOut.Inc()
}

func (m *Metrics) discoveryProbe() {
	m.DiscoveryProbes.Add(1)
	m.promDiscovery.Inc()
}

func (m *Metrics) watchdogProbe() {
	m.WatchdogProbes.Add(1)
	m.promWatchdog.Inc()
}
