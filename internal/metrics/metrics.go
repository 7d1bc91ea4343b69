// Package metrics is a minimal in-process counter registry for the relay.
//
// It exists to keep relay logic observable and testable without tying the
// core to a metrics backend; the counters are scraped through the Prometheus
// text handler in this package.
package metrics

import "sync"

// Event counter names.
const (
	ConnectionsAccepted = "connections_accepted"
	ConnectionsClosed   = "connections_closed"

	JoinsAccepted   = "joins_accepted"
	JoinsRejected   = "joins_rejected"
	LeavesProcessed = "leaves_processed"
	RoomsRetired    = "rooms_retired"

	RelayDirectDelivered  = "relay_direct_delivered"
	RelayBroadcasts       = "relay_broadcasts"
	RelayUnknownTarget    = "relay_unknown_target"
	RelayBackpressure     = "relay_backpressure"
	SignalRateLimited     = "signal_rate_limited"
	SignalMessageTooLarge = "signal_message_too_large"

	StoreWrites        = "store_writes"
	StoreWriteFailures = "store_write_failures"
	StoreWritesDropped = "store_writes_dropped"
)

type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Add(name string, delta uint64) {
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
