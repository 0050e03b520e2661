// Package metrics tracks live connection counts and cumulative traffic for
// the periodic snapshot log (portcullisd logs a line on a cron schedule).
package metrics

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// ConnectionDirection distinguishes client-facing sockets from origin dials.
type ConnectionDirection int

const (
	ConnectionInbound ConnectionDirection = iota
	ConnectionOutbound
)

// ConnectionOp is the lifecycle transition reported to a Manager.
type ConnectionOp int

const (
	ConnectionOpen ConnectionOp = iota
	ConnectionClose
)

// Snapshot is a point-in-time read of the counters, suitable for logging.
type Snapshot struct {
	ActiveInbound  int64
	ActiveOutbound int64
	TotalAccepted  int64
	IngressBytes   int64
	EgressBytes    int64
}

// Manager accumulates connection and traffic counters from every proxy
// connection. A single Manager is shared across all connection goroutines;
// every counter is lock-free.
type Manager struct {
	activeInbound  atomic.Int64
	activeOutbound atomic.Int64
	totalAccepted  atomic.Int64
	ingressBytes   atomic.Int64
	egressBytes    atomic.Int64

	// byDomain tracks cumulative egress bytes per target domain. Snapshot
	// does not include it, so the periodic snapshot log does not report it.
	byDomain *xsync.Map[string, *atomic.Int64]
}

// NewManager returns a Manager with all counters zeroed.
func NewManager() *Manager {
	return &Manager{byDomain: xsync.NewMap[string, *atomic.Int64]()}
}

// OnTrafficDelta records ingress/egress bytes observed on some connection.
func (m *Manager) OnTrafficDelta(ingressBytes, egressBytes int64) {
	if ingressBytes > 0 {
		m.ingressBytes.Add(ingressBytes)
	}
	if egressBytes > 0 {
		m.egressBytes.Add(egressBytes)
	}
}

// OnConnectionLifecycle records a connection open/close transition.
func (m *Manager) OnConnectionLifecycle(dir ConnectionDirection, op ConnectionOp) {
	counter := &m.activeInbound
	if dir == ConnectionOutbound {
		counter = &m.activeOutbound
	}
	switch op {
	case ConnectionOpen:
		counter.Add(1)
		if dir == ConnectionInbound {
			m.totalAccepted.Add(1)
		}
	case ConnectionClose:
		counter.Add(-1)
	}
}

// AddDomainBytes attributes egress bytes to a target domain. The per-domain
// totals are kept in memory only; no method reads them back.
func (m *Manager) AddDomainBytes(domain string, n int64) {
	if n <= 0 || domain == "" {
		return
	}
	counter, _ := m.byDomain.LoadOrStore(domain, new(atomic.Int64))
	counter.Add(n)
}

// Snapshot returns the current counter values.
func (m *Manager) Snapshot() Snapshot {
	return Snapshot{
		ActiveInbound:  m.activeInbound.Load(),
		ActiveOutbound: m.activeOutbound.Load(),
		TotalAccepted:  m.totalAccepted.Load(),
		IngressBytes:   m.ingressBytes.Load(),
		EgressBytes:    m.egressBytes.Load(),
	}
}
