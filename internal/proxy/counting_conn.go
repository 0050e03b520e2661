package proxy

import (
	"net"
	"sync/atomic"

	"github.com/portcullis-proxy/portcullis/internal/metrics"
)

// MetricsEventSink receives traffic and connection lifecycle events from the
// proxy layer. Implemented by metrics.Manager (wired in cmd/portcullisd).
type MetricsEventSink interface {
	// OnTrafficDelta reports a global traffic byte count delta.
	OnTrafficDelta(ingressBytes, egressBytes int64)
	// OnConnectionLifecycle reports a connection open/close event.
	OnConnectionLifecycle(direction metrics.ConnectionDirection, op metrics.ConnectionOp)
}

// countingListener wraps a net.Listener, emitting connection lifecycle events
// on Accept (open) and on each connection's Close.
type countingListener struct {
	net.Listener
	sink MetricsEventSink
}

// NewCountingListener wraps a listener with connection lifecycle tracking.
func NewCountingListener(ln net.Listener, sink MetricsEventSink) net.Listener {
	if sink == nil {
		return ln
	}
	return &countingListener{Listener: ln, sink: sink}
}

func (cl *countingListener) Accept() (net.Conn, error) {
	conn, err := cl.Listener.Accept()
	if err != nil {
		return nil, err
	}
	cl.sink.OnConnectionLifecycle(metrics.ConnectionInbound, metrics.ConnectionOpen)
	return &connCloseNotifier{Conn: conn, sink: cl.sink}, nil
}

// connCloseNotifier emits a connection close event on Close.
type connCloseNotifier struct {
	net.Conn
	sink   MetricsEventSink
	closed atomic.Bool
}

func (c *connCloseNotifier) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.sink.OnConnectionLifecycle(metrics.ConnectionInbound, metrics.ConnectionClose)
	}
	return c.Conn.Close()
}
