package proxy

import (
	"errors"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/portcullis-proxy/portcullis/internal/metrics"
	"github.com/portcullis-proxy/portcullis/internal/reqparse"
)

// tunnelReadChunk bounds each relay read, per spec.md §4.6 step 3.
const tunnelReadChunk = 4096

// TunnelerConfig holds the dependencies a Tunneler needs to dial an origin
// and relay opaque bytes in both directions.
type TunnelerConfig struct {
	DialTimeout time.Duration
	IdleTimeout time.Duration
	Events      EventEmitter
	MetricsSink MetricsEventSink
}

// Tunneler implements the CONNECT byte-tunnel contract of spec.md §4.6.
type Tunneler struct {
	dialTimeout time.Duration
	idleTimeout time.Duration
	events      EventEmitter
	metricsSink MetricsEventSink
}

// NewTunneler builds a Tunneler from cfg, defaulting DialTimeout to 10s and
// IdleTimeout to 300s (spec.md §5 recommended bounds) when unset.
func NewTunneler(cfg TunnelerConfig) *Tunneler {
	events := cfg.Events
	if events == nil {
		events = NoOpEventEmitter{}
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	idleTimeout := cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = 300 * time.Second
	}
	return &Tunneler{dialTimeout: dialTimeout, idleTimeout: idleTimeout, events: events, metricsSink: cfg.MetricsSink}
}

// Tunnel implements spec.md §4.6: dial the origin, reply 200 Connection
// Established, then relay bytes bidirectionally until either side closes
// or errors. The caller (dispatcher) owns closing client.
func (t *Tunneler) Tunnel(client net.Conn, clientIP string, req *reqparse.Request) {
	lifecycle := newRequestLifecycle(t.events, clientIP, "CONNECT", req.TargetAddr(), true)
	defer lifecycle.finish()

	origin, err := net.DialTimeout("tcp", req.TargetAddr(), t.dialTimeout)
	if err != nil {
		lifecycle.setNetOK(false)
		if pe := classifyDialError(err); pe != nil {
			detail := summarizeOriginError(pe.Err)
			log.Printf("tunnel origin_unreachable target=%s kind=%s errno=%s: %s", logTarget(req), detail.Kind, detail.Errno, detail.Message)
		}
		return
	}
	if t.metricsSink != nil {
		t.metricsSink.OnConnectionLifecycle(metrics.ConnectionOutbound, metrics.ConnectionOpen)
	}
	defer func() {
		origin.Close()
		if t.metricsSink != nil {
			t.metricsSink.OnConnectionLifecycle(metrics.ConnectionOutbound, metrics.ConnectionClose)
		}
	}()

	if err := writeConnectEstablished(client); err != nil {
		lifecycle.setNetOK(false)
		return
	}

	netOK := t.relay(client, origin, req.TargetAddr(), lifecycle)
	lifecycle.setNetOK(netOK)
}

// relay runs the bidirectional copy loop. Each direction runs on its own
// goroutine so that one peer stalling on reads cannot block the other
// direction's writes (spec.md §4.6 step 4, §5 deadlock guarantee).
func (t *Tunneler) relay(client, origin net.Conn, target string, lifecycle *requestLifecycle) bool {
	done := make(chan error, 2)

	go func() {
		n, err := t.pump(origin, client, t.idleTimeout)
		lifecycle.addIngressBytes(n)
		if t.metricsSink != nil {
			t.metricsSink.OnTrafficDelta(n, 0)
		}
		done <- err
	}()
	go func() {
		n, err := t.pump(client, origin, t.idleTimeout)
		lifecycle.addEgressBytes(n)
		if t.metricsSink != nil {
			t.metricsSink.OnTrafficDelta(0, n)
		}
		done <- err
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		err := <-done
		// The second leg's deadline error is the teardown below, not an I/O failure.
		if i == 1 && errors.Is(err, os.ErrDeadlineExceeded) {
			err = nil
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		// Unblock whichever side is still parked in a read once one
		// direction finishes, so the relay always tears down both legs.
		client.SetReadDeadline(time.Now())
		origin.SetReadDeadline(time.Now())
	}

	if firstErr != nil && !isBenignTunnelCopyError(firstErr) {
		detail := summarizeOriginError(firstErr)
		log.Printf("tunnel io_error target=%s kind=%s errno=%s: %s", target, detail.Kind, detail.Errno, detail.Message)
		return false
	}
	return true
}

// pump copies from src to dst in tunnelReadChunk-sized reads, refreshing an
// idle deadline on src before each read, until src returns EOF or an error.
func (t *Tunneler) pump(dst io.Writer, src net.Conn, idleTimeout time.Duration) (int64, error) {
	var total int64
	buf := make([]byte, tunnelReadChunk)
	for {
		src.SetReadDeadline(time.Now().Add(idleTimeout))
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return total, writeErr
			}
			total += int64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				return total, nil
			}
			return total, readErr
		}
	}
}
