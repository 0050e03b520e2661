package proxy

import (
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/portcullis-proxy/portcullis/internal/metrics"
	"github.com/portcullis-proxy/portcullis/internal/reqparse"
)

// forwardReadChunk is the buffer size used when relaying origin response
// bytes back to the client (spec.md §4.5 step 3: "read up to 4096 bytes").
const forwardReadChunk = 4096

// ForwarderConfig holds the dependencies a Forwarder needs to dial an origin,
// send it the request head, and relay its response.
type ForwarderConfig struct {
	DialTimeout time.Duration
	Events      EventEmitter
	MetricsSink MetricsEventSink
}

// Forwarder implements the one-shot HTTP request/response passthrough for
// absolute-URI (non-CONNECT) requests.
type Forwarder struct {
	dialTimeout time.Duration
	events      EventEmitter
	metricsSink MetricsEventSink
}

// NewForwarder builds a Forwarder from cfg, defaulting DialTimeout to 10s
// (spec.md §5 recommended origin-connect bound) when unset.
func NewForwarder(cfg ForwarderConfig) *Forwarder {
	events := cfg.Events
	if events == nil {
		events = NoOpEventEmitter{}
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Forwarder{dialTimeout: dialTimeout, events: events, metricsSink: cfg.MetricsSink}
}

// Forward implements spec.md §4.5: dial the origin, write the raw head
// verbatim, then relay origin bytes to client until origin EOF or error.
// It never reads further bytes from client. The caller (dispatcher) owns
// closing client.
func (f *Forwarder) Forward(client net.Conn, clientIP string, req *reqparse.Request) {
	method, _, _ := strings.Cut(string(req.RawHead), " ")
	lifecycle := newRequestLifecycle(f.events, clientIP, method, req.TargetAddr(), false)
	defer lifecycle.finish()

	origin, err := net.DialTimeout("tcp", req.TargetAddr(), f.dialTimeout)
	if err != nil {
		lifecycle.setNetOK(false)
		if pe := classifyDialError(err); pe != nil {
			detail := summarizeOriginError(pe.Err)
			log.Printf("forward origin_unreachable target=%s kind=%s errno=%s: %s", logTarget(req), detail.Kind, detail.Errno, detail.Message)
		}
		return
	}
	if f.metricsSink != nil {
		f.metricsSink.OnConnectionLifecycle(metrics.ConnectionOutbound, metrics.ConnectionOpen)
	}
	defer func() {
		origin.Close()
		if f.metricsSink != nil {
			f.metricsSink.OnConnectionLifecycle(metrics.ConnectionOutbound, metrics.ConnectionClose)
		}
	}()

	if _, err := origin.Write(req.RawHead); err != nil {
		lifecycle.setNetOK(false)
		if pe := classifyIOError(err); pe != nil {
			detail := summarizeOriginError(pe.Err)
			log.Printf("forward io_error target=%s kind=%s errno=%s: %s", logTarget(req), detail.Kind, detail.Errno, detail.Message)
		}
		return
	}
	lifecycle.addIngressBytes(int64(len(req.RawHead)))

	buf := make([]byte, forwardReadChunk)
	for {
		n, readErr := origin.Read(buf)
		if n > 0 {
			if _, writeErr := client.Write(buf[:n]); writeErr != nil {
				lifecycle.setNetOK(false)
				if pe := classifyIOError(writeErr); pe != nil {
					detail := summarizeOriginError(pe.Err)
					log.Printf("forward io_error target=%s kind=%s errno=%s: %s", logTarget(req), detail.Kind, detail.Errno, detail.Message)
				}
				return
			}
			lifecycle.addEgressBytes(int64(n))
			if f.metricsSink != nil {
				f.metricsSink.OnTrafficDelta(0, int64(n))
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				lifecycle.setNetOK(true)
			} else {
				lifecycle.setNetOK(false)
				if pe := classifyIOError(readErr); pe != nil {
					detail := summarizeOriginError(pe.Err)
					log.Printf("forward io_error target=%s kind=%s errno=%s: %s", logTarget(req), detail.Kind, detail.Errno, detail.Message)
				}
			}
			return
		}
	}
}
