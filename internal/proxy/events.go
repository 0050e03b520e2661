package proxy

// RequestFinishedEvent is emitted when a connection's forward or tunnel phase
// completes. cmd/portcullisd's emitter discards it; metrics.Manager is fed
// through MetricsEventSink instead.
type RequestFinishedEvent struct {
	IsConnect    bool
	NetOK        bool
	DurationNs   int64
	IngressBytes int64
	EgressBytes  int64
}

// RequestLogEntry captures per-connection details for the structured request
// log. Consumed by internal/requestlog.
type RequestLogEntry struct {
	StartedAtNs  int64
	ClientIP     string
	Method       string
	TargetHost   string
	TargetDomain string
	IsConnect    bool
	NetOK        bool
	DurationNs   int64
	IngressBytes int64
	EgressBytes  int64
	HTTPStatus   int
}

// EventEmitter receives both events. The Forwarder and Tunneler each hold one
// and call both methods when a request finishes; cmd/portcullisd supplies an
// emitter that passes request-log entries to the requestlog service.
type EventEmitter interface {
	EmitRequestFinished(RequestFinishedEvent)
	EmitRequestLog(RequestLogEntry)
}

// NoOpEventEmitter discards every event; NewForwarder and NewTunneler use it
// when their config has no Events (as in the tests).
type NoOpEventEmitter struct{}

func (NoOpEventEmitter) EmitRequestFinished(RequestFinishedEvent) {}
func (NoOpEventEmitter) EmitRequestLog(RequestLogEntry)           {}
