package proxy

import (
	"time"

	"github.com/portcullis-proxy/portcullis/internal/netutil"
)

// requestLifecycle captures mutable per-connection telemetry and emits both
// metrics and request-log events on completion.
type requestLifecycle struct {
	startedAt time.Time
	events    EventEmitter
	finished  RequestFinishedEvent
	log       RequestLogEntry
}

func newRequestLifecycle(events EventEmitter, clientIP, method, targetHost string, isConnect bool) *requestLifecycle {
	startedAt := time.Now()
	return &requestLifecycle{
		startedAt: startedAt,
		events:    events,
		finished:  RequestFinishedEvent{IsConnect: isConnect},
		log: RequestLogEntry{
			StartedAtNs:  startedAt.UnixNano(),
			ClientIP:     clientIP,
			Method:       method,
			TargetHost:   targetHost,
			TargetDomain: netutil.ExtractDomain(targetHost),
			IsConnect:    isConnect,
		},
	}
}

func (l *requestLifecycle) finish() {
	durationNs := time.Since(l.startedAt).Nanoseconds()
	l.finished.DurationNs = durationNs
	l.log.DurationNs = durationNs
	l.events.EmitRequestFinished(l.finished)
	l.events.EmitRequestLog(l.log)
}

func (l *requestLifecycle) setHTTPStatus(code int) {
	l.log.HTTPStatus = code
}

func (l *requestLifecycle) addIngressBytes(n int64) {
	if n > 0 {
		l.finished.IngressBytes += n
		l.log.IngressBytes += n
	}
}

func (l *requestLifecycle) addEgressBytes(n int64) {
	if n > 0 {
		l.finished.EgressBytes += n
		l.log.EgressBytes += n
	}
}

func (l *requestLifecycle) setNetOK(ok bool) {
	l.finished.NetOK = ok
	l.log.NetOK = ok
}
