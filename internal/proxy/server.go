package proxy

import (
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zeebo/xxh3"

	"github.com/portcullis-proxy/portcullis/internal/metrics"
)

// ServerConfig holds the dependencies and tunables for a Server.
type ServerConfig struct {
	Addr           string // e.g. "0.0.0.0:8080"
	Backlog        int    // not read; net.Listen uses the OS default backlog
	Dispatcher     *Dispatcher
	Metrics        *metrics.Manager
	SnapshotSchedule string // cron expression, default "*/5 * * * *"
}

// Server owns the listener lifecycle: bind, accept loop, per-connection
// dispatch, periodic snapshot logging, and graceful shutdown (spec.md §4.8).
type Server struct {
	addr       string
	dispatcher *Dispatcher
	metrics    *metrics.Manager
	listener   net.Listener
	cron       *cron.Cron
	schedule   string

	connSeq uint64
}

// NewServer builds a Server from cfg. It does not bind the listener; call
// Listen to do that (cmd/portcullisd treats a bind failure as terminal).
func NewServer(cfg ServerConfig) *Server {
	schedule := cfg.SnapshotSchedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}
	return &Server{
		addr:       cfg.Addr,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		schedule:   schedule,
	}
}

// Listen binds the TCP listener in a single attempt, returning a bind_failed
// ProxyError on failure. The address is fixed at NewServer time.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return &ProxyError{Kind: KindBindFailed, Err: fmt.Errorf("listen %s: %w", s.addr, err)}
	}
	if s.metrics != nil {
		ln = NewCountingListener(ln, s.metrics)
	}
	s.listener = ln
	return nil
}

// Serve runs the accept loop on the calling goroutine; each accepted
// connection is dispatched on its own goroutine. Serve returns nil when the
// listener is closed by Close.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("proxy: Serve called before Listen")
	}
	s.startSnapshotCron()
	defer s.cron.Stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		correlationID := nextCorrelationID(&s.connSeq, conn.RemoteAddr().String())
		go s.dispatcher.Handle(conn, correlationID)
	}
}

// Close stops the accept loop and the snapshot cron. In-flight connections
// are left to complete or be aborted, per spec.md §4.8.
func (s *Server) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Addr returns the bound listener's network address, or "" if unbound.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) startSnapshotCron() {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.logSnapshot()
	})
	if err != nil {
		log.Printf("proxy: invalid snapshot schedule %q: %v", s.schedule, err)
	}
	s.cron.Start()
}

func (s *Server) logSnapshot() {
	active := s.dispatcher.ActiveConnections()
	if s.metrics == nil {
		log.Printf("snapshot active_connections=%d", active)
		return
	}
	snap := s.metrics.Snapshot()
	log.Printf(
		"snapshot active_connections=%d active_inbound=%d active_outbound=%d total_accepted=%d ingress_bytes=%d egress_bytes=%d",
		active, snap.ActiveInbound, snap.ActiveOutbound, snap.TotalAccepted, snap.IngressBytes, snap.EgressBytes,
	)
}

// nextCorrelationID derives a lightweight per-connection id by hashing the
// remote address together with a monotonic sequence number, so concurrent
// connections from the same address never collide.
func nextCorrelationID(seq *uint64, remoteAddr string) uint64 {
	*seq++
	return xxh3.HashString(fmt.Sprintf("%s-%d-%d", remoteAddr, *seq, time.Now().UnixNano()))
}
