package proxy

import (
	"bytes"
	"net"
	"time"

	"github.com/portcullis-proxy/portcullis/internal/authn"
	"github.com/portcullis-proxy/portcullis/internal/reqparse"
	"github.com/puzpuzpuz/xsync/v4"
)

// headReadTimeout bounds how long the dispatcher waits for a client's full
// initial head (spec.md §5 recommended bound).
const headReadTimeout = 30 * time.Second

// maxHeadBytes bounds how far the dispatcher extends its head read while
// hunting for the terminating blank line, to protect against a client that
// never sends one.
const maxHeadBytes = 8192

// headReadChunk is the read granularity while accumulating the head.
const headReadChunk = 1024

// Dispatcher implements the per-connection state machine of spec.md §4.7:
// ACCEPTED -> HEAD_READ -> {AUTH_OK, AUTH_FAIL, PARSE_FAIL} -> TUNNELING/FORWARDING -> CLOSE.
type Dispatcher struct {
	Auth      *authn.Authenticator
	Forwarder *Forwarder
	Tunneler  *Tunneler

	// conns tracks live connections by a correlation id, for diagnostics and
	// the periodic snapshot log.
	conns *xsync.Map[uint64, net.Conn]
}

// NewDispatcher builds a Dispatcher from its three collaborators.
func NewDispatcher(auth *authn.Authenticator, fwd *Forwarder, tun *Tunneler) *Dispatcher {
	return &Dispatcher{
		Auth:      auth,
		Forwarder: fwd,
		Tunneler:  tun,
		conns:     xsync.NewMap[uint64, net.Conn](),
	}
}

// Handle runs the full per-connection state machine. It always closes conn
// exactly once before returning, on every code path (spec.md §4.7).
func (d *Dispatcher) Handle(conn net.Conn, correlationID uint64) {
	d.conns.Store(correlationID, conn)
	defer func() {
		d.conns.Delete(correlationID)
		conn.Close()
	}()

	clientIP := remoteIP(conn)

	head, err := readHead(conn)
	if err != nil {
		// PARSE_FAIL-adjacent: the client never completed a head within the
		// read bound. Close silently (spec.md §7 bad_request policy).
		return
	}

	parsed, err := reqparse.Parse(head)
	if err != nil {
		writeBadRequest(conn)
		return
	}

	if !d.Auth.Authorize(head) {
		writeAuthChallenge(conn)
		return
	}

	switch parsed.Method {
	case reqparse.MethodConnect:
		d.Tunneler.Tunnel(conn, clientIP, parsed)
	default:
		d.Forwarder.Forward(conn, clientIP, parsed)
	}
}

// ActiveConnections returns the number of connections currently dispatched.
func (d *Dispatcher) ActiveConnections() int {
	n := 0
	d.conns.Range(func(uint64, net.Conn) bool { n++; return true })
	return n
}

// readHead reads the client's initial send, extending the read past 1024
// bytes (spec.md §4.4's nominal size) up to maxHeadBytes while hunting for
// the terminating CRLFCRLF, bounded by headReadTimeout.
func readHead(conn net.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(headReadTimeout))
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 0, headReadChunk)
	chunk := make([]byte, headReadChunk)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.Contains(buf, []byte("\r\n\r\n")) {
				return buf, nil
			}
			if len(buf) >= maxHeadBytes {
				return nil, errHeadTooLarge
			}
		}
		if err != nil {
			if len(buf) > 0 {
				// A client that sends a head then closes without the
				// trailing blank line still gets parsed on what arrived.
				return buf, nil
			}
			return nil, err
		}
	}
}

var errHeadTooLarge = &ProxyError{Kind: KindBadRequest}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
