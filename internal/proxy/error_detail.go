package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

const maxOriginErrMsgLen = 512

// originErrorDetail is the detail printed on origin_unreachable and io_error
// log lines. It is not stored in the request log.
type originErrorDetail struct {
	Kind    string
	Errno   string
	Message string
}

func summarizeOriginError(err error) originErrorDetail {
	if err == nil {
		return originErrorDetail{}
	}
	detail := originErrorDetail{
		Errno:   extractErrnoCode(err),
		Message: sanitizeOriginErrMsg(err.Error()),
	}
	detail.Kind = classifyOriginErrKind(err, detail.Errno)
	return detail
}

func classifyOriginErrKind(err error, errno string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "eof"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns_error"
	}

	switch errno {
	case "ECONNREFUSED":
		return "connection_refused"
	case "ECONNRESET":
		return "connection_reset"
	case "ECONNABORTED":
		return "connection_aborted"
	case "ENETUNREACH":
		return "network_unreachable"
	case "EHOSTUNREACH":
		return "host_unreachable"
	case "EPIPE":
		return "broken_pipe"
	case "ETIMEDOUT":
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch strings.ToLower(opErr.Op) {
		case "dial":
			return "dial_error"
		case "read":
			return "read_error"
		case "write":
			return "write_error"
		default:
			return "net_op_error"
		}
	}

	return "network_error"
}

func extractErrnoCode(err error) string {
	if err == nil {
		return ""
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	return normalizeErrno(errno)
}

func normalizeErrno(errno syscall.Errno) string {
	switch errno {
	case syscall.ECONNREFUSED:
		return "ECONNREFUSED"
	case syscall.ECONNRESET:
		return "ECONNRESET"
	case syscall.ECONNABORTED:
		return "ECONNABORTED"
	case syscall.ENETUNREACH:
		return "ENETUNREACH"
	case syscall.EHOSTUNREACH:
		return "EHOSTUNREACH"
	case syscall.EPIPE:
		return "EPIPE"
	case syscall.ETIMEDOUT:
		return "ETIMEDOUT"
	default:
		return fmt.Sprintf("ERRNO_%d", int(errno))
	}
}

func sanitizeOriginErrMsg(raw string) string {
	raw = strings.Join(strings.Fields(strings.TrimSpace(raw)), " ")
	if raw == "" {
		return ""
	}
	if len(raw) > maxOriginErrMsgLen {
		return raw[:maxOriginErrMsgLen]
	}
	return raw
}

func isBenignTunnelCopyError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "closed network connection")
}
