package proxy

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/portcullis-proxy/portcullis/internal/reqparse"
)

// startOrigin starts a TCP listener that, for each connection, writes a
// fixed response once it has read at least one byte.
func startOrigin(t *testing.T, response []byte) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write(response)
	}()
	return ln
}

func TestForwarder_RelaysHeadAndResponseVerbatim(t *testing.T) {
	response := []byte("HTTP/1.1 200 OK\r\nContent-Length: 3\r\n\r\nhi\n")
	ln := startOrigin(t, response)
	defer ln.Close()

	head := []byte("GET http://" + ln.Addr().String() + "/foo HTTP/1.1\r\nHost: x\r\n\r\n")
	req, err := reqparse.Parse(head)
	if err != nil {
		t.Fatal(err)
	}
	// Point the parsed target at the real ephemeral origin address.
	req.TargetHost, req.TargetPort = splitTestAddr(t, ln.Addr().String())

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	fwd := NewForwarder(ForwarderConfig{DialTimeout: 2 * time.Second})
	done := make(chan struct{})
	go func() {
		fwd.Forward(serverSide, "127.0.0.1", req)
		serverSide.Close()
		close(done)
	}()

	r := bufio.NewReader(clientSide)
	got := make([]byte, len(response))
	if _, err := readFull(r, got); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if string(got) != string(response) {
		t.Fatalf("got %q, want %q", got, response)
	}
	<-done
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func splitTestAddr(t *testing.T, addr string) (string, uint16) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return host, uint16(port)
}

func TestForwarder_OriginUnreachableClosesWithoutPanic(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close() // immediately free the port so dialing it fails

	req := &reqparse.Request{RawHead: []byte("GET http://x/ HTTP/1.1\r\n\r\n")}
	req.TargetHost, req.TargetPort = splitTestAddr(t, addr)

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	fwd := NewForwarder(ForwarderConfig{DialTimeout: 500 * time.Millisecond})
	done := make(chan struct{})
	go func() {
		fwd.Forward(serverSide, "127.0.0.1", req)
		serverSide.Close()
		close(done)
	}()
	<-done
}
