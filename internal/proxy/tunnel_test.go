package proxy

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/portcullis-proxy/portcullis/internal/reqparse"
)

func TestTunneler_SendsConnectionEstablishedThenRelaysBothDirections(t *testing.T) {
	originLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer originLn.Close()

	originGotClientBytes := make(chan []byte, 1)
	go func() {
		conn, err := originLn.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		originGotClientBytes <- append([]byte(nil), buf[:n]...)
		conn.Write([]byte("pong-from-origin"))
	}()

	req := &reqparse.Request{Method: reqparse.MethodConnect}
	req.TargetHost, req.TargetPort = splitTestAddr(t, originLn.Addr().String())

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	tun := NewTunneler(TunnelerConfig{DialTimeout: 2 * time.Second, IdleTimeout: 2 * time.Second})
	done := make(chan struct{})
	go func() {
		tun.Tunnel(serverSide, "127.0.0.1", req)
		serverSide.Close()
		close(done)
	}()

	r := bufio.NewReader(clientSide)
	established := make([]byte, len("HTTP/1.1 200 Connection Established\r\n\r\n"))
	if _, err := io.ReadFull(r, established); err != nil {
		t.Fatalf("read established: %v", err)
	}
	if string(established) != "HTTP/1.1 200 Connection Established\r\n\r\n" {
		t.Fatalf("unexpected established response: %q", established)
	}

	if _, err := clientSide.Write([]byte("ping-from-client")); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-originGotClientBytes:
		if string(got) != "ping-from-client" {
			t.Fatalf("origin got %q, want ping-from-client", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for origin to observe client bytes")
	}

	pong := make([]byte, len("pong-from-origin"))
	if _, err := io.ReadFull(r, pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if string(pong) != "pong-from-origin" {
		t.Fatalf("client got %q, want pong-from-origin", pong)
	}

	clientSide.Close()
	<-done
}

func TestTunneler_OriginUnreachableClosesWithoutEstablishedResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	req := &reqparse.Request{Method: reqparse.MethodConnect}
	req.TargetHost, req.TargetPort = splitTestAddr(t, addr)

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	tun := NewTunneler(TunnelerConfig{DialTimeout: 500 * time.Millisecond})
	done := make(chan struct{})
	go func() {
		tun.Tunnel(serverSide, "127.0.0.1", req)
		serverSide.Close()
		close(done)
	}()
	<-done

	// The peer (serverSide) is closed; reading from clientSide must not
	// yield the established banner.
	buf := make([]byte, 1)
	clientSide.SetReadDeadline(time.Now().Add(time.Second))
	_, err = clientSide.Read(buf)
	if err == nil {
		t.Fatal("expected read error on closed tunnel, got none")
	}
}
