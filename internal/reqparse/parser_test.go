package reqparse

import (
	"errors"
	"testing"
)

func TestParse_ConnectRequest(t *testing.T) {
	req, err := Parse([]byte("CONNECT secure.test:443 HTTP/1.1\r\nProxy-Authorization: Basic xyz\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != MethodConnect {
		t.Fatalf("expected MethodConnect, got %v", req.Method)
	}
	if req.TargetHost != "secure.test" || req.TargetPort != 443 {
		t.Fatalf("got host=%q port=%d", req.TargetHost, req.TargetPort)
	}
	if req.TargetAddr() != "secure.test:443" {
		t.Fatalf("unexpected TargetAddr: %q", req.TargetAddr())
	}
}

func TestParse_ConnectMissingPortIsBadRequest(t *testing.T) {
	_, err := Parse([]byte("CONNECT secure.test HTTP/1.1\r\n\r\n"))
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestParse_AbsoluteURIDefaultPort(t *testing.T) {
	req, err := Parse([]byte("GET http://example.test/foo HTTP/1.1\r\nHost: example.test\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.Method != MethodOther {
		t.Fatalf("expected MethodOther, got %v", req.Method)
	}
	if req.TargetHost != "example.test" || req.TargetPort != DefaultHTTPPort {
		t.Fatalf("got host=%q port=%d", req.TargetHost, req.TargetPort)
	}
}

func TestParse_AbsoluteURIExplicitPort(t *testing.T) {
	req, err := Parse([]byte("GET http://example.test:8888/foo HTTP/1.1\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.TargetHost != "example.test" || req.TargetPort != 8888 {
		t.Fatalf("got host=%q port=%d", req.TargetHost, req.TargetPort)
	}
}

func TestParse_NoSchemeAcceptsAuthorityPrefix(t *testing.T) {
	req, err := Parse([]byte("GET example.test:81/foo HTTP/1.1\r\n\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if req.TargetHost != "example.test" || req.TargetPort != 81 {
		t.Fatalf("got host=%q port=%d", req.TargetHost, req.TargetPort)
	}
}

func TestParse_MalformedFirstLine(t *testing.T) {
	_, err := Parse([]byte("HELLO\r\n\r\n"))
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestParse_EmptyRead(t *testing.T) {
	_, err := Parse(nil)
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestParse_RawHeadPreservedVerbatim(t *testing.T) {
	head := []byte("GET http://example.test/foo HTTP/1.1\r\nHost: example.test\r\n\r\n")
	req, err := Parse(head)
	if err != nil {
		t.Fatal(err)
	}
	if string(req.RawHead) != string(head) {
		t.Fatalf("RawHead mutated: got %q", req.RawHead)
	}
}

func TestParse_PortOutOfRange(t *testing.T) {
	_, err := Parse([]byte("CONNECT secure.test:70000 HTTP/1.1\r\n\r\n"))
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}
