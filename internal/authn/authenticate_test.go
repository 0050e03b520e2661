package authn

import (
	"encoding/base64"
	"testing"
)

type fakeStore struct {
	creds map[string]string
}

func (f *fakeStore) Lookup(username string) (string, error) {
	stored, ok := f.creds[username]
	if !ok {
		return "", ErrNotFoundForTest
	}
	return stored, nil
}

// ErrNotFoundForTest stands in for credstore.ErrUserNotFound without creating
// an import-cycle-prone dependency on the credstore package from these tests.
var ErrNotFoundForTest = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

func mustStoredCredential(t *testing.T, password string) string {
	t.Helper()
	stored, err := NewStoredCredential(password)
	if err != nil {
		t.Fatal(err)
	}
	return stored
}

func basicHeader(username, password string) []byte {
	creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return []byte("CONNECT t.test:443 HTTP/1.1\r\nProxy-Authorization: Basic " + creds + "\r\n\r\n")
}

func TestAuthenticator_DisabledAlwaysAllows(t *testing.T) {
	a := &Authenticator{Enabled: false, Store: &fakeStore{}}
	if !a.Authorize([]byte("GET http://x/ HTTP/1.1\r\n\r\n")) {
		t.Fatal("expected allow when auth disabled")
	}
}

func TestAuthenticator_MissingHeaderDenied(t *testing.T) {
	a := &Authenticator{Enabled: true, Store: &fakeStore{}}
	if a.Authorize([]byte("CONNECT t.test:443 HTTP/1.1\r\n\r\n")) {
		t.Fatal("expected deny when Proxy-Authorization is absent")
	}
}

func TestAuthenticator_WrongSchemeDenied(t *testing.T) {
	a := &Authenticator{Enabled: true, Store: &fakeStore{}}
	head := []byte("CONNECT t.test:443 HTTP/1.1\r\nProxy-Authorization: Digest abc==\r\n\r\n")
	if a.Authorize(head) {
		t.Fatal("expected deny for non-Basic scheme")
	}
}

func TestAuthenticator_ValidCredentialsAllowed(t *testing.T) {
	stored := mustStoredCredential(t, "s3cret")
	a := &Authenticator{Enabled: true, Store: &fakeStore{creds: map[string]string{"alice": stored}}}
	if !a.Authorize(basicHeader("alice", "s3cret")) {
		t.Fatal("expected allow for correct password")
	}
}

func TestAuthenticator_WrongPasswordDenied(t *testing.T) {
	stored := mustStoredCredential(t, "s3cret")
	a := &Authenticator{Enabled: true, Store: &fakeStore{creds: map[string]string{"alice": stored}}}
	if a.Authorize(basicHeader("alice", "wrong")) {
		t.Fatal("expected deny for wrong password")
	}
}

func TestAuthenticator_UnknownUserDenied(t *testing.T) {
	a := &Authenticator{Enabled: true, Store: &fakeStore{}}
	if a.Authorize(basicHeader("ghost", "whatever")) {
		t.Fatal("expected deny for unknown user")
	}
}

func TestAuthenticator_MalformedBase64Denied(t *testing.T) {
	a := &Authenticator{Enabled: true, Store: &fakeStore{}}
	head := []byte("CONNECT t.test:443 HTTP/1.1\r\nProxy-Authorization: Basic !!!not-base64!!!\r\n\r\n")
	if a.Authorize(head) {
		t.Fatal("expected deny for malformed base64")
	}
}

func TestAuthenticator_NoColonInDecodedCredentialsDenied(t *testing.T) {
	a := &Authenticator{Enabled: true, Store: &fakeStore{}}
	creds := base64.StdEncoding.EncodeToString([]byte("nocolonhere"))
	head := []byte("CONNECT t.test:443 HTTP/1.1\r\nProxy-Authorization: Basic " + creds + "\r\n\r\n")
	if a.Authorize(head) {
		t.Fatal("expected deny when decoded credentials lack a colon")
	}
}
