package authn

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log"
	"strings"

	"github.com/portcullis-proxy/portcullis/internal/credstore"
)

// CredentialLookup is the read-only view of the credential store the
// Authenticator needs. credstore.Store satisfies it.
type CredentialLookup interface {
	Lookup(username string) (storedCredential string, err error)
}

// Authenticator implements the Proxy-Authorization Basic-auth check: header
// extraction, base64/colon decoding, credential-store lookup, and a
// constant-time hash comparison.
type Authenticator struct {
	Enabled bool
	Store   CredentialLookup
}

// Authorize implements spec §4.3's authorize operation against the raw
// initial bytes of a client request (the "head", as produced by the request
// parser). When auth is disabled it always allows without touching Store.
func (a *Authenticator) Authorize(head []byte) bool {
	if !a.Enabled {
		return true
	}

	scheme, credentials, ok := findProxyAuthorization(head)
	if !ok || !strings.EqualFold(scheme, "basic") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(credentials)
	if err != nil {
		return false
	}

	colonIdx := bytes.IndexByte(decoded, ':')
	if colonIdx < 0 {
		return false
	}
	username := string(decoded[:colonIdx])
	password := string(decoded[colonIdx+1:])

	stored, err := a.Store.Lookup(username)
	if err != nil {
		if !errors.Is(err, credstore.ErrUserNotFound) {
			log.Printf("authn: db_error: credential lookup failed: %v", err)
		}
		return false // unknown user, or db_error — both deny per spec §7
	}
	return verifyStoredCredential(stored, password)
}

// verifyStoredCredential extracts the trailing 32-hex-char salt from stored,
// rehashes password with it, and compares to the leading 64-hex-char hash in
// constant time.
func verifyStoredCredential(stored, password string) bool {
	if len(stored) != derivedKeyLen*2+saltLen*2 {
		return false
	}
	wantHashHex := stored[:derivedKeyLen*2]
	saltHex := stored[derivedKeyLen*2:]

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	gotHashHex, _, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(gotHashHex), []byte(wantHashHex)) == 1
}

// findProxyAuthorization scans a raw request head for a
// "Proxy-Authorization: <scheme> <credentials>" header line. The header name
// match is case-insensitive, as is the scheme token by the caller.
func findProxyAuthorization(head []byte) (scheme, credentials string, ok bool) {
	for _, line := range bytes.Split(head, []byte("\r\n")) {
		name, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(string(name)), "Proxy-Authorization") {
			continue
		}
		fields := strings.Fields(strings.TrimSpace(string(value)))
		if len(fields) != 2 {
			return "", "", false
		}
		return fields[0], fields[1], true
	}
	return "", "", false
}
