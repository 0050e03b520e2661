// Package authn implements password hashing and Proxy-Authorization
// verification for the forward proxy's Basic-auth challenge.
package authn

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Fixed KDF parameters. These MUST stay in lockstep with the on-disk
// credential format: changing any of them invalidates every existing
// StoredCredential in the database.
const (
	pbkdf2Iterations = 100000
	derivedKeyLen    = 32 // bytes -> 64 hex chars
	saltLen          = 16 // bytes -> 32 hex chars
)

// HashPassword derives a PBKDF2-HMAC-SHA256 key for password using salt. If
// salt is nil, a fresh cryptographically random 16-byte salt is generated.
// Returns the 64-char lowercase hex digest and the salt used to produce it.
func HashPassword(password string, salt []byte) (hashHex string, usedSalt []byte, err error) {
	if salt == nil {
		salt = make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return "", nil, fmt.Errorf("authn: generate salt: %w", err)
		}
	}
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, derivedKeyLen, sha256.New)
	return hex.EncodeToString(derived), salt, nil
}

// NewStoredCredential hashes password with a fresh random salt and returns
// the 96-char stored-credential encoding: 64-char hash hex followed by the
// 32-char salt hex.
func NewStoredCredential(password string) (string, error) {
	hashHex, salt, err := HashPassword(password, nil)
	if err != nil {
		return "", err
	}
	return hashHex + hex.EncodeToString(salt), nil
}
