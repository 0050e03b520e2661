package authn

import (
	"encoding/hex"
	"testing"
)

func TestHashPassword_Deterministic(t *testing.T) {
	salt := make([]byte, saltLen)
	h1, _, err := HashPassword("s3cret", salt)
	if err != nil {
		t.Fatal(err)
	}
	h2, _, err := HashPassword("s3cret", salt)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash(P, S) not deterministic: %q != %q", h1, h2)
	}
}

func TestHashPassword_DifferentSaltDifferentHash(t *testing.T) {
	saltA := make([]byte, saltLen)
	saltB := make([]byte, saltLen)
	saltB[0] = 0x01

	h1, _, err := HashPassword("s3cret", saltA)
	if err != nil {
		t.Fatal(err)
	}
	h2, _, err := HashPassword("s3cret", saltB)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("expected different salts to produce different hashes")
	}
}

func TestHashPassword_RandomSaltLength(t *testing.T) {
	hashHex, salt, err := HashPassword("s3cret", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(salt) != saltLen {
		t.Fatalf("expected %d-byte salt, got %d", saltLen, len(salt))
	}
	if len(hashHex) != derivedKeyLen*2 {
		t.Fatalf("expected %d-char hash hex, got %d", derivedKeyLen*2, len(hashHex))
	}
}

func TestNewStoredCredential_Shape(t *testing.T) {
	stored, err := NewStoredCredential("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 96 {
		t.Fatalf("expected 96-char stored credential, got %d: %q", len(stored), stored)
	}
	saltHex := stored[64:]
	if _, err := hex.DecodeString(saltHex); err != nil {
		t.Fatalf("trailing 32 chars not valid hex: %v", err)
	}
	if _, err := hex.DecodeString(stored[:64]); err != nil {
		t.Fatalf("leading 64 chars not valid hex: %v", err)
	}
}
