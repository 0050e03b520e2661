package credstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "users.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InsertLookupRoundTrip(t *testing.T) {
	s := newTestStore(t)

	const stored = "aaaabbbbccccddddeeeeffff0000111122223333444455556666777788889999" + "00112233445566778899aabbccddeeff"
	if err := s.Insert("alice", stored); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Lookup("alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != stored {
		t.Fatalf("lookup mismatch: got %q want %q", got, stored)
	}
}

func TestStore_LookupMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Lookup("nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStore_DuplicateInsertLeavesExistingRowUnchanged(t *testing.T) {
	s := newTestStore(t)

	if err := s.Insert("alice", "X"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.Insert("alice", "Y"); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}

	got, err := s.Lookup("alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != "X" {
		t.Fatalf("expected existing credential X to survive duplicate insert, got %q", got)
	}
}

func TestStore_InsertEmptyUsername(t *testing.T) {
	s := newTestStore(t)

	if err := s.Insert("", "X"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)

	for _, u := range []string{"bob", "alice", "carol"} {
		if err := s.Insert(u, "X"); err != nil {
			t.Fatalf("insert %s: %v", u, err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Insert("alice", "X"); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Lookup("alice")
	if err != nil {
		t.Fatalf("lookup after reopen: %v", err)
	}
	if got != "X" {
		t.Fatalf("got %q, want X", got)
	}
}
