// Package credstore implements the persistent username -> stored-credential
// mapping backing proxy authentication: a migrate-managed SQLite table with
// at-most-one row per username.
package credstore

import (
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/portcullis-proxy/portcullis/internal/dbutil"
)

// Store is a durable username -> stored-credential mapping. A StoredCredential
// is always exactly 96 lowercase hex characters (64-char PBKDF2 hash followed
// by a 32-char salt); Store does not interpret or validate that shape beyond
// storing and returning it verbatim — internal/authn owns the format.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the credential database at path and applies any
// pending schema migrations. Idempotent across restarts.
func Open(path string) (*Store, error) {
	db, err := dbutil.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("credstore open: %w", err)
	}
	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("credstore open: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds a new user with the given stored credential. Returns
// ErrDuplicateUser if the username already exists; the existing row is left
// unmodified. Returns ErrInvalidUsername for an empty username.
func (s *Store) Insert(username, storedCredential string) error {
	if username == "" {
		return ErrInvalidUsername
	}
	_, err := s.db.Exec(`INSERT INTO users (username, password) VALUES (?, ?)`, username, storedCredential)
	if err != nil {
		if isUniqueConstraint(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("credstore insert: %w", err)
	}
	return nil
}

// Lookup returns the stored credential for username, or ErrUserNotFound if
// no such user exists.
func (s *Store) Lookup(username string) (string, error) {
	var stored string
	err := s.db.QueryRow(`SELECT password FROM users WHERE username = ?`, username).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credstore lookup: %w", err)
	}
	return stored, nil
}

// List returns all usernames in the store, for admin CLI visibility.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("credstore list: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("credstore list: %w", err)
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

func isUniqueConstraint(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
