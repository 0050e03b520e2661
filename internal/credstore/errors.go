package credstore

import "errors"

// ErrDuplicateUser is returned by Insert when the username already exists.
// The existing row is left untouched.
var ErrDuplicateUser = errors.New("credstore: duplicate username")

// ErrUserNotFound is returned by Lookup when no row matches the username.
var ErrUserNotFound = errors.New("credstore: user not found")

// ErrInvalidUsername is returned by Insert for an empty username.
var ErrInvalidUsername = errors.New("credstore: username must not be empty")
