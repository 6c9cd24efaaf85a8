package session

import "errors"

// Session package errors.
var (
	// ErrInvalidRole is returned when the role is not Client or Server.
	ErrInvalidRole = errors.New("session: invalid role")

	// ErrInvalidKey is returned when a derived key has an invalid length.
	ErrInvalidKey = errors.New("session: invalid key length")

	// ErrInvalidPolicy is returned for an unknown counter policy.
	ErrInvalidPolicy = errors.New("session: invalid counter policy")

	// ErrInvalidSharedSecret is returned when key derivation is given an
	// empty shared secret or transcript hash.
	ErrInvalidSharedSecret = errors.New("session: invalid shared secret")

	// ErrContextClosed is returned after ZeroizeKeys.
	ErrContextClosed = errors.New("session: context closed")

	// ErrSessionNotFound is returned when a table lookup fails.
	ErrSessionNotFound = errors.New("session: session not found")

	// ErrSessionTableFull is returned when no more sessions can be tracked.
	ErrSessionTableFull = errors.New("session: session table full")

	// ErrDuplicateSession is returned when adding an entry with an existing ID.
	ErrDuplicateSession = errors.New("session: duplicate session ID")
)
