// Package transport carries secure channel traffic: an in-memory pipe for
// tests and demos, and a TCP listener and dialer for deployments.
//
// Both expose net.Conn byte streams. Framing is the secure channel's job.
package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no connection handler is configured.
	ErrNoHandler = errors.New("transport: no connection handler configured")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrInvalidAddress is returned for an empty dial address.
	ErrInvalidAddress = errors.New("transport: invalid address")
)
