package gateway

import "errors"

var (
	// ErrNoIdentity is returned when a server has no identity key pair.
	ErrNoIdentity = errors.New("gateway: identity required")

	// ErrNoVerifier is returned when no trust verifier is configured.
	ErrNoVerifier = errors.New("gateway: verifier required")

	// ErrNoHandler is returned when a server has no request handler.
	ErrNoHandler = errors.New("gateway: handler required")

	// ErrInvalidConfig is returned for out-of-range configuration values.
	ErrInvalidConfig = errors.New("gateway: invalid configuration")

	// ErrClientClosed is returned by Client methods after Close.
	ErrClientClosed = errors.New("gateway: client closed")
)
