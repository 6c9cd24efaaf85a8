// Package trust decides whether a peer's long-term identity key is
// acceptable.
//
// A Verifier is consulted once per handshake on each side, after the peer's
// identity key has been received and before its signature is checked.
// Verifiers shared between sessions must be safe for concurrent use.
package trust

//go:generate mockgen -source=verifier.go -destination=mock_trust/mock_trust.go -package=mock_trust

import (
	"errors"
	"fmt"

	"github.com/backkem/dacgate/pkg/crypto"
)

// Trust errors.
var (
	// ErrRejected is returned by verifiers that refuse a key.
	ErrRejected = errors.New("trust: identity rejected")

	// ErrNotPinned is returned by PinStore for an unknown key.
	ErrNotPinned = errors.New("trust: identity not pinned")

	// ErrInvalidPinFile is returned when a pin file line cannot be parsed.
	ErrInvalidPinFile = errors.New("trust: invalid pin file")

	// ErrInvalidFingerprint is returned for a malformed fingerprint.
	ErrInvalidFingerprint = errors.New("trust: invalid fingerprint")
)

// Verifier accepts or rejects a peer identity public key.
// A nil error accepts the key.
type Verifier interface {
	VerifyIdentity(pub []byte) error
}

// Confirmer is implemented by verifiers that must learn when a key they
// accepted has also proven possession of its private half. ConfirmIdentity
// is called after the peer's handshake signature verifies; an error still
// fails the handshake.
type Confirmer interface {
	ConfirmIdentity(pub []byte) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(pub []byte) error

// VerifyIdentity calls f(pub).
func (f VerifierFunc) VerifyIdentity(pub []byte) error {
	return f(pub)
}

// AcceptAll returns a verifier that accepts every key.
// For demos and tests only; it provides no authentication of the peer.
func AcceptAll() Verifier {
	return VerifierFunc(func([]byte) error { return nil })
}

// RejectAll returns a verifier that rejects every key.
func RejectAll() Verifier {
	return VerifierFunc(func(pub []byte) error {
		return fmt.Errorf("%w: %s", ErrRejected, crypto.ShortFingerprint(pub))
	})
}

// Chain returns a verifier that accepts a key only if every verifier does.
// An empty chain rejects everything. The result is also a Confirmer that
// forwards ConfirmIdentity to every member implementing it, so a
// trust-on-first-use PinStore still learns the keys it accepted.
func Chain(verifiers ...Verifier) Verifier {
	return chain(verifiers)
}

type chain []Verifier

func (c chain) VerifyIdentity(pub []byte) error {
	if len(c) == 0 {
		return ErrRejected
	}
	for _, v := range c {
		if err := v.VerifyIdentity(pub); err != nil {
			return err
		}
	}
	return nil
}

func (c chain) ConfirmIdentity(pub []byte) error {
	if len(c) == 0 {
		return ErrRejected
	}
	for _, v := range c {
		if conf, ok := v.(Confirmer); ok {
			if err := conf.ConfirmIdentity(pub); err != nil {
				return err
			}
		}
	}
	return nil
}
