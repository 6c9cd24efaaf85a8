package securechannel

import (
	"errors"
	"fmt"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/message"
	"github.com/backkem/dacgate/pkg/session"
)

// Kind classifies a secure channel failure.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not produced by this package.
	KindUnknown Kind = iota

	// KindTransport is a read or write failure of the underlying transport.
	// Always fatal to the session.
	KindTransport

	// KindProtocol is a malformed or unexpected message.
	KindProtocol

	// KindAuthentication is a failed signature or a rejected identity.
	KindAuthentication

	// KindIntegrity is a MAC or sequence number mismatch on a data frame.
	KindIntegrity

	// KindConfiguration is a caller error, such as setting the identity
	// after the handshake started.
	KindConfiguration
)

// String returns the error class name.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindProtocol:
		return "ProtocolError"
	case KindAuthentication:
		return "AuthenticationError"
	case KindIntegrity:
		return "IntegrityError"
	case KindConfiguration:
		return "ConfigurationError"
	default:
		return "UnknownError"
	}
}

// Error is the error type returned by Session operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("securechannel: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsAttackSignal reports whether err indicates a peer that failed
// authentication or sent a forged, replayed or reordered frame.
func IsAttackSignal(err error) bool {
	switch KindOf(err) {
	case KindAuthentication, KindIntegrity:
		return true
	default:
		return false
	}
}

// Secure channel errors.
var (
	// ErrSignatureInvalid is returned when the peer's transcript signature
	// does not verify.
	ErrSignatureInvalid = errors.New("securechannel: signature verification failed")

	// ErrIdentityRejected is returned when the local verifier rejects the
	// peer identity.
	ErrIdentityRejected = errors.New("securechannel: peer identity rejected")

	// ErrPeerRejected is returned when the peer aborted the handshake
	// because it could not authenticate us.
	ErrPeerRejected = errors.New("securechannel: peer rejected the handshake")

	// ErrPeerAborted is returned when the peer aborted the handshake for a
	// protocol reason.
	ErrPeerAborted = errors.New("securechannel: peer aborted the handshake")

	// ErrMalformedMessage is returned for a handshake message that cannot be
	// decoded or has fields of the wrong size.
	ErrMalformedMessage = errors.New("securechannel: malformed handshake message")

	// ErrUnexpectedMessage is returned for a well-formed handshake message of
	// the wrong type.
	ErrUnexpectedMessage = errors.New("securechannel: unexpected handshake message")

	// ErrInvalidState is returned when a handshake step runs out of order.
	ErrInvalidState = errors.New("securechannel: invalid state for operation")

	// ErrSessionFailed is returned by every operation on a failed session.
	ErrSessionFailed = errors.New("securechannel: session failed")

	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("securechannel: session released")

	// ErrIdentityRequired is returned when Authenticate runs without an
	// identity key and ephemeral identities are not enabled.
	ErrIdentityRequired = errors.New("securechannel: identity key required")

	// ErrIdentityMismatch is returned when an identity's public key does not
	// belong to its private key.
	ErrIdentityMismatch = errors.New("securechannel: identity public key does not match private key")

	// ErrHandshakeStarted is returned by SetIdentity and Authenticate once
	// the handshake has begun.
	ErrHandshakeStarted = errors.New("securechannel: handshake already started")

	// ErrNotReady is returned by Send and Receive before the handshake
	// completes.
	ErrNotReady = errors.New("securechannel: session not ready")

	// ErrInvalidConfig is returned by New for an unusable configuration.
	ErrInvalidConfig = errors.New("securechannel: invalid configuration")

	// ErrPrimitiveFailure is returned when a local cryptographic primitive
	// fails, for example the random source.
	ErrPrimitiveFailure = errors.New("securechannel: primitive failure")
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify wraps an error from a lower layer in the taxonomy. Errors that
// are already classified pass through unchanged.
func classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, message.ErrMACMismatch),
		errors.Is(err, message.ErrSequenceMismatch),
		errors.Is(err, message.ErrLengthMismatch):
		return newError(KindIntegrity, op, err)

	case errors.Is(err, message.ErrInvalidLength),
		errors.Is(err, message.ErrFrameTooShort),
		errors.Is(err, message.ErrRecordTooLarge),
		errors.Is(err, message.ErrEmptyRecord),
		errors.Is(err, crypto.ErrInvalidPublicKey),
		errors.Is(err, crypto.ErrWeakSharedSecret):
		return newError(KindProtocol, op, err)

	case errors.Is(err, crypto.ErrInvalidSignature):
		return newError(KindAuthentication, op, err)

	// The sequence limit is local configuration, not peer misbehaviour.
	case errors.Is(err, message.ErrCounterExhausted),
		errors.Is(err, message.ErrPayloadTooLarge),
		errors.Is(err, message.ErrCodecClosed),
		errors.Is(err, session.ErrContextClosed):
		return newError(KindConfiguration, op, err)

	default:
		return newError(KindTransport, op, err)
	}
}
