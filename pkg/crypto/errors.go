package crypto

import "errors"

// Crypto package errors.
var (
	// ErrInvalidPublicKey is returned when a public key has the wrong size or
	// is not a valid group element.
	ErrInvalidPublicKey = errors.New("crypto: invalid public key")

	// ErrInvalidPrivateKey is returned when a private key has the wrong size or
	// encoding.
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrInvalidSignature is returned when a signature has the wrong size.
	// A well-formed signature that does not verify is reported as false, not
	// as an error.
	ErrInvalidSignature = errors.New("crypto: malformed signature")

	// ErrWeakSharedSecret is returned when key agreement produces a degenerate
	// secret (low-order point, trivial subgroup).
	ErrWeakSharedSecret = errors.New("crypto: degenerate shared secret")

	// ErrKeyTypeMismatch is returned when a PKCS#8 key belongs to a different
	// algorithm than the one parsing it.
	ErrKeyTypeMismatch = errors.New("crypto: key type mismatch")

	// ErrUnknownSuite is returned by SuiteByName for unregistered names.
	ErrUnknownSuite = errors.New("crypto: unknown suite")

	// ErrIncompleteSuite is returned when a suite lacks a primitive.
	ErrIncompleteSuite = errors.New("crypto: incomplete suite")

	// ErrInvalidBlockSize is returned when CBC input is not block aligned.
	ErrInvalidBlockSize = errors.New("crypto: input not a multiple of the block size")
)
