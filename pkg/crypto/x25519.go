package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
)

// X25519 is Curve25519 Diffie-Hellman (RFC 7748).
type X25519 struct{}

// Name returns "x25519".
func (X25519) Name() string { return "x25519" }

// PublicKeySize returns 32.
func (X25519) PublicKeySize() int { return curve25519.PointSize }

// GenerateKey returns a fresh clamped scalar and its public point.
func (X25519) GenerateKey(rand io.Reader) (KeyPair, error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand, priv); err != nil {
		return KeyPair{}, fmt.Errorf("x25519: failed to read scalar: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		Zero(priv)
		return KeyPair{}, err
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// Agree computes X25519(priv, peerPub). Low-order peer points, which yield
// the all-zero output, are rejected.
func (X25519) Agree(priv, peerPub []byte) ([]byte, error) {
	if len(priv) != curve25519.ScalarSize {
		return nil, fmt.Errorf("%w: x25519 scalar must be %d bytes, got %d", ErrInvalidPrivateKey, curve25519.ScalarSize, len(priv))
	}
	if len(peerPub) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: x25519 point must be %d bytes, got %d", ErrInvalidPublicKey, curve25519.PointSize, len(peerPub))
	}
	secret, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakSharedSecret, err)
	}
	return secret, nil
}
