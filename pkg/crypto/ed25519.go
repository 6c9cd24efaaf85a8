package crypto

import (
	"crypto/ed25519"
	"crypto/x509"
	"fmt"
	"io"
)

// Ed25519 is the EdDSA signature scheme over Curve25519 (RFC 8032).
// Private keys use the 64-byte seed‖public encoding of crypto/ed25519.
type Ed25519 struct{}

// Name returns "ed25519".
func (Ed25519) Name() string { return "ed25519" }

// PublicKeySize returns 32.
func (Ed25519) PublicKeySize() int { return ed25519.PublicKeySize }

// SignatureSize returns 64.
func (Ed25519) SignatureSize() int { return ed25519.SignatureSize }

// GenerateKey returns a fresh Ed25519 key pair.
func (Ed25519) GenerateKey(rand io.Reader) (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return KeyPair{}, fmt.Errorf("ed25519: key generation failed: %w", err)
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// PublicKey returns the public half embedded in priv.
func (Ed25519) PublicKey(priv []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes, got %d", ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(priv))
	}
	pub := ed25519.PrivateKey(priv).Public().(ed25519.PublicKey)
	return append([]byte(nil), pub...), nil
}

// Sign signs msg. Ed25519 is deterministic; rand is ignored.
func (Ed25519) Sign(_ io.Reader, priv, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes, got %d", ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(priv))
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

// Verify verifies an Ed25519 signature.
func (Ed25519) Verify(pub, msg, sig []byte) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: ed25519 public key must be %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(pub))
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: ed25519 signature must be %d bytes, got %d", ErrInvalidSignature, ed25519.SignatureSize, len(sig))
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig), nil
}

// MarshalPrivateKey encodes priv as PKCS#8 DER.
func (e Ed25519) MarshalPrivateKey(priv []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	return x509.MarshalPKCS8PrivateKey(ed25519.PrivateKey(priv))
}

// ParsePrivateKey decodes a PKCS#8 DER Ed25519 key.
func (Ed25519) ParsePrivateKey(der []byte) (KeyPair, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return KeyPair{}, fmt.Errorf("%w: want ed25519, got %T", ErrKeyTypeMismatch, key)
	}
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{Private: []byte(priv), Public: []byte(pub)}, nil
}
