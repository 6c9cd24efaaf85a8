package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"
)

// P-256 constants.
const (
	// P256GroupSizeBytes is the scalar and coordinate size.
	P256GroupSizeBytes = 32

	// P256PublicKeySizeBytes is the uncompressed public key size.
	// Format: 0x04 || X (32 bytes) || Y (32 bytes) = 65 bytes
	P256PublicKeySizeBytes = 65

	// P256SignatureSizeBytes is the signature size (r || s).
	P256SignatureSizeBytes = 64
)

// P256ECDH is elliptic-curve Diffie-Hellman on NIST P-256.
// Private keys are 32-byte scalars, public keys uncompressed points.
type P256ECDH struct{}

// Name returns "p256".
func (P256ECDH) Name() string { return "p256" }

// PublicKeySize returns 65.
func (P256ECDH) PublicKeySize() int { return P256PublicKeySizeBytes }

// GenerateKey returns a fresh P-256 key pair.
func (P256ECDH) GenerateKey(rand io.Reader) (KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand)
	if err != nil {
		return KeyPair{}, fmt.Errorf("p256: failed to generate ECDH key: %w", err)
	}
	return KeyPair{Private: priv.Bytes(), Public: priv.PublicKey().Bytes()}, nil
}

// Agree returns the x-coordinate of priv·peerPub.
// crypto/ecdh rejects points that are not on the curve.
func (P256ECDH) Agree(priv, peerPub []byte) ([]byte, error) {
	if len(peerPub) != P256PublicKeySizeBytes {
		return nil, fmt.Errorf("%w: peer public key must be %d bytes, got %d", ErrInvalidPublicKey, P256PublicKeySizeBytes, len(peerPub))
	}
	key, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	peer, err := ecdh.P256().NewPublicKey(peerPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	secret, err := key.ECDH(peer)
	if err != nil {
		return nil, fmt.Errorf("p256: ECDH computation failed: %w", err)
	}
	return secret, nil
}

// P256ECDSA is ECDSA over P-256 with SHA-256. Signatures use the fixed-size
// r || s encoding rather than ASN.1.
type P256ECDSA struct{}

// Name returns "ecdsa".
func (P256ECDSA) Name() string { return "ecdsa" }

// PublicKeySize returns 65.
func (P256ECDSA) PublicKeySize() int { return P256PublicKeySizeBytes }

// SignatureSize returns 64.
func (P256ECDSA) SignatureSize() int { return P256SignatureSizeBytes }

// GenerateKey returns a fresh P-256 signing key pair.
func (P256ECDSA) GenerateKey(rand io.Reader) (KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand)
	if err != nil {
		return KeyPair{}, fmt.Errorf("p256: failed to generate key: %w", err)
	}
	return KeyPair{Private: priv.Bytes(), Public: priv.PublicKey().Bytes()}, nil
}

// PublicKey derives the uncompressed public point of a scalar.
func (P256ECDSA) PublicKey(priv []byte) ([]byte, error) {
	key, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return key.PublicKey().Bytes(), nil
}

// Sign hashes msg with SHA-256 and signs the digest.
// Returns a 64-byte signature (r || s), each component zero-padded to 32 bytes.
func (P256ECDSA) Sign(rand io.Reader, priv, msg []byte) ([]byte, error) {
	key, err := p256SigningKey(priv)
	if err != nil {
		return nil, err
	}
	digest := SHA256(msg)
	r, s, err := ecdsa.Sign(rand, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("p256: ECDSA sign failed: %w", err)
	}

	sig := make([]byte, P256SignatureSizeBytes)
	r.FillBytes(sig[:P256GroupSizeBytes])
	s.FillBytes(sig[P256GroupSizeBytes:])
	return sig, nil
}

// Verify verifies an r || s signature over SHA-256(msg).
func (P256ECDSA) Verify(pub, msg, sig []byte) (bool, error) {
	key, err := p256VerifyingKey(pub)
	if err != nil {
		return false, err
	}
	if len(sig) != P256SignatureSizeBytes {
		return false, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, P256SignatureSizeBytes, len(sig))
	}
	r := new(big.Int).SetBytes(sig[:P256GroupSizeBytes])
	s := new(big.Int).SetBytes(sig[P256GroupSizeBytes:])
	digest := SHA256(msg)
	return ecdsa.Verify(key, digest[:], r, s), nil
}

// MarshalPrivateKey encodes a scalar as PKCS#8 DER.
func (P256ECDSA) MarshalPrivateKey(priv []byte) ([]byte, error) {
	key, err := p256SigningKey(priv)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKCS8PrivateKey(key)
}

// ParsePrivateKey decodes a PKCS#8 DER P-256 key.
func (P256ECDSA) ParsePrivateKey(der []byte) (KeyPair, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	ec, ok := key.(*ecdsa.PrivateKey)
	if !ok || ec.Curve != elliptic.P256() {
		return KeyPair{}, fmt.Errorf("%w: want P-256 ECDSA, got %T", ErrKeyTypeMismatch, key)
	}
	ecdhKey, err := ec.ECDH()
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return KeyPair{Private: ecdhKey.Bytes(), Public: ecdhKey.PublicKey().Bytes()}, nil
}

// p256SigningKey converts a raw scalar into an ecdsa.PrivateKey.
func p256SigningKey(priv []byte) (*ecdsa.PrivateKey, error) {
	if len(priv) != P256GroupSizeBytes {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidPrivateKey, P256GroupSizeBytes, len(priv))
	}
	ecdhKey, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	pub, err := p256VerifyingKey(ecdhKey.PublicKey().Bytes())
	if err != nil {
		return nil, err
	}
	return &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(priv)}, nil
}

// p256VerifyingKey parses and validates an uncompressed public point.
func p256VerifyingKey(pub []byte) (*ecdsa.PublicKey, error) {
	if len(pub) != P256PublicKeySizeBytes {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidPublicKey, P256PublicKeySizeBytes, len(pub))
	}
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(pub[1 : 1+P256GroupSizeBytes]),
		Y:     new(big.Int).SetBytes(pub[1+P256GroupSizeBytes:]),
	}, nil
}
