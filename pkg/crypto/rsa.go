package crypto

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
)

// RSAPSS is RSASSA-PSS with SHA-256. Public keys travel as PKIX DER, private
// keys as PKCS#8 DER. For a fixed modulus size and the default exponent the
// encoded public key has a fixed length.
type RSAPSS struct {
	// Bits is the modulus size, e.g. 2048.
	Bits int
}

var rsaPSSOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}

// Name returns "rsa<bits>".
func (r RSAPSS) Name() string { return fmt.Sprintf("rsa%d", r.Bits) }

// PublicKeySize returns the PKIX DER length of a key with modulus Bits and
// exponent 65537.
func (r RSAPSS) PublicKeySize() int {
	// SEQUENCE { SEQUENCE { OID rsaEncryption, NULL }, BIT STRING { SEQUENCE { INTEGER n, INTEGER e } } }
	n := r.Bits/8 + 1 // leading zero keeps n positive
	intN := 1 + derLenSize(n) + n
	intE := 1 + 1 + 3
	inner := 1 + derLenSize(intN+intE) + intN + intE
	bitString := 1 + derLenSize(inner+1) + 1 + inner
	algID := 15
	return 1 + derLenSize(algID+bitString) + algID + bitString
}

// SignatureSize returns Bits/8.
func (r RSAPSS) SignatureSize() int { return r.Bits / 8 }

// GenerateKey returns a fresh RSA key pair of the configured size.
func (r RSAPSS) GenerateKey(rand io.Reader) (KeyPair, error) {
	key, err := rsa.GenerateKey(rand, r.Bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("rsa: key generation failed: %w", err)
	}
	return r.keyPair(key)
}

// PublicKey derives the PKIX DER public key from a PKCS#8 private key.
func (r RSAPSS) PublicKey(priv []byte) ([]byte, error) {
	key, err := r.parse(priv)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKIXPublicKey(&key.PublicKey)
}

// Sign signs SHA-256(msg) with PSS.
func (r RSAPSS) Sign(rand io.Reader, priv, msg []byte) ([]byte, error) {
	key, err := r.parse(priv)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(msg)
	return rsa.SignPSS(rand, key, crypto.SHA256, digest[:], rsaPSSOptions)
}

// Verify verifies a PSS signature over SHA-256(msg).
func (r RSAPSS) Verify(pub, msg, sig []byte) (bool, error) {
	parsed, err := x509.ParsePKIXPublicKey(pub)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok || key.N.BitLen() != r.Bits {
		return false, fmt.Errorf("%w: want %d-bit RSA key", ErrInvalidPublicKey, r.Bits)
	}
	if len(sig) != r.SignatureSize() {
		return false, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, r.SignatureSize(), len(sig))
	}
	digest := sha256.Sum256(msg)
	err = rsa.VerifyPSS(key, crypto.SHA256, digest[:], sig, rsaPSSOptions)
	if errors.Is(err, rsa.ErrVerification) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarshalPrivateKey returns priv unchanged after checking that it parses;
// the in-memory encoding already is PKCS#8.
func (r RSAPSS) MarshalPrivateKey(priv []byte) ([]byte, error) {
	if _, err := r.parse(priv); err != nil {
		return nil, err
	}
	return append([]byte(nil), priv...), nil
}

// ParsePrivateKey decodes a PKCS#8 DER RSA key.
func (r RSAPSS) ParsePrivateKey(der []byte) (KeyPair, error) {
	key, err := r.parse(der)
	if err != nil {
		return KeyPair{}, err
	}
	return r.keyPair(key)
}

func (r RSAPSS) parse(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: want RSA, got %T", ErrKeyTypeMismatch, parsed)
	}
	if key.N.BitLen() != r.Bits {
		return nil, fmt.Errorf("%w: want %d-bit modulus, got %d", ErrInvalidPrivateKey, r.Bits, key.N.BitLen())
	}
	return key, nil
}

func (r RSAPSS) keyPair(key *rsa.PrivateKey) (KeyPair, error) {
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, err
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: priv, Public: pub}, nil
}

// derLenSize returns the number of bytes of a DER length field for n.
func derLenSize(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x100:
		return 2
	case n < 0x10000:
		return 3
	default:
		return 4
	}
}
