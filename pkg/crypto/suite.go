package crypto

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"sort"
)

// KeyPair is a private/public key pair encoded the way the primitive that
// produced it puts keys on the wire.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// Zero overwrites the private half of the key pair.
func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	Zero(k.Private)
	k.Private = nil
}

// Clone returns a deep copy of the key pair.
func (k KeyPair) Clone() KeyPair {
	return KeyPair{
		Private: append([]byte(nil), k.Private...),
		Public:  append([]byte(nil), k.Public...),
	}
}

// KeyAgreement is a Diffie-Hellman style key agreement primitive.
type KeyAgreement interface {
	// Name identifies the primitive inside a suite name.
	Name() string

	// PublicKeySize is the fixed wire size of a public value.
	PublicKeySize() int

	// GenerateKey returns a fresh key pair.
	GenerateKey(rand io.Reader) (KeyPair, error)

	// Agree combines a local private key with the peer's public value.
	// The peer value is validated before use.
	Agree(priv, peerPub []byte) ([]byte, error)
}

// Signature is a digital signature primitive used for long-term identities.
type Signature interface {
	// Name identifies the primitive inside a suite name.
	Name() string

	// PublicKeySize is the fixed wire size of a public key.
	PublicKeySize() int

	// SignatureSize is the fixed wire size of a signature.
	SignatureSize() int

	// GenerateKey returns a fresh identity key pair.
	GenerateKey(rand io.Reader) (KeyPair, error)

	// PublicKey derives the public key from a private key.
	PublicKey(priv []byte) ([]byte, error)

	// Sign signs msg.
	Sign(rand io.Reader, priv, msg []byte) ([]byte, error)

	// Verify reports whether sig is a valid signature of msg under pub.
	// Malformed inputs are reported as an error; a well-formed signature
	// that does not verify returns false and a nil error.
	Verify(pub, msg, sig []byte) (bool, error)

	// MarshalPrivateKey encodes a private key as PKCS#8 DER.
	MarshalPrivateKey(priv []byte) ([]byte, error)

	// ParsePrivateKey decodes a PKCS#8 DER private key.
	ParsePrivateKey(der []byte) (KeyPair, error)
}

// Suite bundles the primitives a secure channel runs on.
// Both peers of a deployment must use the same suite.
type Suite struct {
	KeyAgreement KeyAgreement
	Signature    Signature
	Hash         func() hash.Hash
	HashLabel    string
	Cipher       BlockCipher
	MAC          MAC
}

// Name returns the canonical suite name, e.g.
// "x25519-ed25519-aes256cbc-hmacsha256".
func (s *Suite) Name() string {
	return fmt.Sprintf("%s-%s-%s-%s",
		s.KeyAgreement.Name(), s.Signature.Name(), s.Cipher.Name(), s.MAC.Name())
}

// Validate checks that every primitive is present and that the hash output
// is long enough to key the cipher and seed its IV.
func (s *Suite) Validate() error {
	if s == nil || s.KeyAgreement == nil || s.Signature == nil || s.Hash == nil || s.Cipher == nil || s.MAC == nil {
		return ErrIncompleteSuite
	}
	size := s.HashSize()
	if size < s.Cipher.KeySize() || size < s.Cipher.BlockSize() {
		return fmt.Errorf("%w: %d-byte hash cannot key %s", ErrIncompleteSuite, size, s.Cipher.Name())
	}
	return nil
}

// HashSize returns the digest length of the suite hash.
func (s *Suite) HashSize() int {
	return s.Hash().Size()
}

// Sum hashes the concatenation of parts.
func (s *Suite) Sum(parts ...[]byte) []byte {
	h := s.Hash()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// Built-in suite names.
const (
	SuiteCurve25519 = "x25519-ed25519-aes256cbc-hmacsha256"
	SuiteP256       = "p256-ecdsa-aes256cbc-hmacsha256"
	SuiteClassic    = "ffdh2048-rsa2048-aes256cbc-hmacsha256"
)

// NewCurve25519Suite returns X25519 + Ed25519 + AES-256-CBC + HMAC-SHA-256.
func NewCurve25519Suite() *Suite {
	return &Suite{
		KeyAgreement: X25519{},
		Signature:    Ed25519{},
		Hash:         sha256.New,
		HashLabel:    "sha256",
		Cipher:       AESCBC{KeyBytes: 32},
		MAC:          HMACWithSHA256,
	}
}

// NewP256Suite returns P-256 ECDH + ECDSA + AES-256-CBC + HMAC-SHA-256.
func NewP256Suite() *Suite {
	return &Suite{
		KeyAgreement: P256ECDH{},
		Signature:    P256ECDSA{},
		Hash:         sha256.New,
		HashLabel:    "sha256",
		Cipher:       AESCBC{KeyBytes: 32},
		MAC:          HMACWithSHA256,
	}
}

// NewClassicSuite returns 2048-bit finite-field DH + RSA-2048 + AES-256-CBC +
// HMAC-SHA-256.
func NewClassicSuite() *Suite {
	return &Suite{
		KeyAgreement: NewFFDH2048(),
		Signature:    RSAPSS{Bits: 2048},
		Hash:         sha256.New,
		HashLabel:    "sha256",
		Cipher:       AESCBC{KeyBytes: 32},
		MAC:          HMACWithSHA256,
	}
}

var suiteConstructors = map[string]func() *Suite{
	SuiteCurve25519: NewCurve25519Suite,
	SuiteP256:       NewP256Suite,
	SuiteClassic:    NewClassicSuite,
}

// SuiteByName returns a new instance of a built-in suite.
func SuiteByName(name string) (*Suite, error) {
	ctor, ok := suiteConstructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, name)
	}
	return ctor(), nil
}

// Suites returns the names of all built-in suites in sorted order.
func Suites() []string {
	names := make([]string, 0, len(suiteConstructors))
	for name := range suiteConstructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
