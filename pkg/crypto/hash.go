// Package crypto provides the cryptographic primitives consumed by the secure
// channel: key agreement, signatures, hashing, the CBC block cipher and the
// frame MAC, bundled into named suites.
//
// The secure channel never calls a concrete primitive directly. It is handed a
// Suite and only talks to the KeyAgreement, Signature, BlockCipher and MAC
// interfaces, so the handshake and framing logic is shared by every suite.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256LenBytes is the SHA-256 output length in bytes.
const SHA256LenBytes = 32

// SHA256 computes the SHA-256 hash of a message.
//
// Returns a 32-byte (256-bit) hash digest.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// Fingerprint returns the lowercase hex SHA-256 digest of a public key.
// Fingerprints identify peers in pin files, ACLs and logs; key material
// itself is never logged.
func Fingerprint(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:])
}

// ShortFingerprint returns the first 8 bytes of Fingerprint, hex encoded.
func ShortFingerprint(publicKey []byte) string {
	return Fingerprint(publicKey)[:16]
}
