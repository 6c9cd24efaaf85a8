package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// HMACSHA256 computes the HMAC-SHA256 of a message using the given key.
//
// Returns a 32-byte (256-bit) MAC.
func HMACSHA256(key, message []byte) [SHA256LenBytes]byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)
	var result [SHA256LenBytes]byte
	copy(result[:], h.Sum(nil))
	return result
}

// HMACEqual compares two MACs for equality in constant time.
// This should be used instead of bytes.Equal to prevent timing attacks.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}

// MAC is a keyed message authentication code.
type MAC interface {
	// Name identifies the MAC inside a suite name.
	Name() string

	// Size is the tag length in bytes.
	Size() int

	// New returns a fresh keyed instance.
	New(key []byte) hash.Hash
}

// HMAC is a MAC over an arbitrary hash function.
type HMAC struct {
	// Label is returned by Name.
	Label string

	// Hash constructs the underlying hash.
	Hash func() hash.Hash
}

// HMACWithSHA256 is HMAC-SHA-256.
var HMACWithSHA256 = HMAC{Label: "hmacsha256", Hash: sha256.New}

// Name returns the configured label.
func (m HMAC) Name() string { return m.Label }

// Size returns the output size of the underlying hash.
func (m HMAC) Size() int { return m.Hash().Size() }

// New returns an HMAC instance keyed with key.
func (m HMAC) New(key []byte) hash.Hash { return hmac.New(m.Hash, key) }
