// Package message implements the wire formats of the secure channel: the
// encrypted, authenticated data frame and the length-prefixed handshake
// record.
//
// Data frames are encrypt-then-MAC: the MAC covers the sequence number, the
// ciphertext length and the ciphertext, and is verified before anything is
// decrypted. Every direction has its own keys, CBC chaining state and
// strictly increasing 64-bit sequence counter starting at 1. A frame whose
// sequence number is not exactly the expected one is rejected even when its
// MAC is valid, which rules out replay and reordering.
package message
