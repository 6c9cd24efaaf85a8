package crypto

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/cronokirby/saferith"
)

// rfc3526Group14 is the 2048-bit MODP group prime from RFC 3526 section 3.
const rfc3526Group14 = `
	FFFFFFFF FFFFFFFF C90FDAA2 2168C234 C4C6628B 80DC1CD1
	29024E08 8A67CC74 020BBEA6 3B139B22 514A0879 8E3404DD
	EF9519B3 CD3A431B 302B0A6D F25F1437 4FE1356D 6D51C245
	E485B576 625E7EC6 F44C42E9 A637ED6B 0BFF5CB6 F406B7ED
	EE386BFB 5A899FA5 AE9F2411 7C4B1FE6 49286651 ECE45B3D
	C2007CB8 A163BF05 98DA4836 1C55D39A 69163FA8 FD24CF5F
	83655D23 DCA3AD96 1C62F356 208552BB 9ED52907 7096966D
	670C354E 4ABC9804 F1746C08 CA18217C 32905E46 2E36CE3B
	E39E772C 180E8603 9B2783A2 EC07A28F B5C55DF0 6F4C52C9
	DE2BCBF6 95581718 3995497C EA956AE5 15D22618 98FA0510
	15728E5A 8AACAA68 FFFFFFFF FFFFFFFF`

// FFDH exponent size. 256-bit exponents match the ~112-bit strength of the
// 2048-bit group with margin.
const ffdhExponentBytes = 32

// FFDH is finite-field Diffie-Hellman over a safe-prime MODP group.
// Public values and shared secrets are fixed-width big-endian integers the
// size of the prime. Exponentiation with secret exponents runs in constant
// time through saferith.
type FFDH struct {
	label     string
	size      int
	modulus   *saferith.Modulus
	prime     *big.Int
	primeLess *big.Int
	generator *saferith.Nat
}

// NewFFDH2048 returns the RFC 3526 2048-bit MODP group with generator 2.
func NewFFDH2048() *FFDH {
	return newFFDH("ffdh2048", rfc3526Group14, 2)
}

func newFFDH(label, primeHex string, g uint64) *FFDH {
	raw, err := hex.DecodeString(strings.Join(strings.Fields(primeHex), ""))
	if err != nil {
		panic("crypto: bad MODP prime constant")
	}
	prime := new(big.Int).SetBytes(raw)
	return &FFDH{
		label:     label,
		size:      len(raw),
		modulus:   saferith.ModulusFromBytes(raw),
		prime:     prime,
		primeLess: new(big.Int).Sub(prime, big.NewInt(1)),
		generator: new(saferith.Nat).SetUint64(g),
	}
}

// Name returns the group label, e.g. "ffdh2048".
func (f *FFDH) Name() string { return f.label }

// PublicKeySize returns the byte length of the prime.
func (f *FFDH) PublicKeySize() int { return f.size }

// GenerateKey draws a random exponent x and returns (x, g^x mod p).
func (f *FFDH) GenerateKey(rand io.Reader) (KeyPair, error) {
	priv := make([]byte, ffdhExponentBytes)
	if _, err := io.ReadFull(rand, priv); err != nil {
		return KeyPair{}, fmt.Errorf("ffdh: failed to read exponent: %w", err)
	}
	// Force the top bit so every exponent has full length.
	priv[0] |= 0x80

	x := new(saferith.Nat).SetBytes(priv)
	y := new(saferith.Nat).Exp(f.generator, x, f.modulus)
	pub := make([]byte, f.size)
	y.FillBytes(pub)
	return KeyPair{Private: priv, Public: pub}, nil
}

// Agree returns peerPub^priv mod p as a fixed-width integer.
// Peer values outside (1, p-1) are rejected before exponentiation.
func (f *FFDH) Agree(priv, peerPub []byte) ([]byte, error) {
	if len(priv) != ffdhExponentBytes {
		return nil, fmt.Errorf("%w: exponent must be %d bytes, got %d", ErrInvalidPrivateKey, ffdhExponentBytes, len(priv))
	}
	if err := f.validatePublic(peerPub); err != nil {
		return nil, err
	}

	y := new(saferith.Nat).SetBytes(peerPub)
	x := new(saferith.Nat).SetBytes(priv)
	z := new(saferith.Nat).Exp(y, x, f.modulus)
	secret := make([]byte, f.size)
	z.FillBytes(secret)

	if new(big.Int).SetBytes(secret).Cmp(big.NewInt(1)) <= 0 {
		Zero(secret)
		return nil, ErrWeakSharedSecret
	}
	return secret, nil
}

// validatePublic enforces 1 < y < p-1 on a public value. The values are public
// so math/big comparisons are fine here.
func (f *FFDH) validatePublic(pub []byte) error {
	if len(pub) != f.size {
		return fmt.Errorf("%w: %s public value must be %d bytes, got %d", ErrInvalidPublicKey, f.label, f.size, len(pub))
	}
	y := new(big.Int).SetBytes(pub)
	if y.Cmp(big.NewInt(1)) <= 0 || y.Cmp(f.primeLess) >= 0 {
		return fmt.Errorf("%w: %s public value out of range", ErrInvalidPublicKey, f.label)
	}
	return nil
}
