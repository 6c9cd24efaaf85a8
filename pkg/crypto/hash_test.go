package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// SHA-256 vectors from NIST FIPS 180-4 and the CAVP short message set.
var sha256TestVectors = []struct {
	name     string
	message  string
	expected string
}{
	{
		name:     "FIPS180-4_B1_abc",
		message:  "616263",
		expected: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	},
	{
		name:     "CAVP_empty",
		message:  "",
		expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	},
	{
		name:     "CAVP_8bit",
		message:  "d3",
		expected: "28969cdfa74a12c82f3bad960b0b000aca2ac329deea5c2328ebc6f2ba9802c1",
	},
}

func TestSHA256(t *testing.T) {
	for _, tc := range sha256TestVectors {
		t.Run(tc.name, func(t *testing.T) {
			msg := mustHex(t, tc.message)
			want := mustHex(t, tc.expected)

			got := SHA256(msg)
			if !bytes.Equal(got[:], want) {
				t.Errorf("got %x want %x", got[:], want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint([]byte("abc"))
	if fp != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("Fingerprint = %s", fp)
	}
	if short := ShortFingerprint([]byte("abc")); short != "ba7816bf8f01cfea" {
		t.Errorf("ShortFingerprint = %s", short)
	}
}

// HMAC-SHA-256 vectors from RFC 4231.
var hmacSHA256TestVectors = []struct {
	name     string
	key      string
	data     string
	expected string
}{
	{
		name:     "RFC4231_TC1",
		key:      "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
		data:     "4869205468657265", // "Hi There"
		expected: "b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7",
	},
	{
		name:     "RFC4231_TC2",
		key:      "4a656665",                                                 // "Jefe"
		data:     "7768617420646f2079612077616e7420666f72206e6f7468696e673f", // "what do ya want for nothing?"
		expected: "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
	},
}

func TestHMACSHA256(t *testing.T) {
	for _, tc := range hmacSHA256TestVectors {
		t.Run(tc.name, func(t *testing.T) {
			key := mustHex(t, tc.key)
			data := mustHex(t, tc.data)
			want := mustHex(t, tc.expected)

			got := HMACSHA256(key, data)
			if !bytes.Equal(got[:], want) {
				t.Errorf("got %x want %x", got[:], want)
			}

			// The suite MAC must agree with the one-shot helper.
			m := HMACWithSHA256.New(key)
			m.Write(data[:len(data)/2])
			m.Write(data[len(data)/2:])
			if inc := m.Sum(nil); !bytes.Equal(inc, want) {
				t.Errorf("suite MAC: got %x want %x", inc, want)
			}
		})
	}
}

func TestHMACEqual(t *testing.T) {
	a := []byte{1, 2, 3, 4}
	if !HMACEqual(a, []byte{1, 2, 3, 4}) {
		t.Error("HMACEqual returned false for equal MACs")
	}
	if HMACEqual(a, []byte{1, 2, 3, 5}) {
		t.Error("HMACEqual returned true for different MACs")
	}
	if HMACEqual(a, a[:3]) {
		t.Error("HMACEqual returned true for different length MACs")
	}
}

func TestHKDFSHA256(t *testing.T) {
	// RFC 5869 Test Case 1.
	ikm := mustHex(t, "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b")
	salt := mustHex(t, "000102030405060708090a0b0c")
	info := mustHex(t, "f0f1f2f3f4f5f6f7f8f9")
	want := mustHex(t, "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865")

	got, err := HKDFSHA256(ikm, salt, info, 42)
	if err != nil {
		t.Fatalf("HKDFSHA256 failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x want %x", got, want)
	}
}

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}
