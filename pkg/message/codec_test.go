package message

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/backkem/dacgate/pkg/crypto"
)

func testKeys(seed byte) DirectionKeys {
	k := DirectionKeys{
		IV:  make([]byte, 16),
		Enc: make([]byte, 32),
		MAC: make([]byte, 32),
	}
	for i := range k.IV {
		k.IV[i] = seed + byte(i)
	}
	for i := range k.Enc {
		k.Enc[i] = seed ^ byte(0x40+i)
	}
	for i := range k.MAC {
		k.MAC[i] = seed ^ byte(0x80+i)
	}
	return k
}

// newCodecPair returns a sender and a receiver sharing one direction's keys.
func newCodecPair(t *testing.T) (*Codec, *Codec) {
	t.Helper()
	suite := crypto.NewCurve25519Suite()
	keys := testKeys(7)
	tx, err := NewCodec(suite, keys, rand.Reader)
	if err != nil {
		t.Fatalf("NewCodec (tx) failed: %v", err)
	}
	rx, err := NewCodec(suite, keys, rand.Reader)
	if err != nil {
		t.Fatalf("NewCodec (rx) failed: %v", err)
	}
	return tx, rx
}

func TestNewCodec_Validation(t *testing.T) {
	suite := crypto.NewCurve25519Suite()
	good := testKeys(1)

	tests := []struct {
		name string
		keys DirectionKeys
	}{
		{"short IV", DirectionKeys{IV: good.IV[:8], Enc: good.Enc, MAC: good.MAC}},
		{"short enc key", DirectionKeys{IV: good.IV, Enc: good.Enc[:16], MAC: good.MAC}},
		{"empty MAC key", DirectionKeys{IV: good.IV, Enc: good.Enc}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCodec(suite, tc.keys, rand.Reader); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("expected ErrInvalidKey, got %v", err)
			}
		})
	}

	if _, err := NewCodec(&crypto.Suite{}, good, rand.Reader); !errors.Is(err, crypto.ErrIncompleteSuite) {
		t.Errorf("expected ErrIncompleteSuite, got %v", err)
	}
}

func TestPaddingSize(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 14},
		{1, 13},
		{14, 0},
		{15, 15},
		{30, 0},
		{9, 5},
	}
	for _, tc := range tests {
		if got := PaddingSize(tc.n, 16); got != tc.want {
			t.Errorf("PaddingSize(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	tx, rx := newCodecPair(t)

	sizes := []int{0, 1, 2, 13, 14, 15, 16, 17, 31, 32, 33, 100, 1000, tx.MaxPayload()}
	for i, n := range sizes {
		msg := make([]byte, n)
		for j := range msg {
			msg[j] = byte(j * 31)
		}

		frame, err := tx.Encode(msg)
		if err != nil {
			t.Fatalf("Encode(%d bytes) failed: %v", n, err)
		}

		seq := binary.BigEndian.Uint64(frame[:SequenceSize])
		if seq != uint64(i)+1 {
			t.Errorf("frame %d: seq = %d, want %d", i, seq, i+1)
		}
		ctLen := int(binary.BigEndian.Uint16(frame[SequenceSize:HeaderSize]))
		if ctLen%16 != 0 || ctLen != n+TrueLengthSize+PaddingSize(n, 16) {
			t.Errorf("frame %d: ct_len = %d for %d-byte payload", i, ctLen, n)
		}
		if len(frame) != HeaderSize+ctLen+crypto.SHA256LenBytes {
			t.Errorf("frame %d: length %d", i, len(frame))
		}

		got, err := rx.Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%d bytes) failed: %v", n, err)
		}
		if !bytes.Equal(got, msg) {
			t.Fatalf("round trip mismatch for %d bytes", n)
		}
	}

	if tx.Sequence() != rx.Sequence() {
		t.Errorf("sequence drift: tx %d rx %d", tx.Sequence(), rx.Sequence())
	}
}

func TestCodec_PayloadTooLarge(t *testing.T) {
	tx, _ := newCodecPair(t)
	if tx.MaxPayload() != MaxPayloadSize {
		t.Errorf("MaxPayload = %d, want %d", tx.MaxPayload(), MaxPayloadSize)
	}
	if _, err := tx.Encode(make([]byte, tx.MaxPayload()+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
	if tx.Sequence() != InitialSequence {
		t.Errorf("rejected payload consumed a sequence number")
	}
}

func TestCodec_HidesPlaintext(t *testing.T) {
	tx, _ := newCodecPair(t)
	msg := []byte("open_door open_door open_door")
	frame, err := tx.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if bytes.Contains(frame, []byte("open_door")) {
		t.Error("plaintext visible in frame")
	}

	// Identical plaintexts must not produce identical ciphertexts.
	frame2, err := tx.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if bytes.Equal(frame[HeaderSize:], frame2[HeaderSize:]) {
		t.Error("repeated plaintext produced repeated ciphertext")
	}
}

func TestCodec_TamperDetection(t *testing.T) {
	regions := []struct {
		name   string
		offset func(frame []byte) int
	}{
		{"sequence", func([]byte) int { return 3 }},
		{"ciphertext first byte", func([]byte) int { return HeaderSize }},
		{"ciphertext last byte", func(f []byte) int { return len(f) - crypto.SHA256LenBytes - 1 }},
		{"mac", func(f []byte) int { return len(f) - 1 }},
	}

	for _, r := range regions {
		t.Run(r.name, func(t *testing.T) {
			tx, rx := newCodecPair(t)
			frame, err := tx.Encode([]byte("unlock"))
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			frame[r.offset(frame)] ^= 0x01

			if _, err := rx.Decode(frame); !errors.Is(err, ErrMACMismatch) {
				t.Errorf("expected ErrMACMismatch, got %v", err)
			}
			if rx.Sequence() != InitialSequence {
				t.Error("rejected frame advanced the receive counter")
			}
		})
	}
}

func TestCodec_LengthFieldTamper(t *testing.T) {
	tx, rx := newCodecPair(t)
	frame, err := tx.Encode([]byte("unlock"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	binary.BigEndian.PutUint16(frame[SequenceSize:HeaderSize], 17)
	if _, err := rx.Decode(frame); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength, got %v", err)
	}
	binary.BigEndian.PutUint16(frame[SequenceSize:HeaderSize], 0)
	if _, err := rx.Decode(frame); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("expected ErrInvalidLength for zero length, got %v", err)
	}
}

func TestCodec_ReplayRejected(t *testing.T) {
	tx, rx := newCodecPair(t)
	f1, _ := tx.Encode([]byte("one"))
	f2, _ := tx.Encode([]byte("two"))

	if _, err := rx.Decode(f1); err != nil {
		t.Fatalf("Decode(f1) failed: %v", err)
	}
	if _, err := rx.Decode(f1); !errors.Is(err, ErrSequenceMismatch) {
		t.Errorf("exact duplicate: expected ErrSequenceMismatch, got %v", err)
	}
	if _, err := rx.Decode(f2); err != nil {
		t.Fatalf("Decode(f2) failed: %v", err)
	}
	if _, err := rx.Decode(f1); !errors.Is(err, ErrSequenceMismatch) {
		t.Errorf("older frame: expected ErrSequenceMismatch, got %v", err)
	}
}

func TestCodec_ReorderRejected(t *testing.T) {
	tx, rx := newCodecPair(t)
	f1, _ := tx.Encode([]byte("one"))
	_, _ = tx.Encode([]byte("two"))
	f3, _ := tx.Encode([]byte("three"))

	if _, err := rx.Decode(f1); err != nil {
		t.Fatalf("Decode(f1) failed: %v", err)
	}
	if _, err := rx.Decode(f3); !errors.Is(err, ErrSequenceMismatch) {
		t.Errorf("expected ErrSequenceMismatch for skipped frame, got %v", err)
	}
}

// sealRaw builds a frame with an arbitrary decrypted body and a valid MAC.
func sealRaw(t *testing.T, keys DirectionKeys, seq uint64, body []byte) []byte {
	t.Helper()
	enc, err := crypto.AESCBC{KeyBytes: 32}.NewEncrypter(keys.Enc, keys.IV)
	if err != nil {
		t.Fatalf("NewEncrypter failed: %v", err)
	}
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint64(frame, seq)
	binary.BigEndian.PutUint16(frame[SequenceSize:], uint16(len(body)))
	enc.CryptBlocks(frame[HeaderSize:], body)
	mac := crypto.HMACSHA256(keys.MAC, frame)
	return append(frame, mac[:]...)
}

func TestCodec_TrueLengthValidation(t *testing.T) {
	keys := testKeys(7)
	tests := []struct {
		name    string
		trueLen uint16
	}{
		{"longer than block", 15},
		{"padding of a whole block", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, rx := newCodecPair(t)
			body := make([]byte, 16)
			if tc.name == "padding of a whole block" {
				body = make([]byte, 32)
			}
			binary.BigEndian.PutUint16(body, tc.trueLen)

			frame := sealRaw(t, keys, 1, body)
			if _, err := rx.Decode(frame); !errors.Is(err, ErrLengthMismatch) {
				t.Errorf("expected ErrLengthMismatch, got %v", err)
			}
		})
	}
}

func TestCodec_ReadFrameStream(t *testing.T) {
	tx, rx := newCodecPair(t)
	var wire bytes.Buffer
	msgs := [][]byte{[]byte("a"), {}, bytes.Repeat([]byte{0xAB}, 300)}
	for _, m := range msgs {
		f, err := tx.Encode(m)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		wire.Write(f)
	}

	for i, want := range msgs {
		got, err := rx.ReadFrame(&wire)
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: got %x want %x", i, got, want)
		}
	}

	if _, err := rx.ReadFrame(&wire); err != io.EOF {
		t.Errorf("empty stream: expected io.EOF, got %v", err)
	}
}

func TestCodec_ReadFrameTruncated(t *testing.T) {
	tx, rx := newCodecPair(t)
	f, _ := tx.Encode([]byte("truncated"))
	if _, err := rx.ReadFrame(bytes.NewReader(f[:len(f)-5])); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestCodec_CounterExhaustion(t *testing.T) {
	suite := crypto.NewCurve25519Suite()
	tx, err := NewCodecWithCounter(suite, testKeys(3), rand.Reader, NewSequenceCounterWithValue(math.MaxUint64-1))
	if err != nil {
		t.Fatalf("NewCodecWithCounter failed: %v", err)
	}
	if _, err := tx.Encode([]byte("last")); err != nil {
		t.Fatalf("final Encode failed: %v", err)
	}
	if _, err := tx.Encode([]byte("one too many")); !errors.Is(err, ErrCounterExhausted) {
		t.Errorf("expected ErrCounterExhausted, got %v", err)
	}
}

func TestCodec_Rekey(t *testing.T) {
	tx, rx := newCodecPair(t)
	f, _ := tx.Encode([]byte("before"))
	if _, err := rx.Decode(f); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if err := tx.Rekey("test rekey", 1); err != nil {
		t.Fatalf("tx Rekey failed: %v", err)
	}
	if bytes.Equal(tx.keys.Enc, testKeys(7).Enc) {
		t.Error("Rekey did not change the cipher key")
	}
	if err := rx.Rekey("test rekey", 1); err != nil {
		t.Fatalf("rx Rekey failed: %v", err)
	}

	f, _ = tx.Encode([]byte("after"))
	got, err := rx.Decode(f)
	if err != nil {
		t.Fatalf("Decode after rekey failed: %v", err)
	}
	if string(got) != "after" {
		t.Errorf("got %q", got)
	}

	// A receiver that did not rekey cannot authenticate new frames.
	_, stale := newCodecPair(t)
	_ = stale.counter.Advance()
	if _, err := stale.Decode(f); !errors.Is(err, ErrMACMismatch) {
		t.Errorf("expected ErrMACMismatch without rekey, got %v", err)
	}
}

func TestCodec_Zero(t *testing.T) {
	tx, _ := newCodecPair(t)
	tx.Zero()
	if _, err := tx.Encode([]byte("x")); !errors.Is(err, ErrCodecClosed) {
		t.Errorf("expected ErrCodecClosed, got %v", err)
	}
	for _, b := range tx.keys.Enc {
		if b != 0 {
			t.Fatal("cipher key not wiped")
		}
	}
}
