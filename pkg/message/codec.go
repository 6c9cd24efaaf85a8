package message

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/backkem/dacgate/pkg/crypto"
)

// DirectionKeys are the keys protecting one direction of traffic.
type DirectionKeys struct {
	// IV is the initial CBC chaining value; exactly one cipher block.
	IV []byte

	// Enc is the cipher key.
	Enc []byte

	// MAC is the frame MAC key.
	MAC []byte
}

// Clone returns a deep copy.
func (k DirectionKeys) Clone() DirectionKeys {
	return DirectionKeys{
		IV:  append([]byte(nil), k.IV...),
		Enc: append([]byte(nil), k.Enc...),
		MAC: append([]byte(nil), k.MAC...),
	}
}

// Zero wipes all three keys.
func (k *DirectionKeys) Zero() {
	crypto.Zero(k.IV)
	crypto.Zero(k.Enc)
	crypto.Zero(k.MAC)
}

// Codec protects the frames of one traffic direction.
//
// A frame on the wire is
//
//	seq (8, big-endian) || ct_len (2, big-endian) || ct || MAC(seq || ct_len || ct)
//
// where ct is the CBC encryption of
//
//	true_len (2, big-endian) || plaintext || random padding
//
// padded to a whole number of cipher blocks. The CBC chaining value carries
// over from one frame to the next, so frames must be processed in order;
// the sequence number check guarantees that.
//
// A session uses one Codec for Encode and a second one, keyed for the
// opposite direction, for Decode. Codec is not safe for concurrent use.
type Codec struct {
	suite   *crypto.Suite
	keys    DirectionKeys
	enc     cipher.BlockMode
	dec     cipher.BlockMode
	counter *SequenceCounter
	rand    io.Reader
	closed  bool
}

// NewCodec creates a codec for one direction. The keys are copied.
// rand supplies padding bytes and is only used by Encode.
func NewCodec(suite *crypto.Suite, keys DirectionKeys, rand io.Reader) (*Codec, error) {
	return NewCodecWithCounter(suite, keys, rand, NewSequenceCounter())
}

// NewCodecWithCounter is NewCodec with an explicit starting counter.
func NewCodecWithCounter(suite *crypto.Suite, keys DirectionKeys, rand io.Reader, counter *SequenceCounter) (*Codec, error) {
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	if len(keys.IV) != suite.Cipher.BlockSize() || len(keys.Enc) != suite.Cipher.KeySize() || len(keys.MAC) == 0 {
		return nil, ErrInvalidKey
	}

	c := &Codec{
		suite:   suite,
		keys:    keys.Clone(),
		counter: counter,
		rand:    rand,
	}
	if err := c.initModes(); err != nil {
		c.Zero()
		return nil, err
	}
	return c, nil
}

func (c *Codec) initModes() error {
	var err error
	if c.enc, err = c.suite.Cipher.NewEncrypter(c.keys.Enc, c.keys.IV); err != nil {
		return err
	}
	if c.dec, err = c.suite.Cipher.NewDecrypter(c.keys.Enc, c.keys.IV); err != nil {
		return err
	}
	return nil
}

// Sequence returns the sequence number of the next frame.
func (c *Codec) Sequence() uint64 {
	return c.counter.Current()
}

// MaxPayload returns the largest plaintext Encode accepts.
func (c *Codec) MaxPayload() int {
	bs := c.suite.Cipher.BlockSize()
	return (0xFFFF/bs)*bs - TrueLengthSize
}

// PaddingSize returns the number of random padding bytes appended to a
// plaintext of n bytes for a cipher with the given block size.
func PaddingSize(n, blockSize int) int {
	return (blockSize - (n+TrueLengthSize)%blockSize) % blockSize
}

// Encode protects plaintext as the next frame in sequence.
func (c *Codec) Encode(plaintext []byte) ([]byte, error) {
	if c.closed {
		return nil, ErrCodecClosed
	}
	if len(plaintext) > c.MaxPayload() {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(plaintext))
	}
	if c.counter.Exhausted() {
		return nil, ErrCounterExhausted
	}

	bs := c.suite.Cipher.BlockSize()
	padLen := PaddingSize(len(plaintext), bs)
	ctLen := TrueLengthSize + len(plaintext) + padLen
	macSize := c.suite.MAC.Size()

	frame := make([]byte, HeaderSize+ctLen+macSize)
	body := frame[HeaderSize : HeaderSize+ctLen]
	binary.BigEndian.PutUint16(body[:TrueLengthSize], uint16(len(plaintext)))
	copy(body[TrueLengthSize:], plaintext)
	if padLen > 0 {
		if _, err := io.ReadFull(c.rand, body[TrueLengthSize+len(plaintext):]); err != nil {
			return nil, fmt.Errorf("message: failed to read padding: %w", err)
		}
	}

	seq, err := c.counter.Next()
	if err != nil {
		return nil, err
	}
	binary.BigEndian.PutUint64(frame[:SequenceSize], seq)
	binary.BigEndian.PutUint16(frame[SequenceSize:HeaderSize], uint16(ctLen))

	c.enc.CryptBlocks(body, body)

	mac := c.suite.MAC.New(c.keys.MAC)
	mac.Write(frame[:HeaderSize+ctLen])
	copy(frame[HeaderSize+ctLen:], mac.Sum(nil))

	return frame, nil
}

// ReadFrame reads exactly one frame from r and decodes it.
// Errors from r are returned unchanged so callers can tell transport
// failures from codec failures.
func (c *Codec) ReadFrame(r io.Reader) ([]byte, error) {
	if c.closed {
		return nil, ErrCodecClosed
	}

	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	ctLen, err := c.checkLength(header[:])
	if err != nil {
		return nil, err
	}

	rest := make([]byte, ctLen+c.suite.MAC.Size())
	if _, err := io.ReadFull(r, rest); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return c.open(header[:], rest[:ctLen], rest[ctLen:])
}

// Decode decodes a complete frame held in memory.
func (c *Codec) Decode(frame []byte) ([]byte, error) {
	if c.closed {
		return nil, ErrCodecClosed
	}
	if len(frame) < HeaderSize {
		return nil, ErrFrameTooShort
	}
	ctLen, err := c.checkLength(frame[:HeaderSize])
	if err != nil {
		return nil, err
	}
	switch want := HeaderSize + ctLen + c.suite.MAC.Size(); {
	case len(frame) < want:
		return nil, ErrFrameTooShort
	case len(frame) > want:
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidLength, len(frame)-want)
	}
	ct := append([]byte(nil), frame[HeaderSize:HeaderSize+ctLen]...)
	return c.open(frame[:HeaderSize], ct, frame[HeaderSize+ctLen:])
}

func (c *Codec) checkLength(header []byte) (int, error) {
	ctLen := int(binary.BigEndian.Uint16(header[SequenceSize:HeaderSize]))
	if ctLen == 0 || ctLen%c.suite.Cipher.BlockSize() != 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, ctLen)
	}
	return ctLen, nil
}

// open authenticates, sequence-checks and decrypts a frame. ct is
// decrypted in place. Nothing is decrypted before the MAC verifies.
func (c *Codec) open(header, ct, tag []byte) ([]byte, error) {
	mac := c.suite.MAC.New(c.keys.MAC)
	mac.Write(header)
	mac.Write(ct)
	if !crypto.HMACEqual(mac.Sum(nil), tag) {
		return nil, ErrMACMismatch
	}

	seq := binary.BigEndian.Uint64(header[:SequenceSize])
	if err := c.counter.Expect(seq); err != nil {
		if err == ErrSequenceMismatch {
			return nil, fmt.Errorf("%w: got %d want %d", ErrSequenceMismatch, seq, c.counter.Current())
		}
		return nil, err
	}

	c.dec.CryptBlocks(ct, ct)

	trueLen := int(binary.BigEndian.Uint16(ct[:TrueLengthSize]))
	padLen := len(ct) - TrueLengthSize - trueLen
	if padLen < 0 || padLen >= c.suite.Cipher.BlockSize() {
		crypto.Zero(ct)
		return nil, fmt.Errorf("%w: declared %d bytes in %d-byte block", ErrLengthMismatch, trueLen, len(ct))
	}

	if err := c.counter.Advance(); err != nil {
		return nil, err
	}

	plaintext := make([]byte, trueLen)
	copy(plaintext, ct[TrueLengthSize:TrueLengthSize+trueLen])
	crypto.Zero(ct)
	return plaintext, nil
}

// Rekey replaces the direction keys with
//
//	HKDF-SHA256(ikm = Enc || MAC, salt = IV, info = label || seq)
//
// split into a new IV, cipher key and MAC key, and restarts CBC chaining
// from the new IV. Both peers call Rekey at the same sequence number.
func (c *Codec) Rekey(label string, seq uint64) error {
	if c.closed {
		return ErrCodecClosed
	}
	info := make([]byte, len(label)+SequenceSize)
	copy(info, label)
	binary.BigEndian.PutUint64(info[len(label):], seq)

	ikm := make([]byte, 0, len(c.keys.Enc)+len(c.keys.MAC))
	ikm = append(ikm, c.keys.Enc...)
	ikm = append(ikm, c.keys.MAC...)
	defer crypto.Zero(ikm)

	ivLen, encLen, macLen := len(c.keys.IV), len(c.keys.Enc), len(c.keys.MAC)
	material, err := crypto.HKDFSHA256(ikm, c.keys.IV, info, ivLen+encLen+macLen)
	if err != nil {
		return err
	}

	c.keys.Zero()
	c.keys = DirectionKeys{
		IV:  material[:ivLen],
		Enc: material[ivLen : ivLen+encLen],
		MAC: material[ivLen+encLen:],
	}
	return c.initModes()
}

// Zero wipes the keys. The codec is unusable afterwards.
func (c *Codec) Zero() {
	c.keys.Zero()
	c.enc = nil
	c.dec = nil
	c.closed = true
}
