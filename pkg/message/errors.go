package message

import "errors"

// Frame codec errors.
var (
	// ErrFrameTooShort is returned when a buffer ends before a complete frame.
	ErrFrameTooShort = errors.New("message: frame too short")

	// ErrInvalidLength is returned when the ciphertext length field is zero or
	// not a multiple of the cipher block size.
	ErrInvalidLength = errors.New("message: invalid ciphertext length field")

	// ErrPayloadTooLarge is returned when a plaintext does not fit in a frame.
	ErrPayloadTooLarge = errors.New("message: payload exceeds maximum frame size")

	// ErrMACMismatch is returned when a frame fails authentication.
	ErrMACMismatch = errors.New("message: MAC mismatch")

	// ErrSequenceMismatch is returned when an authenticated frame carries a
	// sequence number other than the expected next one (replay or reorder).
	ErrSequenceMismatch = errors.New("message: sequence number mismatch")

	// ErrLengthMismatch is returned when the decrypted true-length field does
	// not fit the decrypted buffer.
	ErrLengthMismatch = errors.New("message: plaintext length mismatch")

	// ErrCounterExhausted is returned when a sequence counter has no values left.
	ErrCounterExhausted = errors.New("message: sequence counter exhausted")

	// ErrInvalidKey is returned when a direction key has the wrong size.
	ErrInvalidKey = errors.New("message: invalid key length")

	// ErrCodecClosed is returned after a codec's keys have been wiped.
	ErrCodecClosed = errors.New("message: codec closed")

	// ErrRecordTooLarge is returned when a handshake record exceeds
	// MaxRecordSize.
	ErrRecordTooLarge = errors.New("message: record too large")

	// ErrEmptyRecord is returned for a zero-length handshake record.
	ErrEmptyRecord = errors.New("message: empty record")
)

// Wire format constants.
const (
	// SequenceSize is the width of the frame sequence number.
	SequenceSize = 8

	// LengthSize is the width of the ciphertext length field.
	LengthSize = 2

	// HeaderSize is SequenceSize + LengthSize.
	HeaderSize = SequenceSize + LengthSize

	// TrueLengthSize is the width of the plaintext length prefix inside the
	// encrypted block.
	TrueLengthSize = 2

	// MaxCiphertextSize is the largest block-aligned ciphertext the 16-bit
	// length field can describe for a 16-byte block cipher.
	MaxCiphertextSize = 65520

	// MaxPayloadSize is the largest plaintext a single frame carries.
	MaxPayloadSize = MaxCiphertextSize - TrueLengthSize

	// RecordLengthSize is the width of the handshake record length prefix.
	RecordLengthSize = 2

	// MaxRecordSize bounds a single handshake record body.
	MaxRecordSize = 4096
)
