package message

import (
	"encoding/binary"
	"fmt"
	"io"
)

// RecordWriter writes handshake records: a 2-byte big-endian length
// followed by the record body.
type RecordWriter struct {
	w io.Writer
}

// NewRecordWriter creates a record writer on w.
func NewRecordWriter(w io.Writer) *RecordWriter {
	return &RecordWriter{w: w}
}

// WriteRecord writes body as one record. Prefix and body go out in a single
// Write call.
func (rw *RecordWriter) WriteRecord(body []byte) error {
	if len(body) == 0 {
		return ErrEmptyRecord
	}
	if len(body) > MaxRecordSize {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(body))
	}
	buf := make([]byte, RecordLengthSize+len(body))
	binary.BigEndian.PutUint16(buf[:RecordLengthSize], uint16(len(body)))
	copy(buf[RecordLengthSize:], body)
	_, err := rw.w.Write(buf)
	return err
}

// RecordReader reads handshake records written by RecordWriter.
type RecordReader struct {
	r io.Reader
}

// NewRecordReader creates a record reader on r.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: r}
}

// ReadRecord reads one record body. Errors from the underlying reader are
// returned unchanged; an oversized or empty length prefix is reported before
// any body bytes are read.
func (rr *RecordReader) ReadRecord() ([]byte, error) {
	var prefix [RecordLengthSize]byte
	if _, err := io.ReadFull(rr.r, prefix[:]); err != nil {
		return nil, err
	}

	n := int(binary.BigEndian.Uint16(prefix[:]))
	if n == 0 {
		return nil, ErrEmptyRecord
	}
	if n > MaxRecordSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(rr.r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}
