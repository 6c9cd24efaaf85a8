package gateway

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DecisionSize is the wire size of a decision code.
const DecisionSize = 8

// Decision is the outcome of a command, sent as 8 big-endian bytes.
type Decision uint64

// Decision codes.
const (
	DecisionGranted        Decision = 0x00000000_00000001
	DecisionDenied         Decision = 0x00000000_00000002
	DecisionUnknownCommand Decision = 0x00000000_00000003
	DecisionBadRequest     Decision = 0x00000000_00000004
	DecisionError          Decision = 0x00000000_000000FF
)

// ErrInvalidDecision is returned by ParseDecision for a reply that is not
// a decision code.
var ErrInvalidDecision = errors.New("gateway: invalid decision code")

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionGranted:
		return "Granted"
	case DecisionDenied:
		return "Denied"
	case DecisionUnknownCommand:
		return "UnknownCommand"
	case DecisionBadRequest:
		return "BadRequest"
	case DecisionError:
		return "Error"
	default:
		return fmt.Sprintf("Decision(%#x)", uint64(d))
	}
}

// Bytes encodes the decision.
func (d Decision) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(d))
}

// ParseDecision decodes an 8-byte decision code.
func ParseDecision(b []byte) (Decision, error) {
	if len(b) != DecisionSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidDecision, len(b))
	}
	return Decision(binary.BigEndian.Uint64(b)), nil
}
