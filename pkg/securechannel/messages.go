package securechannel

import (
	"fmt"

	"github.com/backkem/dacgate/pkg/crypto"
	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType identifies a handshake message.
type MessageType uint64

// Handshake message types.
const (
	MessageClientHello MessageType = 1
	MessageServerAuth  MessageType = 2
	MessageClientAuth  MessageType = 3
	MessageAbort       MessageType = 4
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageClientHello:
		return "ClientHello"
	case MessageServerAuth:
		return "ServerAuth"
	case MessageClientAuth:
		return "ClientAuth"
	case MessageAbort:
		return "Abort"
	default:
		return fmt.Sprintf("MessageType(%d)", uint64(t))
	}
}

// AbortReason tells the peer why the handshake was abandoned.
type AbortReason uint64

// Abort reasons.
const (
	AbortProtocol       AbortReason = 1
	AbortAuthentication AbortReason = 2
)

// String returns the reason name.
func (r AbortReason) String() string {
	switch r {
	case AbortProtocol:
		return "protocol"
	case AbortAuthentication:
		return "authentication"
	default:
		return fmt.Sprintf("AbortReason(%d)", uint64(r))
	}
}

// Field numbers of the handshake message encoding.
const (
	fieldType        protowire.Number = 1
	fieldIdentity    protowire.Number = 2
	fieldKeyExchange protowire.Number = 3
	fieldSignature   protowire.Number = 4
	fieldReason      protowire.Number = 5
)

// Message is a handshake message. A nil byte field is absent.
//
//	ClientHello: KeyExchange
//	ServerAuth:  Identity, KeyExchange, Signature
//	ClientAuth:  Identity, Signature
//	Abort:       Reason
type Message struct {
	Type        MessageType
	Identity    []byte
	KeyExchange []byte
	Signature   []byte
	Reason      AbortReason
}

// Marshal encodes the message body.
func (m *Message) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	b = appendBytesField(b, fieldIdentity, m.Identity)
	b = appendBytesField(b, fieldKeyExchange, m.KeyExchange)
	b = appendBytesField(b, fieldSignature, m.Signature)
	if m.Reason != 0 {
		b = protowire.AppendTag(b, fieldReason, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Reason))
	}
	return b
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// UnmarshalMessage decodes a message body. Unknown, duplicate and
// wrongly typed fields are rejected; field sizes are checked separately by
// Validate.
func UnmarshalMessage(b []byte) (*Message, error) {
	m := &Message{}
	var seen uint32
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		if num < fieldType || num > fieldReason {
			return nil, fmt.Errorf("%w: unknown field %d", ErrMalformedMessage, num)
		}
		if seen&(1<<num) != 0 {
			return nil, fmt.Errorf("%w: duplicate field %d", ErrMalformedMessage, num)
		}
		seen |= 1 << num

		switch num {
		case fieldType, fieldReason:
			if typ != protowire.VarintType {
				return nil, fmt.Errorf("%w: field %d has wire type %d", ErrMalformedMessage, num, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldType {
				m.Type = MessageType(v)
			} else {
				if v == 0 {
					return nil, fmt.Errorf("%w: zero abort reason", ErrMalformedMessage)
				}
				m.Reason = AbortReason(v)
			}

		default:
			if typ != protowire.BytesType {
				return nil, fmt.Errorf("%w: field %d has wire type %d", ErrMalformedMessage, num, typ)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
			}
			b = b[n:]
			field := append([]byte{}, v...)
			switch num {
			case fieldIdentity:
				m.Identity = field
			case fieldKeyExchange:
				m.KeyExchange = field
			case fieldSignature:
				m.Signature = field
			}
		}
	}

	if seen&(1<<fieldType) == 0 {
		return nil, fmt.Errorf("%w: missing message type", ErrMalformedMessage)
	}
	return m, nil
}

// Validate checks that exactly the fields of the message type are present
// with the sizes the suite dictates.
func (m *Message) Validate(suite *crypto.Suite) error {
	kxSize := suite.KeyAgreement.PublicKeySize()
	idSize := suite.Signature.PublicKeySize()
	sigSize := suite.Signature.SignatureSize()

	var err error
	switch m.Type {
	case MessageClientHello:
		err = firstError(
			require("key exchange", m.KeyExchange, kxSize),
			forbid("identity", m.Identity),
			forbid("signature", m.Signature),
			forbidReason(m.Reason),
		)
	case MessageServerAuth:
		err = firstError(
			require("identity", m.Identity, idSize),
			require("key exchange", m.KeyExchange, kxSize),
			require("signature", m.Signature, sigSize),
			forbidReason(m.Reason),
		)
	case MessageClientAuth:
		err = firstError(
			require("identity", m.Identity, idSize),
			require("signature", m.Signature, sigSize),
			forbid("key exchange", m.KeyExchange),
			forbidReason(m.Reason),
		)
	case MessageAbort:
		err = firstError(
			forbid("identity", m.Identity),
			forbid("key exchange", m.KeyExchange),
			forbid("signature", m.Signature),
		)
		if err == nil && m.Reason == 0 {
			err = fmt.Errorf("%w: abort without reason", ErrMalformedMessage)
		}
	default:
		err = fmt.Errorf("%w: unknown message type %d", ErrMalformedMessage, uint64(m.Type))
	}
	return err
}

func require(name string, v []byte, size int) error {
	if v == nil {
		return fmt.Errorf("%w: missing %s", ErrMalformedMessage, name)
	}
	if len(v) != size {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrMalformedMessage, name, len(v), size)
	}
	return nil
}

func forbid(name string, v []byte) error {
	if v != nil {
		return fmt.Errorf("%w: unexpected %s", ErrMalformedMessage, name)
	}
	return nil
}

func forbidReason(r AbortReason) error {
	if r != 0 {
		return fmt.Errorf("%w: unexpected abort reason", ErrMalformedMessage)
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
