package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/message"
)

// RekeyLabel prefixes the HKDF info string used by CounterPolicyRekey.
const RekeyLabel = "dacgate rekey"

// DefaultSequenceLimit allows every sequence number the counter can hand out.
const DefaultSequenceLimit uint64 = math.MaxUint64

// SecureContext holds the state of an established session: role, keys,
// one codec per direction and the counter policy.
//
// Seal and Open may be called from different goroutines; each direction is
// serialized separately.
type SecureContext struct {
	role    Role
	suite   *crypto.Suite
	keys    Keys
	policy  CounterPolicy
	limit   uint64
	binding []byte

	sendMu sync.Mutex
	send   *message.Codec

	recvMu sync.Mutex
	recv   *message.Codec

	mu               sync.RWMutex
	sessionTimestamp time.Time // last send or receive
	activeTimestamp  time.Time // last receive
	rekeys           int
	closed           bool
}

// SecureContextConfig is used to create a secure context after the
// handshake.
type SecureContextConfig struct {
	Role  Role
	Suite *crypto.Suite

	// Keys are copied; the caller wipes its own copy.
	Keys Keys

	// Rand supplies frame padding. Defaults to crypto/rand.
	Rand io.Reader

	CounterPolicy CounterPolicy

	// SequenceLimit is the number of frames per direction before the policy
	// applies. Zero means DefaultSequenceLimit.
	SequenceLimit uint64
}

// NewSecureContext creates a secure context. The client sends with the
// client-to-server keys and receives with the server-to-client keys; the
// server does the opposite.
func NewSecureContext(config SecureContextConfig) (*SecureContext, error) {
	if !config.Role.IsValid() {
		return nil, ErrInvalidRole
	}
	if !config.CounterPolicy.IsValid() {
		return nil, ErrInvalidPolicy
	}
	if err := config.Suite.Validate(); err != nil {
		return nil, err
	}
	if config.Rand == nil {
		config.Rand = rand.Reader
	}
	if config.SequenceLimit == 0 {
		config.SequenceLimit = DefaultSequenceLimit
	}

	keys := config.Keys.Clone()
	send, err := message.NewCodec(config.Suite, keys.Send(config.Role), config.Rand)
	if err != nil {
		keys.Zero()
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	recv, err := message.NewCodec(config.Suite, keys.Receive(config.Role), config.Rand)
	if err != nil {
		send.Zero()
		keys.Zero()
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	now := time.Now()
	return &SecureContext{
		role:             config.Role,
		suite:            config.Suite,
		keys:             keys,
		policy:           config.CounterPolicy,
		limit:            config.SequenceLimit,
		binding:          keys.Binding(config.Suite),
		send:             send,
		recv:             recv,
		sessionTimestamp: now,
		activeTimestamp:  now,
	}, nil
}

// Role returns the local role.
func (s *SecureContext) Role() Role {
	return s.role
}

// Suite returns the cipher suite.
func (s *SecureContext) Suite() *crypto.Suite {
	return s.suite
}

// CounterPolicy returns the exhaustion policy.
func (s *SecureContext) CounterPolicy() CounterPolicy {
	return s.policy
}

// Binding returns the key binding digest computed when the context was
// created. It stays valid after ZeroizeKeys.
func (s *SecureContext) Binding() []byte {
	return append([]byte(nil), s.binding...)
}

// MaxPayload returns the largest plaintext Seal accepts.
func (s *SecureContext) MaxPayload() int {
	return message.MaxPayloadSize
}

// Seal protects plaintext as the next outgoing frame.
func (s *SecureContext) Seal(plaintext []byte) ([]byte, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.send == nil {
		return nil, ErrContextClosed
	}
	seq := s.send.Sequence()
	if err := s.checkLimit(seq); err != nil {
		return nil, err
	}

	frame, err := s.send.Encode(plaintext)
	if err != nil {
		return nil, err
	}
	if err := s.maybeRekey(s.send, seq); err != nil {
		return nil, err
	}

	s.markActivity(false)
	return frame, nil
}

// Open reads and authenticates the next incoming frame from r.
// Transport errors from r are returned unchanged.
func (s *SecureContext) Open(r io.Reader) ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if s.recv == nil {
		return nil, ErrContextClosed
	}
	seq := s.recv.Sequence()
	if err := s.checkLimit(seq); err != nil {
		return nil, err
	}

	plaintext, err := s.recv.ReadFrame(r)
	if err != nil {
		return nil, err
	}
	if err := s.maybeRekey(s.recv, seq); err != nil {
		return nil, err
	}

	s.markActivity(true)
	return plaintext, nil
}

// checkLimit enforces CounterPolicyFail. Sequence numbers start at 1, so
// seq > limit means limit frames have already been protected.
func (s *SecureContext) checkLimit(seq uint64) error {
	if s.policy == CounterPolicyFail && seq > s.limit {
		return fmt.Errorf("%w: limit of %d frames reached", message.ErrCounterExhausted, s.limit)
	}
	return nil
}

func (s *SecureContext) maybeRekey(codec *message.Codec, seq uint64) error {
	if s.policy != CounterPolicyRekey || seq%s.limit != 0 {
		return nil
	}
	if err := codec.Rekey(RekeyLabel, seq); err != nil {
		return err
	}
	s.mu.Lock()
	s.rekeys++
	s.mu.Unlock()
	return nil
}

// SendSequence returns the sequence number of the next outgoing frame.
func (s *SecureContext) SendSequence() uint64 {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.send == nil {
		return 0
	}
	return s.send.Sequence()
}

// RecvSequence returns the sequence number expected on the next incoming
// frame.
func (s *SecureContext) RecvSequence() uint64 {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()
	if s.recv == nil {
		return 0
	}
	return s.recv.Sequence()
}

// Rekeys returns how many direction rekeys have happened.
func (s *SecureContext) Rekeys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rekeys
}

func (s *SecureContext) markActivity(isReceive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.sessionTimestamp = now
	if isReceive {
		s.activeTimestamp = now
	}
}

// SessionTimestamp returns the time of the last frame in either direction.
func (s *SecureContext) SessionTimestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionTimestamp
}

// ActiveTimestamp returns the time of the last received frame.
func (s *SecureContext) ActiveTimestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTimestamp
}

// IsCounterError reports whether err came from sequence counter exhaustion.
func IsCounterError(err error) bool {
	return errors.Is(err, message.ErrCounterExhausted)
}

// ZeroizeKeys wipes the session keys and both codecs. Further Seal and
// Open calls return ErrContextClosed.
func (s *SecureContext) ZeroizeKeys() {
	s.sendMu.Lock()
	if s.send != nil {
		s.send.Zero()
		s.send = nil
	}
	s.sendMu.Unlock()

	s.recvMu.Lock()
	if s.recv != nil {
		s.recv.Zero()
		s.recv = nil
	}
	s.recvMu.Unlock()

	s.mu.Lock()
	s.keys.Zero()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether ZeroizeKeys has been called.
func (s *SecureContext) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
