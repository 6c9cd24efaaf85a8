package securechannel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/message"
	"github.com/backkem/dacgate/pkg/session"
	"github.com/pion/logging"
)

// Operation names used in Error.Op.
const (
	opInit        = "init"
	opSetIdentity = "set identity"
	opSend        = "send"
	opReceive     = "receive"
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Session is one end of a secure channel over a single transport.
//
// A Session is created in StateInit, authenticates once and is then used
// for Send and Receive until it fails or is released. A failed session is
// never retried; release it and create a new one. One Send and one Receive
// may run concurrently.
type Session struct {
	config Config
	log    logging.LeveledLogger

	records *message.RecordReader
	writer  *message.RecordWriter

	authMu sync.Mutex // held for the whole handshake
	sendMu sync.Mutex // orders frame writes

	mu       sync.Mutex
	state    State
	released bool
	identity *crypto.KeyPair
	hs       *handshake
	sc       *session.SecureContext
	peer     []byte
	failure  error
}

// New creates a session in StateInit.
func New(config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, newError(KindConfiguration, opInit, err)
	}
	config.applyDefaults()

	s := &Session{
		config:  config,
		records: message.NewRecordReader(config.Transport),
		writer:  message.NewRecordWriter(config.Transport),
		state:   StateInit,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("securechannel")
	}
	if config.Identity != nil {
		if err := s.setIdentityLocked(*config.Identity); err != nil {
			err.Op = opInit
			return nil, err
		}
	}
	return s, nil
}

// Role returns the local role.
func (s *Session) Role() session.Role {
	return s.config.Role
}

// Suite returns the cipher suite.
func (s *Session) Suite() *crypto.Suite {
	return s.config.Suite
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the session, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// SetIdentity sets the long-term identity key pair. It must be called
// before Authenticate; afterwards it returns a KindConfiguration error.
// The key pair is copied.
func (s *Session) SetIdentity(kp crypto.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(opSetIdentity); err != nil {
		return err
	}
	if s.state != StateInit || s.hs != nil {
		return newError(KindConfiguration, opSetIdentity, ErrHandshakeStarted)
	}
	if err := s.setIdentityLocked(kp); err != nil {
		return err
	}
	return nil
}

func (s *Session) setIdentityLocked(kp crypto.KeyPair) *Error {
	sig := s.config.Suite.Signature
	pub, err := sig.PublicKey(kp.Private)
	if err != nil {
		return newError(KindConfiguration, opSetIdentity, fmt.Errorf("%w: %v", ErrIdentityMismatch, err))
	}
	if !bytes.Equal(pub, kp.Public) {
		return newError(KindConfiguration, opSetIdentity, ErrIdentityMismatch)
	}

	if s.identity != nil {
		s.identity.Zero()
	}
	clone := kp.Clone()
	s.identity = &clone
	return nil
}

// usableLocked rejects every operation on a released or failed session.
func (s *Session) usableLocked(op string) *Error {
	if s.released {
		return newError(KindConfiguration, op, ErrReleased)
	}
	if s.state == StateFailed {
		return newError(KindConfiguration, op, fmt.Errorf("%w: %v", ErrSessionFailed, s.failure))
	}
	return nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		s.state = state
	}
}

func (s *Session) fail(err *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		s.state = StateFailed
		s.failure = err
	}
}

// Authenticate runs the handshake. On success the session is ready for
// Send and Receive; on failure it is failed for good.
func (s *Session) Authenticate(ctx context.Context) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()

	hs, err := s.beginHandshake(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.HandshakeTimeout)
	defer cancel()
	release := bindContext(ctx, s.deadlineFunc())
	defer release()

	started := time.Now()
	var keys session.Keys
	if s.config.Role == session.RoleClient {
		keys, err = s.runClient(ctx, hs)
	} else {
		keys, err = s.runServer(ctx, hs)
	}
	if err != nil {
		return s.failHandshake(hs, err)
	}

	sc, err := session.NewSecureContext(session.SecureContextConfig{
		Role:          s.config.Role,
		Suite:         s.config.Suite,
		Keys:          keys,
		Rand:          s.config.Rand,
		CounterPolicy: s.config.CounterPolicy,
		SequenceLimit: s.config.SequenceLimit,
	})
	keys.Zero()
	if err != nil {
		return s.failHandshake(hs, newError(KindConfiguration, opAuthenticate, err))
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		sc.ZeroizeKeys()
		return newError(KindConfiguration, opAuthenticate, ErrReleased)
	}
	s.sc = sc
	s.peer = append([]byte(nil), hs.peerIdentity...)
	s.hs = nil
	s.state = StateDone
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infof("%s handshake complete in %v: peer %s, suite %s",
			s.config.Role, time.Since(started).Round(time.Millisecond),
			crypto.ShortFingerprint(hs.peerIdentity), s.config.Suite.Name())
	}
	return nil
}

func (s *Session) beginHandshake(ctx context.Context) (*handshake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(opAuthenticate); err != nil {
		return nil, err
	}
	if s.state != StateInit || s.hs != nil {
		return nil, newError(KindConfiguration, opAuthenticate, ErrHandshakeStarted)
	}
	if err := ctx.Err(); err != nil {
		e := newError(KindTransport, opAuthenticate, err)
		s.state = StateFailed
		s.failure = e
		return nil, e
	}

	if s.identity == nil {
		if !s.config.EphemeralIdentity {
			return nil, newError(KindConfiguration, opAuthenticate, ErrIdentityRequired)
		}
		kp, err := s.config.Suite.Signature.GenerateKey(s.config.Rand)
		if err != nil {
			return nil, newError(KindConfiguration, opAuthenticate, fmt.Errorf("%w: identity: %v", ErrPrimitiveFailure, err))
		}
		s.identity = &kp
		if s.log != nil {
			s.log.Warnf("using ephemeral identity %s; peers cannot pin it", crypto.ShortFingerprint(kp.Public))
		}
	}

	s.hs = newHandshake(s.config.Role, s.config.Suite, *s.identity, s.config.Verifier, s.config.Rand)
	s.state = StateKeyExchange
	return s.hs, nil
}

func (s *Session) runClient(ctx context.Context, hs *handshake) (session.Keys, error) {
	hello, err := hs.start()
	if err != nil {
		return session.Keys{}, err
	}
	if err := s.writeRecord(ctx, hello); err != nil {
		return session.Keys{}, err
	}

	body, err := s.readRecord(ctx)
	if err != nil {
		return session.Keys{}, err
	}
	s.setState(StateVerify)
	reply, err := hs.handleServerAuth(body)
	if err != nil {
		return session.Keys{}, err
	}
	if err := s.writeRecord(ctx, reply); err != nil {
		return session.Keys{}, err
	}

	s.setState(StateFinish)
	return hs.finish()
}

func (s *Session) runServer(ctx context.Context, hs *handshake) (session.Keys, error) {
	body, err := s.readRecord(ctx)
	if err != nil {
		return session.Keys{}, err
	}
	reply, err := hs.handleClientHello(body)
	if err != nil {
		return session.Keys{}, err
	}
	if err := s.writeRecord(ctx, reply); err != nil {
		return session.Keys{}, err
	}

	s.setState(StateVerify)
	body, err = s.readRecord(ctx)
	if err != nil {
		return session.Keys{}, err
	}
	if err := hs.handleClientAuth(body); err != nil {
		return session.Keys{}, err
	}

	s.setState(StateFinish)
	return hs.finish()
}

func (s *Session) readRecord(ctx context.Context) ([]byte, error) {
	body, err := s.records.ReadRecord()
	if err != nil {
		return nil, wrapIO(ctx, opAuthenticate, err)
	}
	return body, nil
}

func (s *Session) writeRecord(ctx context.Context, body []byte) error {
	if err := s.writer.WriteRecord(body); err != nil {
		return wrapIO(ctx, opAuthenticate, err)
	}
	return nil
}

// failHandshake tells the peer why when that is useful, wipes the
// handshake and fails the session.
func (s *Session) failHandshake(hs *handshake, err error) error {
	e := classify(opAuthenticate, err)
	if body := abortFor(e); body != nil {
		if werr := s.writer.WriteRecord(body); werr != nil && s.log != nil {
			s.log.Debugf("failed to send abort: %v", werr)
		}
	}

	hs.wipe()
	s.mu.Lock()
	s.hs = nil
	s.mu.Unlock()
	s.fail(e)

	if s.log != nil {
		if IsAttackSignal(e) {
			s.log.Warnf("%s handshake failed: %v", s.config.Role, e)
		} else {
			s.log.Debugf("%s handshake failed: %v", s.config.Role, e)
		}
	}
	return e
}

// ready returns the secure context of a session in StateDone.
func (s *Session) ready(op string) (*session.SecureContext, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(op); err != nil {
		return nil, err
	}
	if s.state != StateDone {
		return nil, newError(KindConfiguration, op, fmt.Errorf("%w: state %s", ErrNotReady, s.state))
	}
	return s.sc, nil
}

func (s *Session) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.IOTimeout > 0 {
		return context.WithTimeout(ctx, s.config.IOTimeout)
	}
	return context.WithCancel(ctx)
}

// Send protects p as one frame and writes it. A payload larger than
// MaxPayload is rejected without failing the session; every other error
// is fatal.
func (s *Session) Send(ctx context.Context, p []byte) error {
	sc, cerr := s.ready(opSend)
	if cerr != nil {
		return cerr
	}
	if len(p) > sc.MaxPayload() {
		return newError(KindConfiguration, opSend, fmt.Errorf("%w: %d bytes", message.ErrPayloadTooLarge, len(p)))
	}
	if err := ctx.Err(); err != nil {
		e := newError(KindTransport, opSend, err)
		s.fail(e)
		return e
	}

	ctx, cancel := s.ioContext(ctx)
	defer cancel()

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	frame, err := sc.Seal(p)
	if err != nil {
		e := classify(opSend, err)
		s.fail(e)
		return e
	}

	var set func(time.Time) error
	if d, ok := s.config.Transport.(writeDeadliner); ok {
		set = d.SetWriteDeadline
	}
	release := bindContext(ctx, set)
	_, err = s.config.Transport.Write(frame)
	release()
	if err != nil {
		e := wrapIO(ctx, opSend, err)
		s.fail(e)
		return e
	}
	return nil
}

// Receive reads and authenticates the next frame. Any error is fatal.
func (s *Session) Receive(ctx context.Context) ([]byte, error) {
	sc, cerr := s.ready(opReceive)
	if cerr != nil {
		return nil, cerr
	}
	if err := ctx.Err(); err != nil {
		e := newError(KindTransport, opReceive, err)
		s.fail(e)
		return nil, e
	}

	ctx, cancel := s.ioContext(ctx)
	defer cancel()

	var set func(time.Time) error
	if d, ok := s.config.Transport.(readDeadliner); ok {
		set = d.SetReadDeadline
	}
	release := bindContext(ctx, set)
	p, err := sc.Open(s.config.Transport)
	release()
	if err != nil {
		e := wrapIO(ctx, opReceive, err)
		s.fail(e)
		if s.log != nil && IsAttackSignal(e) {
			s.log.Warnf("rejected frame from %s: %v", crypto.ShortFingerprint(s.PeerIdentity()), e)
		}
		return nil, e
	}
	return p, nil
}

// PeerIdentity returns the authenticated peer identity public key, or nil
// before the handshake completes.
func (s *Session) PeerIdentity() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.peer...)
}

// PeerFingerprint returns the fingerprint of PeerIdentity, or "".
func (s *Session) PeerFingerprint() string {
	peer := s.PeerIdentity()
	if len(peer) == 0 {
		return ""
	}
	return crypto.Fingerprint(peer)
}

// Binding returns a digest of the session keys that is identical on both
// ends, or nil before the handshake completes.
func (s *Session) Binding() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sc == nil {
		return nil
	}
	return s.sc.Binding()
}

// Sequences returns the next outgoing and expected incoming sequence
// numbers, or zeros before the handshake completes.
func (s *Session) Sequences() (send, recv uint64) {
	s.mu.Lock()
	sc := s.sc
	s.mu.Unlock()
	if sc == nil {
		return 0, 0
	}
	return sc.SendSequence(), sc.RecvSequence()
}

// Release zeroes all key material: identity private key, handshake
// secrets, transcripts and session keys. Blocked operations are
// interrupted when the transport supports deadlines. Every later call
// returns ErrReleased. The transport is not closed.
func (s *Session) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	if d, ok := s.config.Transport.(deadliner); ok {
		_ = d.SetDeadline(time.Unix(1, 0))
	}

	// Wait for a running handshake to observe the deadline.
	s.authMu.Lock()
	s.mu.Lock()
	hs, sc, identity := s.hs, s.sc, s.identity
	s.hs, s.sc, s.identity = nil, nil, nil
	s.mu.Unlock()
	s.authMu.Unlock()

	if hs != nil {
		hs.wipe()
	}
	if sc != nil {
		sc.ZeroizeKeys()
	}
	if identity != nil {
		identity.Zero()
	}
}

func (s *Session) deadlineFunc() func(time.Time) error {
	if d, ok := s.config.Transport.(deadliner); ok {
		return d.SetDeadline
	}
	return nil
}

// bindContext applies ctx's deadline to the transport and moves it into
// the past when ctx is cancelled, interrupting blocked I/O. The returned
// func clears the deadline and must be called when the I/O is done.
func bindContext(ctx context.Context, set func(time.Time) error) func() {
	if set == nil {
		return func() {}
	}
	if d, ok := ctx.Deadline(); ok {
		_ = set(d)
	}

	var (
		mu   sync.Mutex
		done bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !done {
			_ = set(time.Unix(1, 0))
		}
	})
	return func() {
		stop()
		mu.Lock()
		defer mu.Unlock()
		done = true
		_ = set(time.Time{})
	}
}

// wrapIO classifies an I/O error and records a context cancellation or
// deadline that caused it.
func wrapIO(ctx context.Context, op string, err error) *Error {
	e := classify(op, err)
	if e.Kind == KindTransport {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			e.Err = fmt.Errorf("%w: %w", ctxErr, err)
		}
	}
	return e
}
