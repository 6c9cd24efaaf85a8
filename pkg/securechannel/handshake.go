package securechannel

import (
	"errors"
	"fmt"
	"io"

	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/session"
	"github.com/backkem/dacgate/pkg/trust"
)

const opAuthenticate = "authenticate"

// handshake is the message-level state machine, independent of transport.
//
// Client:
//  1. start() -> ClientHello
//  2. handleServerAuth(ServerAuth) -> ClientAuth
//  3. finish() -> keys
//
// Server:
//  1. handleClientHello(ClientHello) -> ServerAuth
//  2. handleClientAuth(ClientAuth)
//  3. finish() -> keys
//
// Every method returns a classified *Error on failure and leaves the
// handshake in StateFailed.
type handshake struct {
	role     session.Role
	suite    *crypto.Suite
	identity crypto.KeyPair
	verifier trust.Verifier
	rand     io.Reader

	state State

	ephemeral    crypto.KeyPair
	clientKX     []byte
	serverKX     []byte
	shared       []byte
	th1          []byte
	th2          []byte
	peerIdentity []byte
}

func newHandshake(role session.Role, suite *crypto.Suite, identity crypto.KeyPair, verifier trust.Verifier, rand io.Reader) *handshake {
	return &handshake{
		role:     role,
		suite:    suite,
		identity: identity,
		verifier: verifier,
		rand:     rand,
		state:    StateInit,
	}
}

func (h *handshake) fail(kind Kind, err error) *Error {
	h.state = StateFailed
	return newError(kind, opAuthenticate, err)
}

func (h *handshake) expect(role session.Role, state State) *Error {
	if h.role != role || h.state != state {
		return h.fail(KindConfiguration, fmt.Errorf("%w: %s in state %s", ErrInvalidState, h.role, h.state))
	}
	return nil
}

// parse decodes and validates a received message of type want. An Abort
// from the peer becomes the matching error.
func (h *handshake) parse(body []byte, want MessageType) (*Message, *Error) {
	msg, err := UnmarshalMessage(body)
	if err != nil {
		return nil, h.fail(KindProtocol, err)
	}
	if msg.Type == MessageAbort {
		if err := msg.Validate(h.suite); err != nil {
			return nil, h.fail(KindProtocol, err)
		}
		if msg.Reason == AbortAuthentication {
			return nil, h.fail(KindAuthentication, ErrPeerRejected)
		}
		return nil, h.fail(KindProtocol, fmt.Errorf("%w: %s", ErrPeerAborted, msg.Reason))
	}
	if msg.Type != want {
		return nil, h.fail(KindProtocol, fmt.Errorf("%w: got %s want %s", ErrUnexpectedMessage, msg.Type, want))
	}
	if err := msg.Validate(h.suite); err != nil {
		return nil, h.fail(KindProtocol, err)
	}
	return msg, nil
}

func (h *handshake) generateEphemeral() *Error {
	eph, err := h.suite.KeyAgreement.GenerateKey(h.rand)
	if err != nil {
		return h.fail(KindConfiguration, fmt.Errorf("%w: ephemeral key: %v", ErrPrimitiveFailure, err))
	}
	h.ephemeral = eph
	return nil
}

func (h *handshake) agree(peerKX []byte) *Error {
	shared, err := h.suite.KeyAgreement.Agree(h.ephemeral.Private, peerKX)
	if err != nil {
		return h.fail(KindProtocol, err)
	}
	h.shared = shared
	return nil
}

func (h *handshake) sign(th []byte) ([]byte, *Error) {
	sig, err := h.suite.Signature.Sign(h.rand, h.identity.Private, th)
	if err != nil {
		return nil, h.fail(KindConfiguration, fmt.Errorf("%w: sign: %v", ErrPrimitiveFailure, err))
	}
	return sig, nil
}

// checkIdentity consults the verifier. It fails closed.
func (h *handshake) checkIdentity(pub []byte) *Error {
	if h.verifier == nil {
		return h.fail(KindAuthentication, fmt.Errorf("%w: no verifier", ErrIdentityRejected))
	}
	if err := h.verifier.VerifyIdentity(pub); err != nil {
		return h.fail(KindAuthentication, fmt.Errorf("%w: %v", ErrIdentityRejected, err))
	}
	return nil
}

// checkSignature verifies the peer's signature over th. Verifiers that
// implement trust.Confirmer learn about the key only after it verifies.
func (h *handshake) checkSignature(pub, th, sig []byte) *Error {
	ok, err := h.suite.Signature.Verify(pub, th, sig)
	if err != nil {
		return h.fail(KindAuthentication, fmt.Errorf("%w: %v", ErrSignatureInvalid, err))
	}
	if !ok {
		return h.fail(KindAuthentication, ErrSignatureInvalid)
	}
	if c, isConfirmer := h.verifier.(trust.Confirmer); isConfirmer {
		if err := c.ConfirmIdentity(pub); err != nil {
			return h.fail(KindAuthentication, fmt.Errorf("%w: %v", ErrIdentityRejected, err))
		}
	}
	return nil
}

// start generates the ephemeral key pair and returns ClientHello.
func (h *handshake) start() ([]byte, error) {
	if err := h.expect(session.RoleClient, StateInit); err != nil {
		return nil, err
	}
	h.state = StateKeyExchange

	if err := h.generateEphemeral(); err != nil {
		return nil, err
	}
	h.clientKX = append([]byte(nil), h.ephemeral.Public...)

	msg := &Message{Type: MessageClientHello, KeyExchange: h.clientKX}
	return msg.Marshal(), nil
}

// handleClientHello answers ClientHello with ServerAuth, signing TH1.
func (h *handshake) handleClientHello(body []byte) ([]byte, error) {
	if err := h.expect(session.RoleServer, StateInit); err != nil {
		return nil, err
	}
	h.state = StateKeyExchange

	msg, perr := h.parse(body, MessageClientHello)
	if perr != nil {
		return nil, perr
	}
	h.clientKX = msg.KeyExchange

	if err := h.generateEphemeral(); err != nil {
		return nil, err
	}
	h.serverKX = append([]byte(nil), h.ephemeral.Public...)

	if err := h.agree(h.clientKX); err != nil {
		return nil, err
	}
	h.th1 = transcriptHash(h.suite, h.identity.Public, h.clientKX, h.serverKX, h.shared)

	sig, err := h.sign(h.th1)
	if err != nil {
		return nil, err
	}
	h.state = StateVerify

	reply := &Message{
		Type:        MessageServerAuth,
		Identity:    h.identity.Public,
		KeyExchange: h.serverKX,
		Signature:   sig,
	}
	return reply.Marshal(), nil
}

// handleServerAuth authenticates the server and returns ClientAuth,
// signing TH2.
func (h *handshake) handleServerAuth(body []byte) ([]byte, error) {
	if err := h.expect(session.RoleClient, StateKeyExchange); err != nil {
		return nil, err
	}
	h.state = StateVerify

	msg, perr := h.parse(body, MessageServerAuth)
	if perr != nil {
		return nil, perr
	}
	if err := h.checkIdentity(msg.Identity); err != nil {
		return nil, err
	}

	h.serverKX = msg.KeyExchange
	if err := h.agree(h.serverKX); err != nil {
		return nil, err
	}
	h.th1 = transcriptHash(h.suite, msg.Identity, h.clientKX, h.serverKX, h.shared)
	if err := h.checkSignature(msg.Identity, h.th1, msg.Signature); err != nil {
		return nil, err
	}
	h.peerIdentity = msg.Identity

	h.th2 = transcriptHash(h.suite, h.identity.Public, h.clientKX, h.serverKX, h.shared)
	sig, err := h.sign(h.th2)
	if err != nil {
		return nil, err
	}
	h.state = StateFinish

	reply := &Message{
		Type:      MessageClientAuth,
		Identity:  h.identity.Public,
		Signature: sig,
	}
	return reply.Marshal(), nil
}

// handleClientAuth authenticates the client against TH2.
func (h *handshake) handleClientAuth(body []byte) error {
	if err := h.expect(session.RoleServer, StateVerify); err != nil {
		return err
	}

	msg, perr := h.parse(body, MessageClientAuth)
	if perr != nil {
		return perr
	}
	if err := h.checkIdentity(msg.Identity); err != nil {
		return err
	}
	h.th2 = transcriptHash(h.suite, msg.Identity, h.clientKX, h.serverKX, h.shared)
	if err := h.checkSignature(msg.Identity, h.th2, msg.Signature); err != nil {
		return err
	}
	h.peerIdentity = msg.Identity
	h.state = StateFinish
	return nil
}

// finish derives the session keys from the shared secret and TH1, then
// wipes the handshake secrets.
func (h *handshake) finish() (session.Keys, error) {
	if h.state != StateFinish {
		return session.Keys{}, h.fail(KindConfiguration, fmt.Errorf("%w: finish in state %s", ErrInvalidState, h.state))
	}
	keys, err := session.DeriveKeys(h.suite, h.shared, h.th1)
	if err != nil {
		return session.Keys{}, h.fail(KindConfiguration, err)
	}
	h.wipe()
	h.state = StateDone
	return keys, nil
}

// abortFor returns the Abort body to send for a local failure, or nil when
// the peer should not be told (transport failures, configuration errors and
// failures the peer itself reported).
func abortFor(err error) []byte {
	if errors.Is(err, ErrPeerRejected) || errors.Is(err, ErrPeerAborted) {
		return nil
	}
	var reason AbortReason
	switch KindOf(err) {
	case KindAuthentication:
		reason = AbortAuthentication
	case KindProtocol:
		reason = AbortProtocol
	default:
		return nil
	}
	return (&Message{Type: MessageAbort, Reason: reason}).Marshal()
}

// wipe zeroes the ephemeral private key, shared secret and transcripts.
func (h *handshake) wipe() {
	h.ephemeral.Zero()
	crypto.Zero(h.shared)
	crypto.Zero(h.th1)
	crypto.Zero(h.th2)
	h.shared, h.th1, h.th2 = nil, nil, nil
}
