// Package securechannel implements the mutually authenticated secure
// channel between a vehicle (client) and an access-control gateway
// (server).
//
// The handshake is three messages over length-prefixed records:
//
//	client -> server  ClientHello{kx_pub}
//	server -> client  ServerAuth{identity_pub, kx_pub, Sign(TH1)}
//	client -> server  ClientAuth{identity_pub, Sign(TH2)}
//
// Each side consults its trust.Verifier before checking the peer's
// signature. The six session keys are derived from the shared secret and
// TH1 only after the signatures verify. Afterwards data travels in
// encrypt-then-MAC frames with strict per-direction sequence numbers; see
// pkg/message.
//
// Every error returned by a Session is an *Error carrying a Kind. Any
// failure moves the session to StateFailed; it must then be released.
package securechannel
