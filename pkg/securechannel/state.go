package securechannel

// State is the handshake state of a Session.
type State int

const (
	// StateInit is the state before Authenticate. The identity may still
	// be set.
	StateInit State = iota

	// StateKeyExchange is the ephemeral key exchange step.
	StateKeyExchange

	// StateVerify is the identity and signature verification step.
	StateVerify

	// StateFinish is key derivation after both signatures verified.
	StateFinish

	// StateDone means the session is ready for Send and Receive.
	StateDone

	// StateFailed is terminal. The session must be released.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateKeyExchange:
		return "KeyExchange"
	case StateVerify:
		return "Verify"
	case StateFinish:
		return "Finish"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Ready reports whether the state allows Send and Receive.
func (s State) Ready() bool {
	return s == StateDone
}
