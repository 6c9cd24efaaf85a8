// Package session holds the security context of an established secure
// channel: the six directional keys, one frame codec per direction and the
// sequence counter policy.
//
// A SecureContext is created by pkg/securechannel once the handshake has
// verified both signatures. It never sees handshake state.
package session

// Role identifies which side of the handshake the local party played.
// The role selects the key halves: the client sends with the
// client-to-server keys, the server with the server-to-client keys.
type Role int

const (
	// RoleUnknown indicates an uninitialized or invalid role.
	RoleUnknown Role = iota

	// RoleClient is the initiator; the vehicle side.
	RoleClient

	// RoleServer is the responder; the gateway side.
	RoleServer
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "Client"
	case RoleServer:
		return "Server"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is a defined value.
func (r Role) IsValid() bool {
	return r == RoleClient || r == RoleServer
}

// Peer returns the opposite role.
func (r Role) Peer() Role {
	switch r {
	case RoleClient:
		return RoleServer
	case RoleServer:
		return RoleClient
	default:
		return RoleUnknown
	}
}

// CounterPolicy decides what happens when a direction reaches its
// sequence limit.
type CounterPolicy int

const (
	// CounterPolicyFail fails the session once the limit is reached.
	CounterPolicyFail CounterPolicy = iota

	// CounterPolicyRekey replaces the direction keys every SequenceLimit
	// frames. Sequence numbers keep increasing across rekeys.
	CounterPolicyRekey
)

// String returns a human-readable name for the policy.
func (p CounterPolicy) String() string {
	switch p {
	case CounterPolicyFail:
		return "fail"
	case CounterPolicyRekey:
		return "rekey"
	default:
		return "unknown"
	}
}

// IsValid returns true if the policy is a defined value.
func (p CounterPolicy) IsValid() bool {
	return p == CounterPolicyFail || p == CounterPolicyRekey
}

// ParseCounterPolicy parses the String form of a policy.
func ParseCounterPolicy(s string) (CounterPolicy, error) {
	switch s {
	case "fail", "":
		return CounterPolicyFail, nil
	case "rekey":
		return CounterPolicyRekey, nil
	default:
		return 0, ErrInvalidPolicy
	}
}
