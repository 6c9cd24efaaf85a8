package session

import (
	"github.com/backkem/dacgate/pkg/crypto"
	"github.com/backkem/dacgate/pkg/message"
)

// Key derivation labels, one per derived key.
const (
	labelIVClientToServer  byte = 'A'
	labelIVServerToClient  byte = 'B'
	labelEncClientToServer byte = 'C'
	labelEncServerToClient byte = 'D'
	labelMACClientToServer byte = 'E'
	labelMACServerToClient byte = 'F'
)

// Keys holds the six directional keys of a session.
type Keys struct {
	IVClientToServer  []byte
	IVServerToClient  []byte
	EncClientToServer []byte
	EncServerToClient []byte
	MACClientToServer []byte
	MACServerToClient []byte
}

// DeriveKeys computes
//
//	key_X = Hash(shared || th1 || X)   for X in 'A'..'F'
//
// IV keys are truncated to the cipher block size and encryption keys to the
// cipher key size. MAC keys are the full digest.
func DeriveKeys(suite *crypto.Suite, shared, th1 []byte) (Keys, error) {
	if err := suite.Validate(); err != nil {
		return Keys{}, err
	}
	if len(shared) == 0 || len(th1) == 0 {
		return Keys{}, ErrInvalidSharedSecret
	}

	derive := func(label byte, size int) []byte {
		digest := suite.Sum(shared, th1, []byte{label})
		if size >= len(digest) {
			return digest
		}
		out := append([]byte(nil), digest[:size]...)
		crypto.Zero(digest)
		return out
	}

	bs := suite.Cipher.BlockSize()
	ks := suite.Cipher.KeySize()
	hs := suite.HashSize()

	return Keys{
		IVClientToServer:  derive(labelIVClientToServer, bs),
		IVServerToClient:  derive(labelIVServerToClient, bs),
		EncClientToServer: derive(labelEncClientToServer, ks),
		EncServerToClient: derive(labelEncServerToClient, ks),
		MACClientToServer: derive(labelMACClientToServer, hs),
		MACServerToClient: derive(labelMACServerToClient, hs),
	}, nil
}

// ClientToServer returns the keys protecting client-to-server traffic.
// The returned slices alias k.
func (k *Keys) ClientToServer() message.DirectionKeys {
	return message.DirectionKeys{IV: k.IVClientToServer, Enc: k.EncClientToServer, MAC: k.MACClientToServer}
}

// ServerToClient returns the keys protecting server-to-client traffic.
// The returned slices alias k.
func (k *Keys) ServerToClient() message.DirectionKeys {
	return message.DirectionKeys{IV: k.IVServerToClient, Enc: k.EncServerToClient, MAC: k.MACServerToClient}
}

// Send returns the direction keys role sends with.
func (k *Keys) Send(role Role) message.DirectionKeys {
	if role == RoleClient {
		return k.ClientToServer()
	}
	return k.ServerToClient()
}

// Receive returns the direction keys role receives with.
func (k *Keys) Receive(role Role) message.DirectionKeys {
	return k.Send(role.Peer())
}

// Clone returns a deep copy.
func (k *Keys) Clone() Keys {
	c2s := k.ClientToServer().Clone()
	s2c := k.ServerToClient().Clone()
	return Keys{
		IVClientToServer:  c2s.IV,
		IVServerToClient:  s2c.IV,
		EncClientToServer: c2s.Enc,
		EncServerToClient: s2c.Enc,
		MACClientToServer: c2s.MAC,
		MACServerToClient: s2c.MAC,
	}
}

// Binding returns a digest of all six keys. Both ends of a session compute
// the same value, so it can be compared out of band or logged to correlate
// the two sides without revealing key material.
func (k *Keys) Binding(suite *crypto.Suite) []byte {
	return suite.Sum([]byte("dacgate binding"),
		k.IVClientToServer, k.IVServerToClient,
		k.EncClientToServer, k.EncServerToClient,
		k.MACClientToServer, k.MACServerToClient)
}

// IsZero reports whether no key has been populated.
func (k *Keys) IsZero() bool {
	return k.IVClientToServer == nil && k.IVServerToClient == nil &&
		k.EncClientToServer == nil && k.EncServerToClient == nil &&
		k.MACClientToServer == nil && k.MACServerToClient == nil
}

// Zero wipes all six keys.
func (k *Keys) Zero() {
	for _, b := range [][]byte{
		k.IVClientToServer, k.IVServerToClient,
		k.EncClientToServer, k.EncServerToClient,
		k.MACClientToServer, k.MACServerToClient,
	} {
		crypto.Zero(b)
	}
}
