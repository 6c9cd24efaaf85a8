package securechannel

import "github.com/backkem/dacgate/pkg/crypto"

// Identification tags folded into both transcript hashes.
var (
	tagClient = []byte("client")
	tagServer = []byte("server")
)

// transcriptHash computes
//
//	Hash(tag_c || tag_s || identityPub || clientKX || serverKX || shared)
//
// With the server's identity key this is TH1, signed by the server and the
// input to key derivation. With the client's identity key it is TH2, signed
// by the client.
func transcriptHash(suite *crypto.Suite, identityPub, clientKX, serverKX, shared []byte) []byte {
	return suite.Sum(tagClient, tagServer, identityPub, clientKX, serverKX, shared)
}
