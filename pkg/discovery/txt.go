package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/backkem/dacgate/pkg/acl"
	"github.com/backkem/dacgate/pkg/crypto"
)

// TXT record keys.
const (
	// TXTKeyFingerprint is the SHA-256 fingerprint of the gateway identity.
	TXTKeyFingerprint = "fp"

	// TXTKeySuite is the cipher suite name.
	TXTKeySuite = "suite"

	// TXTKeyVersion is the protocol version.
	TXTKeyVersion = "v"
)

// ProtocolVersion is the only protocol version advertised and accepted.
const ProtocolVersion = 1

// GatewayTXT holds the TXT record of a gateway instance.
type GatewayTXT struct {
	// Fingerprint is the lowercase hex fingerprint of the identity key.
	Fingerprint string

	// Suite is the cipher suite name.
	Suite string

	// Version is the protocol version. Zero encodes as ProtocolVersion.
	Version int
}

// Encode converts the TXT record to DNS-SD format strings.
func (g *GatewayTXT) Encode() []string {
	version := g.Version
	if version == 0 {
		version = ProtocolVersion
	}
	return []string{
		TXTKeyFingerprint + "=" + g.Fingerprint,
		TXTKeySuite + "=" + g.Suite,
		TXTKeyVersion + "=" + strconv.Itoa(version),
	}
}

// Validate checks the field formats.
func (g *GatewayTXT) Validate() error {
	if err := acl.ValidateSubject(g.Fingerprint); err != nil {
		return fmt.Errorf("%w: fp: %v", ErrInvalidTXTRecord, err)
	}
	if _, err := crypto.SuiteByName(g.Suite); err != nil {
		return fmt.Errorf("%w: suite: %v", ErrInvalidTXTRecord, err)
	}
	if g.Version != 0 && g.Version != ProtocolVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, g.Version)
	}
	return nil
}

// ParseTXT parses raw TXT record strings into a map.
// Keys are case-insensitive per RFC 6763 and are lowercased.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			key := strings.ToLower(record[:idx])
			if _, dup := result[key]; dup {
				// RFC 6763 section 6.4: only the first occurrence counts.
				continue
			}
			result[key] = record[idx+1:]
		}
	}
	return result
}

// ParseGatewayTXT parses and validates raw TXT records.
func ParseGatewayTXT(records []string) (*GatewayTXT, error) {
	m := ParseTXT(records)
	txt := &GatewayTXT{
		Fingerprint: strings.ToLower(m[TXTKeyFingerprint]),
		Suite:       m[TXTKeySuite],
	}

	v, ok := m[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTXTRecord, TXTKeyVersion)
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyVersion, v)
	}
	if version != ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	txt.Version = version

	if err := txt.Validate(); err != nil {
		return nil, err
	}
	return txt, nil
}
