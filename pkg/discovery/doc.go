// Package discovery advertises and finds gateways with DNS-SD over mDNS.
//
// A gateway registers an instance of ServiceGateway whose TXT record
// carries the fingerprint of its identity key and its cipher suite name.
// Clients browse for instances and still authenticate the gateway during
// the handshake; the TXT fingerprint only selects which pin to expect.
package discovery
