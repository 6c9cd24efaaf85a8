// Package gateway serves access-control requests over the secure channel.
//
// A Server accepts connections, authenticates each with a server-role
// securechannel.Session and then answers request frames with response
// frames until the peer disconnects. A Client dials a Server and sends
// requests.
//
// The built-in CommandHandler reads text requests of the form
// "<command> [args...]", checks the peer against an ACL and replies with an
// 8-byte decision code.
package gateway
