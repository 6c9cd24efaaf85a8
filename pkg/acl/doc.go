// Package acl decides which authenticated peers may run which gateway
// commands.
//
// Subjects are identity key fingerprints as produced by
// crypto.Fingerprint. Each entry grants a privilege level and a list of
// commands; the wildcard command "*" matches any command. Each command
// requires a privilege (Operate unless registered otherwise with
// Checker.Require).
//
// The algorithm:
//  1. For each entry whose subject equals the peer fingerprint:
//     - Check that the entry's privilege grants the command's privilege
//     - Check that the entry lists the command or "*"
//  2. First matching entry grants access; no match means denied
package acl
