// dacgate runs and talks to a vehicle access-control gateway.
//
// Usage:
//
//	dacgate keygen                      create an identity in the keyring
//	dacgate serve --acl acl.txt         run a gateway
//	dacgate trust add <fingerprint>     pin a peer
//	dacgate request --addr host unlock  send one command
//	dacgate shell --addr host           interactive session
//	dacgate discover                    browse for gateways
package main

import (
	"os"

	"github.com/backkem/dacgate/cmd/dacgate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
