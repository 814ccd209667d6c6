// Package main provides a one-shot utility for ledger secrets and caller
// tokens.
//
//	identity-key keygen             ed25519 identity keypair exports
//	identity-key hmac [-bytes 32]   journal HMAC key export
//	identity-key token -sub alice   bearer token signed with the env private key
package main

import (
	"os"

	"github.com/louisbranch/pledgebank/internal/platform/config"
	"github.com/louisbranch/pledgebank/internal/tools/identitykey"
)

func main() {
	if err := identitykey.Run(os.Args[1:], os.Stdout, identitykey.Deps{}); err != nil {
		config.Exitf("identity-key: %v", err)
	}
}
