// Command peerinspect inspects the X.509 certificate a TLS peer presents.
//
// Usage:
//
//	peerinspect info example.com:443
//	peerinspect fingerprint example.com:443 --algorithm sha1
//	peerinspect pin add example.com:443 --client-id web-01
//	peerinspect serve --config peercert.yaml
package main

import (
	"fmt"
	"os"
)

// Build-time variables
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
