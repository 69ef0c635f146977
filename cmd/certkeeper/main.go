// certkeeper keeps a cache of named certificates fresh and resolves the
// private key needed to decrypt inbound encrypted tokens.
//
// Usage:
//
//	certkeeper serve --config /etc/certkeeper/config.yaml
//	certkeeper refresh --config config.yaml --format json
//	certkeeper resolve --kid <key id>
//	certkeeper config validate --production
package main

import (
	"fmt"
	"os"

	"github.com/sufield/certkeeper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
