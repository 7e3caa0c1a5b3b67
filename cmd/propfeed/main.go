// Command propfeed aggregates property listings from the provider feed.
package main

import (
	"os"

	"github.com/custodia-labs/propfeed/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
