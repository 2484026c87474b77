// Package main provides the entry point for slotcache-cli.
//
// slotcache-cli is the offline admin tool for a slotcache deployment:
// it inspects and repairs a site's cache backup and row history
// directly against the Badger data directory, independent of whether
// slotcache-server is running.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/slotcache-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
