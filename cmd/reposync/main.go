// Command reposync keeps a local workspace and a single branch of a remote
// git repository in sync.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// A failed cycle has already been reported
		if !errors.Is(err, errCycleFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
