// Command fieldsync runs the offline-first sync core: local durable
// store, pending-operation queue and reconciliation engine for the
// farm-operations client.
package main

import (
	"fmt"
	"os"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
