// Command tsb is a multi-project incremental build orchestrator for
// composite TypeScript-style projects linked by explicit project
// references — the graph-aware counterpart of `tsc -b` described in this
// repository's core packages (internal/graph, internal/status,
// internal/solution).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
