// File: cmd/workbench/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Load generator for the dispatch stack.

package main

import (
	"os"

	"github.com/momentics/hioload-dispatch/internal/cmd/workbench"
)

func main() {
	if err := workbench.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
