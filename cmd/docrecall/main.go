// Command docrecall runs the hybrid document retrieval engine, either as an
// MCP server over stdio or as one-shot CLI commands against the same store.
package main

import (
	"fmt"
	"os"

	"github.com/dshills/docrecall/cmd/docrecall/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
