package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docrecall/internal/mcp"
	"github.com/dshills/docrecall/internal/storage"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docrecall version and build configuration",
		// version needs no config
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "docrecall %s (built: %s)\n", Version, BuildTime)
			fmt.Fprintf(out, "MCP server: %s %s\n", mcp.ServerName, mcp.ServerVersion)
			fmt.Fprintf(out, "Build mode: %s, SQLite driver: %s, vector extension: %v\n",
				storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)
		},
	}
}
