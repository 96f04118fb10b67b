package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics and the embedding setup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := st.openApp(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer func() { _ = a.Close() }()

			stats, err := a.service.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Backend:\t%s\n", stats.Storage.Backend)
			fmt.Fprintf(w, "Chunks:\t%d\n", stats.Storage.TotalChunks)
			fmt.Fprintf(w, "Owners:\t%d\n", stats.Storage.UniqueOwners)
			fmt.Fprintf(w, "Documents:\t%d\n", stats.Storage.UniqueDocuments)
			fmt.Fprintf(w, "Avg chunk length:\t%.1f\n", stats.Storage.AvgChunkLength)
			fmt.Fprintf(w, "Embedding:\t%s/%s (%d dims)\n", stats.EmbeddingProvider, stats.EmbeddingModel, stats.Dimension)
			return w.Flush()
		},
	}
}
