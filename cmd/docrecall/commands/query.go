package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd(st *state) *cobra.Command {
	var ownerID int64
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Retrieve context for a question from one user's documents",
		Example: `  docrecall query --owner 42 "when was invoice 118 paid?"
  docrecall query --owner 42 --limit 3 --json "contract renewal"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := st.openApp(ctx)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer func() { _ = a.Close() }()

			result, err := a.service.Retrieve(ctx, ownerID, strings.Join(args, " "), limit)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"context":     result.Text,
					"chunk_count": result.ChunkCount,
					"strategy":    result.Strategy,
				})
			}
			if result.NoDocuments() {
				fmt.Fprintln(out, "no documents")
				return nil
			}
			fmt.Fprintln(out, result.Text)
			return nil
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Owner (user) id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum passages to return (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}
