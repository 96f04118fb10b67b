package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docrecall/internal/retrieval"
	"github.com/dshills/docrecall/pkg/types"
)

// chunkFile is the JSON shape read by ingest without --summary
type chunkFile struct {
	Text     string         `json:"text"`
	Keywords []string       `json:"keywords"`
	Metadata map[string]any `json:"metadata"`
}

func newIngestCmd(st *state) *cobra.Command {
	var (
		ownerID    int64
		documentID int64
		summary    bool
		dropLast   bool
		uploadedAt string
	)

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Store a document, replacing any earlier version of it",
		Long: `Store a document as embedded chunks. Reads the file argument, or stdin
when it is omitted or "-".

By default the input is a JSON array of chunks:

  [{"text": "...", "keywords": ["invoice"], "metadata": {"page": 1}}]

With --summary the input is plain text split into paragraphs on blank lines,
with keywords extracted per paragraph.`,
		Example: `  docrecall ingest --owner 42 --document 7 chunks.json
  cat summary.txt | docrecall ingest --owner 42 --document 7 --summary --drop-last`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := readInput(cmd, args)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			var opts []retrieval.IngestOption
			if uploadedAt != "" {
				t, err := time.Parse(time.RFC3339, uploadedAt)
				if err != nil {
					return fmt.Errorf("ingest: invalid --uploaded-at: %w", err)
				}
				opts = append(opts, retrieval.WithUploadedAt(t))
			}

			a, err := st.openApp(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = a.Close() }()

			var chunks []types.IngestChunk
			if summary {
				a.chunker.DropLast = dropLast
				chunks, err = a.chunker.Chunk(ctx, string(data))
			} else {
				chunks, err = parseChunkFile(data)
			}
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			stats, err := a.service.IngestWithStats(ctx, ownerID, documentID, chunks, opts...)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %d: %d chunks stored in %s\n",
				documentID, stats.ChunksStored, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Owner (user) id")
	cmd.Flags().Int64Var(&documentID, "document", 0, "Document id")
	cmd.Flags().BoolVar(&summary, "summary", false, "Treat input as a plain-text summary")
	cmd.Flags().BoolVar(&dropLast, "drop-last", false, "With --summary, discard the last paragraph")
	cmd.Flags().StringVar(&uploadedAt, "uploaded-at", "", "RFC 3339 upload time (default: now)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("document")

	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func parseChunkFile(data []byte) ([]types.IngestChunk, error) {
	var raw []chunkFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid chunk JSON: %w", err)
	}
	chunks := make([]types.IngestChunk, len(raw))
	for i, c := range raw {
		chunks[i] = types.IngestChunk{Text: c.Text, Keywords: c.Keywords, Metadata: c.Metadata}
	}
	return chunks, nil
}
