package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docrecall/internal/indexer"
	"github.com/dshills/docrecall/internal/retrieval"
	"github.com/dshills/docrecall/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentBusy  = -32002 // Another ingest of the same document is running
	ErrorCodeEmptyQuery    = -32004 // Question parameter is empty
	ErrorCodeUnavailable   = -32005 // Retrieval failed after validation
)

// MaxLimit caps the limit argument of retrieve_context
const MaxLimit = 20

// handleRetrieveContext handles the retrieve_context tool invocation
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ownerID, err := requireID(args, "owner_id")
	if err != nil {
		return nil, err
	}

	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", s.service.Config().ResultLimit)
	if limit < 1 || limit > MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit out of range", map[string]interface{}{
			"param":  "limit",
			"reason": fmt.Sprintf("must be between 1 and %d", MaxLimit),
		})
	}

	result, err := s.service.Retrieve(ctx, ownerID, question, limit)
	if err != nil {
		return nil, s.mapError(ctx, "retrieve_context", err)
	}

	response := map[string]interface{}{
		"context":      result.Text,
		"chunk_count":  result.ChunkCount,
		"strategy":     string(result.Strategy),
		"no_documents": result.NoDocuments(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestDocument handles the ingest_document tool invocation
func (s *Server) handleIngestDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	ownerID, err := requireID(args, "owner_id")
	if err != nil {
		return nil, err
	}
	documentID, err := requireID(args, "document_id")
	if err != nil {
		return nil, err
	}

	var opts []retrieval.IngestOption
	if raw := getStringDefault(args, "uploaded_at", ""); raw != "" {
		uploadedAt, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid uploaded_at", map[string]interface{}{
				"param":  "uploaded_at",
				"reason": "must be an RFC 3339 timestamp",
			})
		}
		opts = append(opts, retrieval.WithUploadedAt(uploadedAt))
	}

	chunks, err := s.ingestChunks(ctx, args)
	if err != nil {
		return nil, err
	}

	stats, err := s.service.IngestWithStats(ctx, ownerID, documentID, chunks, opts...)
	if err != nil {
		return nil, s.mapError(ctx, "ingest_document", err)
	}

	response := map[string]interface{}{
		"ingested":       true,
		"document_id":    documentID,
		"chunks_stored":  stats.ChunksStored,
		"embed_requests": stats.EmbedRequests,
		"duration_ms":    stats.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// ingestChunks reads the chunks argument, or splits the summary argument
// when no chunks are given.
func (s *Server) ingestChunks(ctx context.Context, args map[string]interface{}) ([]types.IngestChunk, error) {
	rawChunks, hasChunks := args["chunks"]
	summary, hasSummary := args["summary"].(string)

	switch {
	case hasChunks && hasSummary:
		return nil, newMCPError(ErrorCodeInvalidParams, "chunks and summary are mutually exclusive", map[string]interface{}{
			"param":  "chunks",
			"reason": "pass either chunks or summary",
		})
	case hasChunks:
		return parseChunks(rawChunks)
	case hasSummary:
		ch := *s.chunker
		ch.DropLast = getBoolDefault(args, "drop_last", ch.DropLast)
		chunks, err := ch.Chunk(ctx, summary)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid summary", map[string]interface{}{
				"param":  "summary",
				"reason": err.Error(),
			})
		}
		return chunks, nil
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "chunks or summary parameter is required", map[string]interface{}{
			"param":  "chunks",
			"reason": "missing",
		})
	}
}

// parseChunks converts the decoded chunks argument
func parseChunks(raw interface{}) ([]types.IngestChunk, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "chunks must be an array", map[string]interface{}{
			"param":  "chunks",
			"reason": "wrong type",
		})
	}

	chunks := make([]types.IngestChunk, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, chunkParamError(i, "must be an object")
		}
		text, _ := obj["text"].(string)
		if strings.TrimSpace(text) == "" {
			return nil, chunkParamError(i, "text is required")
		}

		chunk := types.IngestChunk{Text: text}
		if kws, ok := obj["keywords"].([]interface{}); ok {
			for _, kw := range kws {
				if str, ok := kw.(string); ok {
					chunk.Keywords = append(chunk.Keywords, str)
				}
			}
		}
		if meta, ok := obj["metadata"].(map[string]interface{}); ok {
			chunk.Metadata = meta
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func chunkParamError(i int, reason string) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid chunk", map[string]interface{}{
		"param":  fmt.Sprintf("chunks[%d]", i),
		"reason": reason,
	})
}

// handleDeleteDocument handles the delete_document tool invocation
func (s *Server) handleDeleteDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	documentID, err := requireID(args, "document_id")
	if err != nil {
		return nil, err
	}

	if err := s.service.DeleteDocument(ctx, documentID); err != nil {
		return nil, s.mapError(ctx, "delete_document", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted":     true,
		"document_id": documentID,
	})), nil
}

// handleDeleteOwner handles the delete_owner tool invocation
func (s *Server) handleDeleteOwner(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	ownerID, err := requireID(args, "owner_id")
	if err != nil {
		return nil, err
	}

	if err := s.service.DeleteOwner(ctx, ownerID); err != nil {
		return nil, s.mapError(ctx, "delete_owner", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted":  true,
		"owner_id": ownerID,
	})), nil
}

// handleConfirmDocument handles the confirm_document tool invocation
func (s *Server) handleConfirmDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	documentID, err := requireID(args, "document_id")
	if err != nil {
		return nil, err
	}
	confirmed := getBoolDefault(args, "confirmed", true)

	n, err := s.service.SetConfirmed(ctx, documentID, confirmed)
	if err != nil {
		return nil, s.mapError(ctx, "confirm_document", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"document_id":    documentID,
		"confirmed":      confirmed,
		"chunks_updated": n,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.service.Stats(ctx)
	if err != nil {
		return nil, s.mapError(ctx, "get_status", err)
	}

	cfg := s.service.Config()
	response := map[string]interface{}{
		"backend":          stats.Storage.Backend,
		"total_chunks":     stats.Storage.TotalChunks,
		"unique_owners":    stats.Storage.UniqueOwners,
		"unique_documents": stats.Storage.UniqueDocuments,
		"avg_chunk_length": stats.Storage.AvgChunkLength,
		"embedding": map[string]interface{}{
			"provider":  stats.EmbeddingProvider,
			"model":     stats.EmbeddingModel,
			"dimension": stats.Dimension,
		},
		"retrieval": map[string]interface{}{
			"similarity_threshold": cfg.SimilarityThreshold,
			"boost_factor":         cfg.BoostFactor,
			"vector_k":             cfg.VectorK,
			"keyword_k":            cfg.KeywordK,
			"result_limit":         cfg.ResultLimit,
			"small_corpus_limit":   cfg.SmallCorpusLimit,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// mapError converts a service error into an MCP error. Details of
// retrieval failures are logged, not returned.
func (s *Server) mapError(ctx context.Context, tool string, err error) error {
	var retrievalErr *retrieval.RetrievalError
	switch {
	case errors.Is(err, types.ErrEmptyQuestion):
		return newMCPError(ErrorCodeEmptyQuery, err.Error(), nil)
	case errors.Is(err, types.ErrInvalidOwner),
		errors.Is(err, types.ErrInvalidDocument),
		errors.Is(err, types.ErrEmptyChunkText),
		errors.Is(err, types.ErrDocumentOwnerConflict):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, indexer.ErrDocumentBusy):
		return newMCPError(ErrorCodeDocumentBusy, err.Error(), nil)
	case errors.As(err, &retrievalErr):
		s.logger.ErrorContext(ctx, "tool failed", "tool", tool, "stage", retrievalErr.Stage, "error", err)
		return newMCPError(ErrorCodeUnavailable, "search temporarily unavailable", map[string]interface{}{
			"stage": retrievalErr.Stage,
		})
	default:
		s.logger.ErrorContext(ctx, "tool failed", "tool", tool, "error", err)
		return newMCPError(ErrorCodeInternalError, tool+" failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireID reads a positive integer id parameter
func requireID(args map[string]interface{}, key string) (int64, error) {
	id := int64(getIntDefault(args, key, 0))
	if id <= 0 {
		return 0, newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or not a positive integer",
		})
	}
	return id, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
