package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docrecall/internal/chunker"
	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/retrieval"
)

const (
	// ServerName is the MCP server name
	ServerName = "docrecall"
)

// ServerVersion is the reported server version, set at build time
var ServerVersion = "dev"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	service *retrieval.Service
	chunker *chunker.Chunker
	logger  *slog.Logger
}

// NewServer creates a new MCP server over svc. The chunker serves
// ingest_document calls that pass a summary instead of chunks.
func NewServer(svc *retrieval.Service, ch *chunker.Chunker, logger *slog.Logger) *Server {
	logger = logging.OrDefault(logger)
	if ch == nil {
		ch = chunker.New(nil, logger)
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		service: svc,
		chunker: ch,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.InfoContext(ctx, "mcp server listening on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(ingestDocumentTool(), s.handleIngestDocument)
	s.mcp.AddTool(deleteDocumentTool(), s.handleDeleteDocument)
	s.mcp.AddTool(deleteOwnerTool(), s.handleDeleteOwner)
	s.mcp.AddTool(confirmDocumentTool(), s.handleConfirmDocument)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
