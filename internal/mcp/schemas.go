package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func ownerIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "ID of the user who owns the documents",
		"minimum":     1,
	}
}

func documentIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "ID of the source document",
		"minimum":     1,
	}
}

// retrieveContextTool returns the tool definition for retrieve_context
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve the most relevant passages of a user's documents for a question",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"owner_id": ownerIDProperty(),
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The user's question in natural language",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages to return (1-20)",
					"default":     5,
					"minimum":     1,
					"maximum":     20,
				},
			},
			Required: []string{"owner_id", "question"},
		},
	}
}

// ingestDocumentTool returns the tool definition for ingest_document
func ingestDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_document",
		Description: "Store a document as searchable chunks, replacing any earlier version of it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"owner_id":    ownerIDProperty(),
				"document_id": documentIDProperty(),
				"chunks": map[string]interface{}{
					"type":        "array",
					"description": "Pre-split chunks. Either chunks or summary is required",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"text": map[string]interface{}{
								"type": "string",
							},
							"keywords": map[string]interface{}{
								"type":  "array",
								"items": map[string]interface{}{"type": "string"},
							},
							"metadata": map[string]interface{}{
								"type": "object",
							},
						},
						"required": []string{"text"},
					},
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "Document summary split into paragraphs on blank lines",
				},
				"drop_last": map[string]interface{}{
					"type":        "boolean",
					"description": "Discard the final summary paragraph when there is more than one",
					"default":     false,
				},
				"uploaded_at": map[string]interface{}{
					"type":        "string",
					"description": "RFC 3339 upload time of the document (default: now)",
				},
			},
			Required: []string{"owner_id", "document_id"},
		},
	}
}

// deleteDocumentTool returns the tool definition for delete_document
func deleteDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_document",
		Description: "Delete every chunk of a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": documentIDProperty(),
			},
			Required: []string{"document_id"},
		},
	}
}

// deleteOwnerTool returns the tool definition for delete_owner
func deleteOwnerTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_owner",
		Description: "Delete every chunk belonging to a user",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"owner_id": ownerIDProperty(),
			},
			Required: []string{"owner_id"},
		},
	}
}

// confirmDocumentTool returns the tool definition for confirm_document
func confirmDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "confirm_document",
		Description: "Set the confirmed flag on every chunk of a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": documentIDProperty(),
				"confirmed": map[string]interface{}{
					"type":    "boolean",
					"default": true,
				},
			},
			Required: []string{"document_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report store statistics and the embedding setup",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
