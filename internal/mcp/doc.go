// Package mcp implements the Model Context Protocol (MCP) server for docrecall.
//
// The server exposes six tools:
//   - retrieve_context: build a context block for a user's question
//   - ingest_document: store a document as chunks, replacing earlier versions
//   - delete_document: remove one document
//   - delete_owner: remove everything a user stored
//   - confirm_document: set the confirmed flag on a document's chunks
//   - get_status: report store statistics and the embedding setup
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Tool: retrieve_context
//
//	Request:
//	{
//	  "owner_id": 42,
//	  "question": "when was the invoice paid?",
//	  "limit": 5
//	}
//
//	Response:
//	{
//	  "context": "Invoice 118 was paid on 03.02.2024 ...\n\n...",
//	  "chunk_count": 3,
//	  "strategy": "hybrid",
//	  "no_documents": false
//	}
//
// A user with no documents gets strategy "no_documents" and an empty context.
// Failures after validation are reported as error -32005 with the failing
// stage; the cause is only logged.
//
// # Tool: ingest_document
//
// Pass either pre-split chunks or a summary, which is split on blank lines:
//
//	{
//	  "owner_id": 42,
//	  "document_id": 7,
//	  "chunks": [{"text": "...", "keywords": ["invoice"], "metadata": {"page": 1}}],
//	  "uploaded_at": "2024-02-03T10:00:00Z"
//	}
//
// # Error Codes
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32002  the document is being ingested by another call
//	-32004  empty question
//	-32005  search temporarily unavailable
package mcp
