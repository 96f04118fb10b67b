// Package storage persists document chunks and answers owner-scoped vector
// and keyword queries.
//
// Two backends implement Storage:
//   - SQLiteStorage: embedded, single writer. Default for the CLI and tests.
//   - PostgresStorage: PostgreSQL with pgvector, for concurrent multi-tenant use.
//
// # Schema
//
// Both backends keep one table, document_chunks, keyed by a UUID and unique on
// (document_id, chunk_index). The embedding dimension is recorded in
// store_meta on first open; reopening with another dimension fails with
// types.ErrDimensionMismatch. Schema changes go through versioned migrations
// tracked in schema_version.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("docrecall.db", 1536)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	// Replace all chunks of document 7 owned by user 42
//	ids, err := store.InsertChunks(ctx, types.Document{OwnerID: 42, ID: 7}, inputs)
//
//	// Nearest neighbours for owner 42 only
//	hits, err := store.SearchVector(ctx, 42, queryVector, 20)
//
//	// Candidate chunks whose keywords contain "invoice" or "tax"
//	chunks, err := store.SearchKeywords(ctx, 42, []string{"invoice", "tax"}, 0)
//
// # Vector Search
//
// SQLite uses sqlite-vec's vec_distance_cosine when built with the
// sqlite_vec tag and scans the owner's rows in Go otherwise. PostgreSQL uses
// the <=> cosine distance operator over an HNSW index. Similarity is always
// reported as 1 - cosine distance.
//
// # Build Tags
//
// CGO Build (sqlite_vec tag):
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default):
//
//	CGO_ENABLED=0 go build ./...
package storage
