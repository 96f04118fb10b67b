package types

import "errors"

// Domain errors shared across packages
var (
	// Storage and embedding failures
	ErrStorage           = errors.New("storage error")
	ErrEmbedding         = errors.New("embedding error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Soft failures: logged and counted, never returned from Retrieve
	ErrEnrichmentDegraded        = errors.New("query enrichment degraded")
	ErrKeywordExtractionDegraded = errors.New("keyword extraction degraded")

	// Validation
	ErrInvalidOwner    = errors.New("invalid owner id")
	ErrInvalidDocument = errors.New("invalid document id")
	ErrEmptyChunkText  = errors.New("chunk text cannot be empty")
	ErrEmptyQuestion   = errors.New("question cannot be empty")

	// ErrDocumentOwnerConflict means the document id is held by another owner
	ErrDocumentOwnerConflict = errors.New("document belongs to another owner")
)
