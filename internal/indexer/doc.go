// Package indexer runs the ingest pipeline: chunk texts are embedded in
// concurrent batches and the document's stored chunks are replaced in one
// transaction.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, &indexer.Config{BatchSize: 50})
//
//	stats, err := idx.IndexDocument(ctx, types.Document{OwnerID: 42, ID: 7}, []types.IngestChunk{
//	    {Text: "Ultrasound of the liver showed no lesions.", Keywords: []string{"liver", "ultrasound"}},
//	})
//
// # Atomicity
//
// Embedding happens before any write. If a single batch fails the whole
// document is rejected and the previously stored chunks stay untouched.
// Concurrent ingests of the same document ID are rejected with
// ErrDocumentBusy.
package indexer
