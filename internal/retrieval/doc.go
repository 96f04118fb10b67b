// Package retrieval orchestrates owner-scoped retrieval over stored document
// chunks.
//
// Retrieve picks a strategy by corpus size:
//   - no chunks: the no-documents result, without any external call
//   - up to SmallCorpusLimit chunks: every chunk, newest first
//   - otherwise: enrich the question and extract keywords concurrently, embed
//     the enriched query, run the vector and keyword passes concurrently and
//     fuse them
//
// Enrichment and keyword extraction failures fall back to the raw question
// and to no keywords. Embedding, storage and search failures are returned as
// *RetrievalError.
//
//	svc, err := retrieval.New(store, emb, retrieval.DefaultConfig(),
//	    retrieval.WithEnricher(enricher),
//	    retrieval.WithExtractor(extractor))
//
//	res, err := svc.Retrieve(ctx, ownerID, "what does my MRI show", 5)
package retrieval
