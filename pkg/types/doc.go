// Package types provides shared type definitions for docrecall.
//
// Chunk is the stored unit: a fragment of one user's document with its
// embedding, keyword string and opaque metadata. ScoredChunk carries a chunk
// through the vector pass, the keyword pass and fusion:
//
//	sc := &types.ScoredChunk{Chunk: chunk, Similarity: 0.82}
//	sc.SetAdvancedScore(27.5) // also sets Rank
//	sc.SetExactMatchCount(2)  // also sets MatchesCount
//
// RetrievalResult is what Retrieve hands back: the selected texts joined with
// a blank line, plus the strategy used. The empty-corpus sentinel is a result
// with Strategy == StrategyNoDocuments.
//
// Errors are sentinels meant for errors.Is; storage and provider failures
// wrap ErrStorage and ErrEmbedding respectively.
package types
