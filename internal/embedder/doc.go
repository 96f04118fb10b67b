// Package embedder turns chunk and query text into vector embeddings.
//
// Providers:
//   - openai: OpenAI /embeddings (text-embedding-3-small, 1536 dimensions)
//   - jina: Jina AI /embeddings (jina-embeddings-v3, 1024 dimensions)
//   - local: offline feature hashing, for development and tests
//
// Remote providers collapse newlines and truncate input to MaxInputChars
// before sending, retry transient failures with exponential backoff, and
// cache vectors in an LRU keyed by model and text. Failures wrap
// ErrProviderFailed.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:          embedder.ProviderOpenAI,
//	    CacheSize:         10000,
//	    RequestsPerSecond: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "what did the accountant say about my taxes?",
//	})
//
// # Batch Processing
//
// GenerateBatch returns embeddings parallel to the input texts and accepts
// at most MaxBatchSize texts per call:
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{paragraph1, paragraph2},
//	})
//
// # Rate Limiting
//
// New wraps the provider in RateLimited when RequestsPerSecond is positive;
// callers block on a token bucket instead of tripping provider 429s.
package embedder
