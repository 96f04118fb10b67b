// Package searcher ranks one owner's chunks for a query.
//
// Three pieces make up the search tier:
//   - VectorSearcher: cosine similarity over stored embeddings, threshold
//     filtered, with a small recency boost.
//   - KeywordSearcher: literal keyword matching where the number of distinct
//     matched keywords is the primary signal.
//   - HybridRanker: fuses both result lists into one ordered list of texts.
//     Chunks found by both passes always outrank chunks found by one.
//
// # Basic Usage
//
//	vs := searcher.NewVectorSearcher(store, searcher.WithLogger(logger))
//	ks := searcher.NewKeywordSearcher(store)
//	ranker := searcher.NewHybridRanker(searcher.DefaultBoostFactor)
//
//	vec, _ := vs.Search(ctx, ownerID, queryVector, 10, 0.3)
//	kw, _ := ks.Search(ctx, ownerID, []string{"liver", "ultrasound"}, 5)
//	texts := ranker.Fuse(vec, kw)
//
// # Scores
//
// Vector: final = similarity + 0.1 (uploaded within 30 days) or 0.05 (within
// 90 days).
//
// Keyword: advanced = matches*10 + 5 (all keywords matched) +
// matches/len(keywords string)*200 + recency bonus of 3, 1.5 or 0.5 for 7,
// 30 and 90 days.
//
// Fusion: vector score = similarity*10 + (n-i)*0.1, keyword score =
// advanced + (m-i)*0.2. Hybrid entries score ((v+k)/2)*boost*(1+matches*0.15),
// keyword-only entries k*(1+matches*0.1), vector-only entries v. Ordering is
// by hybrid status, then match count, then score.
package searcher
