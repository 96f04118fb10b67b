package searcher

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/metrics"
	"github.com/dshills/docrecall/internal/storage"
	"github.com/dshills/docrecall/pkg/types"
)

const testDimension = 4

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func daysAgo(n int) time.Time { return testNow.Add(-time.Duration(n) * day) }

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:", testDimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertDoc(t *testing.T, store storage.Storage, owner, docID int64, uploaded time.Time, inputs ...types.ChunkInput) {
	t.Helper()
	_, err := store.InsertChunks(context.Background(),
		types.Document{OwnerID: owner, ID: docID, UploadedAt: uploaded}, inputs)
	require.NoError(t, err)
}

func chunk(text, keywords string, vec ...float32) types.ChunkInput {
	return types.ChunkInput{Text: text, Keywords: keywords, Embedding: vec}
}

// unit returns a vector in the first two dimensions with cosine cos to [1,0,0,0].
func unit(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos)), 0, 0}
}

func texts(results []*types.ScoredChunk) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Text()
	}
	return out
}

func TestOverfetch(t *testing.T) {
	tests := []struct {
		k, ceiling, want int
	}{
		{k: 1, ceiling: 20, want: 3},
		{k: 5, ceiling: 20, want: 15},
		{k: 10, ceiling: 20, want: 20},
		{k: 30, ceiling: 20, want: 30},
		{k: 4, ceiling: 0, want: 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, overfetch(tt.k, tt.ceiling), "k=%d ceiling=%d", tt.k, tt.ceiling)
	}
}

func TestRecencyBoosts(t *testing.T) {
	assert.Equal(t, 0.1, vectorRecencyBoost(testNow, daysAgo(0)))
	assert.Equal(t, 0.1, vectorRecencyBoost(testNow, daysAgo(30)))
	assert.Equal(t, 0.05, vectorRecencyBoost(testNow, daysAgo(31)))
	assert.Equal(t, 0.05, vectorRecencyBoost(testNow, daysAgo(90)))
	assert.Equal(t, 0.0, vectorRecencyBoost(testNow, daysAgo(91)))
	assert.Equal(t, 0.1, vectorRecencyBoost(testNow, testNow.Add(time.Hour)), "future uploads count as new")

	assert.Equal(t, 3.0, keywordRecencyBonus(testNow, daysAgo(5)))
	assert.Equal(t, 1.5, keywordRecencyBonus(testNow, daysAgo(20)))
	assert.Equal(t, 0.5, keywordRecencyBonus(testNow, daysAgo(60)))
	assert.Equal(t, 0.0, keywordRecencyBonus(testNow, daysAgo(200)))
}

func TestVectorSearch_Threshold(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(200),
		chunk("exact", "", 1, 0, 0, 0),
		chunk("close", "", unit(0.7)...),
		chunk("orthogonal", "", 0, 1, 0, 0),
	)

	vs := NewVectorSearcher(store, WithClock(fixedClock), WithLogger(logging.Discard()))
	results, err := vs.Search(context.Background(), 1, []float32{1, 0, 0, 0}, 10, 0.5)
	require.NoError(t, err)

	assert.Equal(t, []string{"exact", "close"}, texts(results))
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.5)
		assert.True(t, r.FoundInVector)
		assert.False(t, r.FoundInKeywords)
	}
}

func TestVectorSearch_RecencyBoostReorders(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(200), chunk("old but closer", "", unit(0.95)...))
	insertDoc(t, store, 1, 2, daysAgo(3), chunk("new", "", unit(0.9)...))

	vs := NewVectorSearcher(store, WithClock(fixedClock), WithLogger(logging.Discard()))
	results, err := vs.Search(context.Background(), 1, []float32{1, 0, 0, 0}, 10, 0.3)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "new", results[0].Text())
	assert.InDelta(t, 1.0, results[0].FinalScore, 1e-4)
	assert.InDelta(t, 0.95, results[1].FinalScore, 1e-4)
}

func TestVectorSearch_TruncatesToK(t *testing.T) {
	store := setupStore(t)
	inputs := make([]types.ChunkInput, 0, 8)
	for i := 0; i < 8; i++ {
		inputs = append(inputs, chunk(string(rune('a'+i)), "", unit(0.99-float64(i)*0.01)...))
	}
	insertDoc(t, store, 1, 1, daysAgo(200), inputs...)

	vs := NewVectorSearcher(store, WithClock(fixedClock), WithLogger(logging.Discard()))
	results, err := vs.Search(context.Background(), 1, []float32{1, 0, 0, 0}, 3, 0.3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, texts(results))

	none, err := vs.Search(context.Background(), 1, []float32{1, 0, 0, 0}, 0, 0.3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVectorSearch_TenantIsolation(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(1), chunk("mine", "", unit(0.8)...))
	insertDoc(t, store, 2, 2, daysAgo(1), chunk("theirs", "", 1, 0, 0, 0))

	vs := NewVectorSearcher(store, WithClock(fixedClock), WithLogger(logging.Discard()))
	results, err := vs.Search(context.Background(), 1, []float32{1, 0, 0, 0}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, texts(results))

	empty, err := vs.Search(context.Background(), 3, []float32{1, 0, 0, 0}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestVectorSearch_DimensionMismatch(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(1), chunk("a", "", 1, 0, 0, 0))

	vs := NewVectorSearcher(store, WithLogger(logging.Discard()))
	_, err := vs.Search(context.Background(), 1, []float32{1, 0, 0}, 10, 0.3)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestVectorSearch_LowSimilarityCounted(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(1), chunk("weak", "", unit(0.4)...))

	reg := prometheus.NewRegistry()
	vs := NewVectorSearcher(store,
		WithClock(fixedClock),
		WithLogger(logging.Discard()),
		WithMetrics(metrics.New(reg)))

	results, err := vs.Search(context.Background(), 1, []float32{1, 0, 0, 0}, 10, 0.3)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1.0, gatherValue(t, reg, "docrecall_search_low_similarity_total"))
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range f.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		return sum
	}
	return 0
}

func TestKeywordSearch_RecencyTieBreak(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(200), chunk("E", "aspirin, headache", 1, 0, 0, 0))
	insertDoc(t, store, 1, 2, daysAgo(5), chunk("D", "aspirin, headache", 1, 0, 0, 0))

	ks := NewKeywordSearcher(store, WithClock(fixedClock), WithLogger(logging.Discard()))
	results, err := ks.Search(context.Background(), 1, []string{"aspirin"}, 5)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, []string{"D", "E"}, texts(results))
	assert.Equal(t, 1, results[0].ExactMatchCount)
	assert.Equal(t, 1, results[1].ExactMatchCount)
	assert.Greater(t, results[0].AdvancedScore, results[1].AdvancedScore)
}

func TestKeywordSearch_MatchCountDominates(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(200), chunk("three", "mri, brain, contrast", 1, 0, 0, 0))
	insertDoc(t, store, 1, 2, daysAgo(1), chunk("one", "mri", 1, 0, 0, 0))

	ks := NewKeywordSearcher(store, WithClock(fixedClock), WithLogger(logging.Discard()))
	results, err := ks.Search(context.Background(), 1, []string{"MRI", " brain ", "contrast"}, 5)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "three", results[0].Text())
	assert.Equal(t, 3, results[0].ExactMatchCount)
	assert.Less(t, results[0].AdvancedScore, results[1].AdvancedScore)
}

func TestKeywordSearch_AliasesAndScore(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(200), chunk("c", "liver, ultrasound", 1, 0, 0, 0))

	ks := NewKeywordSearcher(store, WithClock(fixedClock), WithLogger(logging.Discard()))
	results, err := ks.Search(context.Background(), 1, []string{"liver", "ultrasound", "biopsy"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 2, r.ExactMatchCount)
	assert.Equal(t, r.ExactMatchCount, r.MatchesCount)
	assert.Equal(t, r.AdvancedScore, r.Rank)
	// 2*10 + no full-match bonus + 2/17*200 + no recency
	assert.InDelta(t, 20+2.0/17*200, r.AdvancedScore, 1e-9)
	assert.True(t, r.FoundInKeywords)
}

func TestKeywordSearch_EmptyAndNoMatch(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(1), chunk("c", "liver", 1, 0, 0, 0))
	ks := NewKeywordSearcher(store, WithLogger(logging.Discard()))

	results, err := ks.Search(context.Background(), 1, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = ks.Search(context.Background(), 1, []string{" ", ""}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = ks.Search(context.Background(), 1, []string{"kidney"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeywordSearch_TenantIsolation(t *testing.T) {
	store := setupStore(t)
	insertDoc(t, store, 1, 1, daysAgo(1), chunk("mine", "aspirin", 1, 0, 0, 0))
	insertDoc(t, store, 2, 2, daysAgo(1), chunk("theirs", "aspirin", 1, 0, 0, 0))

	ks := NewKeywordSearcher(store, WithLogger(logging.Discard()))
	results, err := ks.Search(context.Background(), 1, []string{"aspirin"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, texts(results))
}

func TestNormalizeKeywords(t *testing.T) {
	assert.Equal(t, []string{"mri", "brain"}, NormalizeKeywords([]string{" MRI", "brain", "", "mri "}))
	assert.Empty(t, NormalizeKeywords(nil))
}

func TestAdvancedScore(t *testing.T) {
	// full match bonus applies when every keyword matched
	assert.InDelta(t, 10+5+1.0/3*200, AdvancedScore(1, 1, "mri"), 1e-9)
	// empty keyword string uses a length of one
	assert.InDelta(t, 0.0, AdvancedScore(0, 2, ""), 1e-9)
	assert.Equal(t, 2, CountMatches("MRI, Brain", []string{"mri", "brain", "liver"}))
}
