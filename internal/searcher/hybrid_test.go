package searcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrecall/pkg/types"
)

func vecHit(text string, sim float64) *types.ScoredChunk {
	return &types.ScoredChunk{
		Chunk:         &types.Chunk{Text: text},
		Similarity:    sim,
		FoundInVector: true,
	}
}

func kwHit(text string, advanced float64, count int) *types.ScoredChunk {
	sc := &types.ScoredChunk{Chunk: &types.Chunk{Text: text}, FoundInKeywords: true}
	sc.SetAdvancedScore(advanced)
	sc.SetExactMatchCount(count)
	return sc
}

func TestNewHybridRanker_DefaultBoost(t *testing.T) {
	assert.Equal(t, DefaultBoostFactor, NewHybridRanker(0).Boost())
	assert.Equal(t, DefaultBoostFactor, NewHybridRanker(-1).Boost())
	assert.Equal(t, 2.5, NewHybridRanker(2.5).Boost())
}

func TestFuse_DedupByText(t *testing.T) {
	vector := []*types.ScoredChunk{vecHit("shared", 0.7), vecHit("only vector", 0.6)}
	keyword := []*types.ScoredChunk{kwHit("shared", 20, 2), kwHit("only keyword", 15, 1)}

	entries := FuseScored(vector, keyword, DefaultBoostFactor)
	require.Len(t, entries, 3)

	assert.Equal(t, "shared", entries[0].Text())
	assert.True(t, entries[0].IsHybrid())
	assert.Equal(t, 2, entries[0].ExactMatchCount)
	assert.Equal(t, 2, entries[0].MatchesCount)

	count := 0
	for _, e := range entries {
		if e.Text() == "shared" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestFuse_Scores(t *testing.T) {
	vector := []*types.ScoredChunk{vecHit("a", 0.8), vecHit("b", 0.5)}
	keyword := []*types.ScoredChunk{kwHit("b", 30, 2), kwHit("c", 12, 1)}

	entries := FuseScored(vector, keyword, 1.8)
	byText := map[string]*types.ScoredChunk{}
	for _, e := range entries {
		byText[e.Text()] = e
	}

	// a: vector only, 0.8*10 + 2*0.1
	assert.InDelta(t, 8.2, byText["a"].FinalScore, 1e-9)

	// b: vector 5 + 1*0.1, keyword 30 + 2*0.2
	b := byText["b"]
	assert.InDelta(t, 5.1, b.VectorScore, 1e-9)
	assert.InDelta(t, 30.4, b.KeywordScore, 1e-9)
	assert.InDelta(t, (5.1+30.4)/2*1.8*(1+2*0.15), b.FinalScore, 1e-9)

	// c: keyword only, (12 + 1*0.2) * (1 + 0.1)
	assert.InDelta(t, 12.2*1.1, byText["c"].FinalScore, 1e-9)

	assert.Equal(t, []string{"b", "c", "a"}, Fuse(vector, keyword, 1.8))
}

func TestFuse_HybridDominance(t *testing.T) {
	vector := []*types.ScoredChunk{vecHit("strong vector", 0.99), vecHit("weak hybrid", 0.31)}
	keyword := []*types.ScoredChunk{kwHit("weak hybrid", 0.5, 1)}

	entries := FuseScored(vector, keyword, DefaultBoostFactor)
	require.Len(t, entries, 2)

	assert.Equal(t, "weak hybrid", entries[0].Text())
	assert.True(t, entries[0].IsHybrid())
	assert.Less(t, entries[0].FinalScore, entries[1].FinalScore)
}

func TestFuse_MatchCountDominance(t *testing.T) {
	keyword := []*types.ScoredChunk{kwHit("one match", 90, 1), kwHit("three matches", 31, 3)}

	entries := FuseScored(nil, keyword, DefaultBoostFactor)
	require.Len(t, entries, 2)

	assert.Equal(t, "three matches", entries[0].Text())
	assert.Less(t, entries[0].FinalScore, entries[1].FinalScore)
}

func TestFuse_KeywordOnlyAboveVectorOnly(t *testing.T) {
	vector := []*types.ScoredChunk{vecHit("vector", 0.95)}
	keyword := []*types.ScoredChunk{kwHit("keyword", 1, 1)}

	assert.Equal(t, []string{"keyword", "vector"}, Fuse(vector, keyword, DefaultBoostFactor))
}

func TestFuse_DuplicateWithinOnePass(t *testing.T) {
	vector := []*types.ScoredChunk{vecHit("x", 0.9), vecHit("x", 0.4)}
	keyword := []*types.ScoredChunk{kwHit("y", 20, 2), kwHit("y", 10, 1)}

	entries := FuseScored(vector, keyword, DefaultBoostFactor)
	require.Len(t, entries, 2)
	for _, e := range entries {
		switch e.Text() {
		case "x":
			assert.InDelta(t, 0.9, e.Similarity, 1e-9)
		case "y":
			assert.Equal(t, 2, e.ExactMatchCount)
		}
	}
}

func TestFuse_InputsUnchanged(t *testing.T) {
	v := vecHit("shared", 0.7)
	k := kwHit("shared", 20, 2)

	FuseScored([]*types.ScoredChunk{v}, []*types.ScoredChunk{k}, DefaultBoostFactor)

	assert.False(t, v.FoundInKeywords)
	assert.Zero(t, v.FinalScore)
	assert.False(t, k.FoundInVector)
}

func TestFuse_Empty(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, DefaultBoostFactor))
}

// A chunk with modest similarity that is the only keyword hit ranks first.
func TestFuse_SingleKeywordHitRanksFirst(t *testing.T) {
	vector := make([]*types.ScoredChunk, 0, 10)
	for i := 0; i < 10; i++ {
		if i == 6 {
			vector = append(vector, vecHit("C7", 0.55))
			continue
		}
		vector = append(vector, vecHit(fmt.Sprintf("C%d", i+1), 0.9-float64(i)*0.02))
	}
	keyword := []*types.ScoredChunk{kwHit("C7", 25, 2)}

	ranked := NewHybridRanker(DefaultBoostFactor).Fuse(vector, keyword)
	require.Len(t, ranked, 10)
	assert.Equal(t, "C7", ranked[0])
}
