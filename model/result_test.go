package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRankedResultSet(t *testing.T) {
	t.Run("Assigns ranks by position and tags strategy", func(t *testing.T) {
		input := []*RetrievalResult{
			{ItemID: "d1", Score: 0.9},
			{ItemID: "d2", Score: 0.8},
		}

		set := NewRankedResultSet(StrategyVector, input)

		require.Equal(t, 2, set.Len())
		assert.Equal(t, 0, set.Results[0].Rank)
		assert.Equal(t, 1, set.Results[1].Rank)
		assert.Equal(t, StrategyVector, set.Results[1].Source)
	})

	t.Run("Does not mutate the input results", func(t *testing.T) {
		input := []*RetrievalResult{{ItemID: "d1", Rank: 7, Source: StrategyFuzzy}}

		NewRankedResultSet(StrategyVector, input)

		assert.Equal(t, 7, input[0].Rank)
		assert.Equal(t, StrategyFuzzy, input[0].Source)
	})

	t.Run("Skips nil entries", func(t *testing.T) {
		set := NewRankedResultSet(StrategyFuzzy, []*RetrievalResult{nil, {ItemID: "d1"}})

		require.Equal(t, 1, set.Len())
		assert.Equal(t, "d1", set.Results[0].ItemID)
	})

	t.Run("Nil set has zero length", func(t *testing.T) {
		var set *RankedResultSet

		assert.Equal(t, 0, set.Len())
	})

	t.Run("Truncate keeps the head", func(t *testing.T) {
		set := NewRankedResultSet(StrategyVector, []*RetrievalResult{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "c"}})

		set.Truncate(2)

		require.Equal(t, 2, set.Len())
		assert.Equal(t, "b", set.Results[1].ItemID)
	})
}

func TestChunkToRetrievalResult(t *testing.T) {
	t.Run("Carries similarity and pass-through metadata", func(t *testing.T) {
		chunk := &Chunk{
			ID:          uuid.New(),
			DocumentRID: uuid.New(),
			Content:     "graph walk",
			Path:        "doc.chunk0",
			Similarity:  0.83,
			Metadata:    Metadata{"author": "x"},
		}

		result := chunk.ToRetrievalResult(StrategyVector)

		assert.Equal(t, chunk.ID.String(), result.ItemID)
		assert.Equal(t, 0.83, result.Score)
		assert.Equal(t, "x", result.Metadata["author"])
		assert.Equal(t, "doc.chunk0", result.Metadata["path"])
		assert.NotContains(t, chunk.Metadata, "path", "Chunk metadata must stay untouched")
	})
}

func TestWalkResultToRetrievalResult(t *testing.T) {
	t.Run("Uses composite score and graph strategy", func(t *testing.T) {
		walk := &WalkResult{NodeID: "goal", Method: WalkMethodBFS, CompositeScore: 0.5, Depth: 1}

		result := walk.ToRetrievalResult()

		assert.Equal(t, "goal", result.ItemID)
		assert.Equal(t, 0.5, result.Score)
		assert.Equal(t, StrategyGraph, result.Source)
		assert.Equal(t, "bfs", result.Metadata["walk_method"])
	})
}

func TestKnowledgeNodePreview(t *testing.T) {
	t.Run("Cuts on rune boundaries", func(t *testing.T) {
		node := &KnowledgeNode{Content: "äöüabc"}

		assert.Equal(t, "äöü", node.Preview(3))
		assert.Equal(t, "äöüabc", node.Preview(100))
	})
}
