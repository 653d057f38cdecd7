package graph

import (
	"testing"

	"github.com/siherrmann/nexus/model"
	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	t.Run("Lowercases, filters short words and dedupes", func(t *testing.T) {
		assert.Equal(t, []string{"the", "api", "key", "rotation"}, Keywords("The API, an api key: rotation!", 3))
	})

	t.Run("Length is counted in characters", func(t *testing.T) {
		assert.Equal(t, []string{"größe", "für"}, Keywords("Größe äö für", 3), "Expected the two letter word to be dropped")
	})

	t.Run("Empty text yields no keywords", func(t *testing.T) {
		assert.Empty(t, Keywords("  ", 3))
	})
}

func TestFindSeeds(t *testing.T) {
	g := newTestGraph(t)
	mustAddNode(t, g, "one", model.NodeTypeDocument, "vector search with embeddings")
	mustAddNode(t, g, "three", model.NodeTypeDocument, "hybrid vector search with fuzzy matching")
	mustAddNode(t, g, "none", model.NodeTypeDocument, "graph walk")
	mustAddNode(t, g, "two", model.NodeTypeDocument, "fuzzy search engine")

	t.Run("Requires the minimum overlap and orders by overlap", func(t *testing.T) {
		seeds := g.FindSeeds("hybrid vector search over fuzzy indexes", 3, 2, 3)

		assert.Equal(t, []string{"three", "one", "two"}, seeds)
	})

	t.Run("Limits the number of seeds", func(t *testing.T) {
		seeds := g.FindSeeds("hybrid vector search over fuzzy indexes", 1, 2, 3)

		assert.Equal(t, []string{"three"}, seeds)
	})

	t.Run("Single shared word is not enough", func(t *testing.T) {
		seeds := g.FindSeeds("graph databases", 3, 2, 3)

		assert.Empty(t, seeds)
	})

	t.Run("Short words do not count", func(t *testing.T) {
		seeds := g.FindSeeds("a to of", 3, 0, 3)

		assert.Empty(t, seeds)
	})
}
