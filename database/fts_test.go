package database

import (
	"context"
	"testing"

	"github.com/siherrmann/nexus/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initFTS(t *testing.T) *FTSDBHandler {
	handler, err := NewFTSDBHandler(":memory:", nil)
	require.NoError(t, err, "Expected NewFTSDBHandler to not return an error")
	t.Cleanup(func() { _ = handler.Close() })

	items := []*FTSItem{
		{ItemID: "a", Title: "Router", Content: "The request router dispatches handlers by path", Source: "router.go", Language: "go"},
		{ItemID: "b", Content: "Connection pooling for the database driver", Source: "pool.md"},
		{ItemID: "c", Content: "Routing tables and path matching", Source: "routing.md", Metadata: model.Metadata{"section": "intro"}},
	}
	for _, item := range items {
		require.NoError(t, handler.UpsertItem(context.Background(), item))
	}

	return handler
}

func matchIDs(matches []*model.TextMatch) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ItemID)
	}
	return ids
}

func TestNewFTSDBHandler(t *testing.T) {
	t.Run("Valid call NewFTSDBHandler", func(t *testing.T) {
		handler, err := NewFTSDBHandler(":memory:", nil)
		require.NoError(t, err, "Expected NewFTSDBHandler to not return an error")
		assert.NoError(t, handler.Close(), "Expected Close to not return an error")
	})

	t.Run("Invalid call NewFTSDBHandler with empty path", func(t *testing.T) {
		_, err := NewFTSDBHandler("", nil)
		assert.Error(t, err, "Expected error for an empty path")
	})
}

func TestFTSSearch(t *testing.T) {
	handler := initFTS(t)
	ctx := context.Background()

	t.Run("Full text match requires all terms", func(t *testing.T) {
		matches, err := handler.Search(ctx, "router handlers", 5)
		require.NoError(t, err, "Expected Search to not return an error")
		require.Equal(t, []string{"a"}, matchIDs(matches), "Expected only the router item")
		assert.Equal(t, model.MatchTypeFTS, matches[0].MatchType, "Expected a full text match")
		assert.GreaterOrEqual(t, matches[0].Score, WildcardScoreFactor, "Expected full text matches above substring matches")
		assert.Less(t, matches[0].Score, 1.0, "Expected the score to be normalized")
		assert.Equal(t, "Router", matches[0].Title, "Expected the title to be returned")
	})

	t.Run("Substring matches of single terms", func(t *testing.T) {
		matches, err := handler.Search(ctx, "router matching", 5)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, matchIDs(matches), "Expected one item per term")
		for _, m := range matches {
			assert.Equal(t, model.MatchTypeWildcard, m.MatchType, "Expected wildcard matches")
			assert.InDelta(t, 0.7, m.Score, 1e-9, "Expected half of the terms between 0.6 and 0.8")
		}
	})

	t.Run("Approximate match for a typo", func(t *testing.T) {
		matches, err := handler.Search(ctx, "databse", 5)
		require.NoError(t, err)
		require.Equal(t, []string{"b"}, matchIDs(matches), "Expected only the database item")
		assert.Equal(t, model.MatchTypeFuzzy, matches[0].MatchType, "Expected an approximate match")
		assert.InDelta(t, 0.3, matches[0].Score, 1e-9, "Expected 0.6 / (1 + distance 1)")
		assert.Equal(t, "database", matches[0].Metadata["matched_word"], "Expected the matched word in the metadata")
	})

	t.Run("Each item appears once", func(t *testing.T) {
		matches, err := handler.Search(ctx, "path", 5)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, matchIDs(matches), "Expected both items containing path")
		for _, m := range matches {
			assert.Equal(t, model.MatchTypeFTS, m.MatchType, "Expected the strongest match type to win")
		}
	})

	t.Run("Metadata is returned", func(t *testing.T) {
		matches, err := handler.Search(ctx, "routing", 5)
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		assert.Equal(t, "c", matches[0].ItemID, "Expected the routing item first")
		assert.Equal(t, "intro", matches[0].Metadata["section"], "Expected stored metadata")
	})

	t.Run("Limit is applied", func(t *testing.T) {
		matches, err := handler.Search(ctx, "path", 1)
		require.NoError(t, err)
		assert.Len(t, matches, 1, "Expected at most one match")
	})

	t.Run("Zero limit returns nothing", func(t *testing.T) {
		matches, err := handler.Search(ctx, "path", 0)
		require.NoError(t, err)
		assert.Empty(t, matches, "Expected no matches")
	})

	t.Run("Operators in the query are not interpreted", func(t *testing.T) {
		_, err := handler.Search(ctx, `path" OR NEAR(* "`, 5)
		assert.NoError(t, err, "Expected special characters to be escaped")
	})

	t.Run("Short terms only fall back to approximate matching", func(t *testing.T) {
		matches, err := handler.Search(ctx, "by", 5)
		require.NoError(t, err)
		for _, m := range matches {
			assert.Equal(t, model.MatchTypeFuzzy, m.MatchType, "Expected no trigram matches for a two letter term")
		}
	})
}

func TestFTSMatchTypeOrder(t *testing.T) {
	handler, err := NewFTSDBHandler(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handler.Close() })
	ctx := context.Background()

	items := []*FTSItem{
		{ItemID: "one", Content: "token storage only"},
		{ItemID: "both", Content: "token refresh handler rotates the token"},
		{ItemID: "typo", Content: "refesh schedule"},
	}
	for _, item := range items {
		require.NoError(t, handler.UpsertItem(ctx, item))
	}

	t.Run("Full text matches rank above substring matches", func(t *testing.T) {
		matches, err := handler.Search(ctx, "token refresh", 5)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(matches), 2)

		assert.Equal(t, "both", matches[0].ItemID, "Expected the item with all terms first")
		assert.Equal(t, model.MatchTypeFTS, matches[0].MatchType)
		assert.Equal(t, "one", matches[1].ItemID, "Expected the item with one term second")
		assert.Equal(t, model.MatchTypeWildcard, matches[1].MatchType)
		assert.Greater(t, matches[0].Score, matches[1].Score)
	})

	t.Run("Substring matches rank above approximate matches", func(t *testing.T) {
		matches, err := handler.Search(ctx, "token refresh", 5)
		require.NoError(t, err)

		for i := 1; i < len(matches); i++ {
			assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score, "Expected scores best first")
		}
		for _, m := range matches {
			switch m.MatchType {
			case model.MatchTypeWildcard:
				assert.Greater(t, m.Score, FuzzyScoreFactor, "Expected substring scores above approximate scores")
				assert.LessOrEqual(t, m.Score, WildcardScoreFactor)
			case model.MatchTypeFuzzy:
				assert.LessOrEqual(t, m.Score, FuzzyScoreFactor)
			}
		}
	})
}

func TestFTSUpsertAndDelete(t *testing.T) {
	handler := initFTS(t)
	ctx := context.Background()

	t.Run("Upsert replaces the indexed content", func(t *testing.T) {
		err := handler.UpsertItem(ctx, &FTSItem{ItemID: "b", Content: "Connection retries with exponential backoff"})
		require.NoError(t, err)

		matches, err := handler.Search(ctx, "pooling", 5)
		require.NoError(t, err)
		assert.NotContains(t, matchIDs(matches), "b", "Expected the old content to be gone")

		matches, err = handler.Search(ctx, "backoff", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, matchIDs(matches), "Expected the new content to be indexed")
	})

	t.Run("Upsert without item id", func(t *testing.T) {
		err := handler.UpsertItem(ctx, &FTSItem{Content: "no id"})
		assert.Error(t, err, "Expected error for an empty item id")
	})

	t.Run("Delete removes the item", func(t *testing.T) {
		require.NoError(t, handler.DeleteItem(ctx, "a"))

		matches, err := handler.Search(ctx, "router handlers", 5)
		require.NoError(t, err)
		assert.NotContains(t, matchIDs(matches), "a", "Expected the deleted item to be gone")
	})

	t.Run("Statistics count items by language", func(t *testing.T) {
		stats, err := handler.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalItems, "Expected two remaining items")
		assert.Equal(t, 2, stats.Languages[""], "Expected both remaining items without language")
		assert.Greater(t, stats.TotalBytes, int64(0), "Expected a positive size")
	})
}

func TestQueryTerms(t *testing.T) {
	t.Run("Terms are lowercased, distinct and at least three characters", func(t *testing.T) {
		assert.Equal(t, []string{"router", "path"}, queryTerms("Router by PATH router"))
	})

	t.Run("Match query quotes every term", func(t *testing.T) {
		assert.Equal(t, `"router" AND "path"`, ftsMatchQuery([]string{"router", "path"}))
		assert.Equal(t, "", ftsMatchQuery(nil))
	})
}
