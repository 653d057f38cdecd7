package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/siherrmann/nexus/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Create test graph: A -> B -> C
//                    A -> D
func traversalGraph(t *testing.T) *Graph {
	t.Helper()
	g := newTestGraph(t)
	mustAddNode(t, g, "A", model.NodeTypeDocument, "Node A")
	mustAddNode(t, g, "B", model.NodeTypeFunction, "Node B")
	mustAddNode(t, g, "C", model.NodeTypeClass, "Node C")
	mustAddNode(t, g, "D", model.NodeTypeDocument, "Node D")
	mustAddEdge(t, g, "A", "B", model.EdgeTypeDependency, 1.0)
	mustAddEdge(t, g, "A", "D", model.EdgeTypeSimilarity, 0.8)
	mustAddEdge(t, g, "B", "C", model.EdgeTypeDependency, 1.0)
	return g
}

func TestBFS(t *testing.T) {
	ctx := context.Background()
	g := traversalGraph(t)

	t.Run("BFS from source with max hops 1", func(t *testing.T) {
		results, err := BFS(ctx, g, "A", 1, nil, false)

		assert.NoError(t, err, "Expected BFS to not return an error")
		require.Len(t, results, 3, "Expected A, B and D")
		assert.Equal(t, "A", results[0].Node.ID, "Expected first result to be source")
		assert.Equal(t, 0, results[0].Distance, "Expected source distance to be 0")
		assert.Nil(t, results[0].Edge, "Expected source to have no incoming edge")
		assert.Equal(t, "B", results[1].Node.ID)
		assert.Equal(t, "D", results[2].Node.ID)
	})

	t.Run("BFS from source with max hops 2", func(t *testing.T) {
		results, err := BFS(ctx, g, "A", 2, nil, false)

		require.NoError(t, err)
		require.Len(t, results, 4, "Expected all nodes")
		last := results[3]
		assert.Equal(t, "C", last.Node.ID)
		assert.Equal(t, 2, last.Distance)
		assert.Equal(t, []string{"A", "B", "C"}, last.Path)
		assert.Equal(t, model.EdgeTypeDependency, last.Edge.Type)
	})

	t.Run("BFS filters edge types", func(t *testing.T) {
		results, err := BFS(ctx, g, "A", 2, []model.EdgeType{model.EdgeTypeSimilarity}, false)

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "D", results[1].Node.ID)
	})

	t.Run("BFS follows incoming edges when bidirectional", func(t *testing.T) {
		results, err := BFS(ctx, g, "C", 2, nil, true)

		require.NoError(t, err)
		ids := []string{}
		for _, r := range results {
			ids = append(ids, r.Node.ID)
		}
		assert.Equal(t, []string{"C", "B", "A"}, ids)
	})

	t.Run("BFS from missing source", func(t *testing.T) {
		_, err := BFS(ctx, g, "missing", 2, nil, false)

		var unknown *model.UnknownNodeError
		assert.True(t, errors.As(err, &unknown), "Expected UnknownNodeError")
	})
}

func TestDFS(t *testing.T) {
	ctx := context.Background()
	g := traversalGraph(t)

	t.Run("DFS visits depth first", func(t *testing.T) {
		results, err := DFS(ctx, g, "A", 3, nil, false)

		require.NoError(t, err)
		ids := []string{}
		for _, r := range results {
			ids = append(ids, r.Node.ID)
		}
		assert.Equal(t, []string{"A", "B", "C", "D"}, ids)
		assert.Equal(t, []string{"A", "B", "C"}, results[2].Path)
	})

	t.Run("DFS respects max hops", func(t *testing.T) {
		results, err := DFS(ctx, g, "A", 0, nil, false)

		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestGetNeighbors(t *testing.T) {
	g := traversalGraph(t)

	t.Run("Returns direct neighbors only", func(t *testing.T) {
		neighbors, err := GetNeighbors(context.Background(), g, "A", nil, false)

		require.NoError(t, err)
		require.Len(t, neighbors, 2)
		assert.Equal(t, "B", neighbors[0].ID)
		assert.Equal(t, "D", neighbors[1].ID)
	})
}

func TestQueryNeighbors(t *testing.T) {
	ctx := context.Background()

	t.Run("Groups neighbors by depth", func(t *testing.T) {
		g := traversalGraph(t)

		byDepth, err := QueryNeighbors(ctx, g, "A", 2, nil)

		require.NoError(t, err)
		require.Len(t, byDepth[1], 2)
		require.Len(t, byDepth[2], 1)
		assert.Equal(t, "C", byDepth[2][0].NodeID)
		assert.Equal(t, model.NodeTypeClass, byDepth[2][0].NodeType)
		assert.Equal(t, model.EdgeTypeDependency, byDepth[2][0].EdgeType)
		assert.Equal(t, "Node C", byDepth[2][0].ContentPreview)
	})

	t.Run("Truncates content previews", func(t *testing.T) {
		g := newTestGraph(t)
		mustAddNode(t, g, "a", model.NodeTypeDocument, "")
		mustAddNode(t, g, "b", model.NodeTypeDocument, strings.Repeat("x", 300))
		mustAddEdge(t, g, "a", "b", model.EdgeTypeSimilarity, 0.5)

		byDepth, err := QueryNeighbors(ctx, g, "a", 1, nil)

		require.NoError(t, err)
		assert.Len(t, byDepth[1][0].ContentPreview, NeighborPreviewLength)
	})

	t.Run("Missing node yields empty result", func(t *testing.T) {
		g := traversalGraph(t)

		byDepth, err := QueryNeighbors(ctx, g, "missing", 2, nil)

		require.NoError(t, err)
		assert.Empty(t, byDepth)
	})

	t.Run("Filters edge types", func(t *testing.T) {
		g := traversalGraph(t)

		byDepth, err := QueryNeighbors(ctx, g, "A", 2, []model.EdgeType{model.EdgeTypeDependency})

		require.NoError(t, err)
		require.Len(t, byDepth[1], 1)
		assert.Equal(t, "B", byDepth[1][0].NodeID)
		assert.Equal(t, "C", byDepth[2][0].NodeID)
	})
}
