package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/siherrmann/nexus/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a -> hub -> b, hub -> c, plus an isolated node
func hubGraph(t *testing.T) *Graph {
	t.Helper()
	g := newTestGraph(t)
	mustAddNode(t, g, "a", model.NodeTypeConversation, "question")
	mustAddNode(t, g, "hub", model.NodeTypeDocument, strings.Repeat("h", 120))
	mustAddNode(t, g, "b", model.NodeTypeFunction, "func b")
	mustAddNode(t, g, "c", model.NodeTypeFunction, "func c")
	mustAddNode(t, g, "island", model.NodeTypeError, "panic")
	mustAddEdge(t, g, "a", "hub", model.EdgeTypeConversation, 0.8)
	mustAddEdge(t, g, "hub", "b", model.EdgeTypeDependency, 1.0)
	mustAddEdge(t, g, "hub", "c", model.EdgeTypeDependency, 1.0)
	return g
}

func TestHotspots(t *testing.T) {
	t.Run("Ranks the hub first", func(t *testing.T) {
		g := hubGraph(t)

		hotspots, err := g.Hotspots(context.Background(), 2)

		require.NoError(t, err)
		require.Len(t, hotspots, 2)
		hub := hotspots[0]
		assert.Equal(t, "hub", hub.NodeID)
		assert.InDelta(t, 2.0/12.0, hub.Betweenness, 1e-12)
		assert.InDelta(t, 2.8, hub.Degree, 1e-12)
		assert.Len(t, hub.ContentPreview, NeighborPreviewLength)
		assert.InDelta(t, 0.4*hub.Betweenness+0.4+0.2*hub.Closeness, hub.Score, 1e-12)
	})

	t.Run("Empty graph has no hotspots", func(t *testing.T) {
		hotspots, err := newTestGraph(t).Hotspots(context.Background(), 10)

		require.NoError(t, err)
		assert.Empty(t, hotspots)
	})
}

func TestStatistics(t *testing.T) {
	t.Run("Counts and connectivity", func(t *testing.T) {
		stats := hubGraph(t).Statistics()

		assert.Equal(t, 5, stats.Nodes.Total)
		assert.Equal(t, 2, stats.Nodes.ByType[model.NodeTypeFunction])
		assert.Equal(t, 3, stats.Edges.Total)
		assert.Equal(t, 2, stats.Edges.ByType[model.EdgeTypeDependency])
		assert.InDelta(t, 3.0/20.0, stats.Connectivity.Density, 1e-12)
		assert.Equal(t, 2, stats.Connectivity.ConnectedComponents)
		assert.Equal(t, 0.0, stats.Connectivity.AverageClustering)

		require.Len(t, stats.MostCentral, 5)
		assert.Equal(t, "hub", stats.MostCentral[0].NodeID)
		assert.InDelta(t, 0.75, stats.MostCentral[0].Centrality, 1e-12)
		assert.Len(t, stats.MostCentral[0].ContentPreview, ExportPreviewLength)
	})

	t.Run("Empty graph", func(t *testing.T) {
		stats := newTestGraph(t).Statistics()

		assert.Equal(t, 0, stats.Nodes.Total)
		assert.Empty(t, stats.MostCentral)
	})
}

func TestExport(t *testing.T) {
	t.Run("Exports previews and sorted type lists", func(t *testing.T) {
		export := hubGraph(t).Export()

		require.Len(t, export.Nodes, 5)
		require.Len(t, export.Edges, 3)
		assert.Len(t, export.Nodes[1].ContentPreview, ExportPreviewLength)
		assert.Equal(t, 5, export.Metadata.TotalNodes)
		assert.Equal(t, []model.NodeType{"conversation", "document", "error", "function"}, export.Metadata.NodeTypes)
		assert.Equal(t, []model.EdgeType{"conversation", "dependency"}, export.Metadata.EdgeTypes)
		assert.Equal(t, testTime, export.Metadata.ExportedAt)
	})
}
