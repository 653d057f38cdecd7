package graph

import (
	"context"
	"log/slog"

	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

// Store persists the nodes and edges of a graph.
type Store interface {
	UpsertNodes(ctx context.Context, nodes []*model.KnowledgeNode) error
	UpsertEdges(ctx context.Context, edges []*model.KnowledgeEdge) error
	SelectNodes(ctx context.Context) ([]*model.KnowledgeNode, error)
	SelectEdges(ctx context.Context) ([]*model.KnowledgeEdge, error)
}

// Save writes all nodes and then all edges to the store.
func (g *Graph) Save(ctx context.Context, store Store) error {
	nodes, edges := g.contents()

	if err := store.UpsertNodes(ctx, nodes); err != nil {
		return helper.NewError("save nodes", err)
	}
	if err := store.UpsertEdges(ctx, edges); err != nil {
		return helper.NewError("save edges", err)
	}

	g.log.Info("Saved graph", slog.Int("nodes", len(nodes)), slog.Int("edges", len(edges)))
	return nil
}

// Load adds all stored nodes and edges to the graph. Stored creation times
// are kept. Edges whose endpoints are missing are skipped.
func (g *Graph) Load(ctx context.Context, store Store) error {
	nodes, err := store.SelectNodes(ctx)
	if err != nil {
		return helper.NewError("load nodes", err)
	}
	edges, err := store.SelectEdges(ctx)
	if err != nil {
		return helper.NewError("load edges", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, node := range nodes {
		copied := *node
		if copied.Metadata == nil {
			copied.Metadata = model.Metadata{}
		}
		if _, exists := g.nodes[copied.ID]; !exists {
			g.order = append(g.order, copied.ID)
		}
		g.nodes[copied.ID] = &copied
	}

	skipped := 0
	for _, edge := range edges {
		_, sourceOk := g.nodes[edge.Source]
		_, targetOk := g.nodes[edge.Target]
		if !sourceOk || !targetOk {
			skipped++
			continue
		}
		copied := *edge
		key := copied.Key()
		if _, exists := g.edges[key]; !exists {
			g.out[copied.Source] = append(g.out[copied.Source], key)
			g.in[copied.Target] = append(g.in[copied.Target], key)
		}
		g.edges[key] = &copied
	}
	g.version++

	g.log.Info("Loaded graph",
		slog.Int("nodes", len(nodes)),
		slog.Int("edges", len(edges)-skipped),
		slog.Int("skipped_edges", skipped),
	)
	return nil
}
