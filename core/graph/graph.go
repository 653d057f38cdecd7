package graph

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

// Graph is an in-memory typed multigraph of knowledge nodes.
//
// Two edges between the same ordered pair may coexist when their types
// differ; inserting an edge with an existing (source, target, type) key
// replaces its weight and metadata. Reads may run concurrently, writes
// are serialized. Every successful write bumps the version, which is used
// to invalidate derived data such as PageRank scores.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[string]*model.KnowledgeNode
	order   []string
	edges   map[model.EdgeKey]*model.KnowledgeEdge
	out     map[string][]model.EdgeKey
	in      map[string][]model.EdgeKey
	version uint64

	rankMu    sync.Mutex
	rankCache *rankCache

	log *slog.Logger
	now func() time.Time
}

// NewGraph creates an empty graph. A nil logger falls back to slog.Default.
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		nodes: map[string]*model.KnowledgeNode{},
		edges: map[model.EdgeKey]*model.KnowledgeEdge{},
		out:   map[string][]model.EdgeKey{},
		in:    map[string][]model.EdgeKey{},
		log:   logger,
		now:   time.Now,
	}
}

// AddNode inserts a node or updates the type, content and metadata of an
// existing one. The creation time of an existing node is kept.
func (g *Graph) AddNode(id string, nodeType model.NodeType, content string, metadata model.Metadata) (*model.KnowledgeNode, error) {
	if id == "" {
		return nil, helper.NewError("add node", fmt.Errorf("node id is empty"))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	node, exists := g.nodes[id]
	if !exists {
		node = &model.KnowledgeNode{ID: id, CreatedAt: g.now()}
		g.nodes[id] = node
		g.order = append(g.order, id)
	}
	node.Type = nodeType
	node.Content = content
	node.Metadata = metadata.Clone()
	g.version++

	copied := *node
	return &copied, nil
}

// AddEdge inserts a directed edge. Both endpoints must exist, otherwise an
// *model.UnknownNodeError is returned and the graph is left unchanged.
func (g *Graph) AddEdge(source, target string, edgeType model.EdgeType, weight float64, metadata model.Metadata) error {
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return helper.NewError("add edge", fmt.Errorf("weight %v outside [0, 1]", weight))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[source]; !ok {
		return &model.UnknownNodeError{NodeID: source}
	}
	if _, ok := g.nodes[target]; !ok {
		return &model.UnknownNodeError{NodeID: target}
	}

	key := model.EdgeKey{Source: source, Target: target, Type: edgeType}
	if edge, exists := g.edges[key]; exists {
		edge.Weight = weight
		edge.Metadata = metadata.Clone()
		g.version++
		return nil
	}

	g.edges[key] = &model.KnowledgeEdge{
		Source:    source,
		Target:    target,
		Type:      edgeType,
		Weight:    weight,
		Metadata:  metadata.Clone(),
		CreatedAt: g.now(),
	}
	g.out[source] = append(g.out[source], key)
	g.in[target] = append(g.in[target], key)
	g.version++

	return nil
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (*model.KnowledgeNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	copied := *node
	return &copied, true
}

// HasNode reports whether a node with the given id exists.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, ok := g.nodes[id]
	return ok
}

// Neighbors returns copies of the outgoing edges of a node in insertion order.
func (g *Graph) Neighbors(id string) []*model.KnowledgeEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.copyEdges(g.out[id])
}

// Predecessors returns copies of the incoming edges of a node in insertion order.
func (g *Graph) Predecessors(id string) []*model.KnowledgeEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.copyEdges(g.in[id])
}

func (g *Graph) copyEdges(keys []model.EdgeKey) []*model.KnowledgeEdge {
	edges := make([]*model.KnowledgeEdge, 0, len(keys))
	for _, key := range keys {
		copied := *g.edges[key]
		edges = append(edges, &copied)
	}
	return edges
}

// NodesOfType returns the ids of all nodes of a type in insertion order.
func (g *Graph) NodesOfType(nodeType model.NodeType) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := []string{}
	for _, id := range g.order {
		if g.nodes[id].Type == nodeType {
			ids = append(ids, id)
		}
	}
	return ids
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []*model.KnowledgeNode {
	nodes, _ := g.contents()
	return nodes
}

// Edges returns copies of all edges grouped by source in node insertion order.
func (g *Graph) Edges() []*model.KnowledgeEdge {
	_, edges := g.contents()
	return edges
}

// contents returns consistent copies of all nodes and edges.
func (g *Graph) contents() ([]*model.KnowledgeNode, []*model.KnowledgeEdge) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*model.KnowledgeNode, 0, len(g.order))
	edges := make([]*model.KnowledgeEdge, 0, len(g.edges))
	for _, id := range g.order {
		copied := *g.nodes[id]
		nodes = append(nodes, &copied)
		edges = append(edges, g.copyEdges(g.out[id])...)
	}
	return nodes, edges
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges, counting type-distinct parallel edges separately.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Version changes whenever the graph is written to.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// arc is a collapsed edge inside a snapshot. Parallel edges of different
// types between the same pair are merged, see snapshot.
type arc struct {
	to        int
	minWeight float64
	sumWeight float64
}

// snapshot is an immutable index based copy of the graph topology that
// algorithms run on without holding the graph lock.
type snapshot struct {
	version uint64
	ids     []string
	index   map[string]int
	types   []model.NodeType
	out     [][]arc
}

func (g *Graph) snapshot() *snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := &snapshot{
		version: g.version,
		ids:     make([]string, len(g.order)),
		index:   make(map[string]int, len(g.order)),
		types:   make([]model.NodeType, len(g.order)),
		out:     make([][]arc, len(g.order)),
	}
	for i, id := range g.order {
		s.ids[i] = id
		s.index[id] = i
		s.types[i] = g.nodes[id].Type
	}

	for i, id := range g.order {
		position := map[int]int{}
		for _, key := range g.out[id] {
			edge := g.edges[key]
			to := s.index[edge.Target]
			if p, ok := position[to]; ok {
				a := &s.out[i][p]
				a.sumWeight += edge.Weight
				if edge.Weight < a.minWeight {
					a.minWeight = edge.Weight
				}
				continue
			}
			position[to] = len(s.out[i])
			s.out[i] = append(s.out[i], arc{to: to, minWeight: edge.Weight, sumWeight: edge.Weight})
		}
	}

	return s
}

// hops returns the unweighted hop distance from start to every node
// reachable within maxSteps. Unreachable nodes are absent.
func (s *snapshot) hops(start, maxSteps int) map[int]int {
	dist := map[int]int{start: 0}
	frontier := []int{start}
	for depth := 1; depth <= maxSteps && len(frontier) > 0; depth++ {
		next := []int{}
		for _, u := range frontier {
			for _, a := range s.out[u] {
				if _, seen := dist[a.to]; seen {
					continue
				}
				dist[a.to] = depth
				next = append(next, a.to)
			}
		}
		frontier = next
	}
	return dist
}
