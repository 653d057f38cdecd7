package graph

import (
	"context"

	"github.com/siherrmann/nexus/model"
)

// GraphDB defines the read operations traversals need. *Graph implements it.
type GraphDB interface {
	Node(id string) (*model.KnowledgeNode, bool)
	Neighbors(id string) []*model.KnowledgeEdge
	Predecessors(id string) []*model.KnowledgeEdge
}

// TraversalResult contains a node and its distance from the source
type TraversalResult struct {
	Node     *model.KnowledgeNode
	Edge     *model.KnowledgeEdge // Edge the node was reached through, nil for the source
	Distance int
	Path     []string // Path from source to this node
}

// NeighborInfo describes a node reached by QueryNeighbors.
type NeighborInfo struct {
	NodeID         string         `json:"node_id"`
	NodeType       model.NodeType `json:"node_type"`
	EdgeType       model.EdgeType `json:"edge_type"`
	Weight         float64        `json:"weight"`
	Depth          int            `json:"depth"`
	ContentPreview string         `json:"content_preview"`
}

// NeighborPreviewLength is the number of content runes in a NeighborInfo preview.
const NeighborPreviewLength = 100

// step is an edge leaving current, optionally followed backwards.
type step struct {
	edge   *model.KnowledgeEdge
	target string
}

func steps(db GraphDB, nodeID string, edgeTypes []model.EdgeType, followBidirectional bool) []step {
	var result []step
	for _, edge := range db.Neighbors(nodeID) {
		if matchesEdgeType(edge.Type, edgeTypes) {
			result = append(result, step{edge: edge, target: edge.Target})
		}
	}
	if followBidirectional {
		for _, edge := range db.Predecessors(nodeID) {
			if matchesEdgeType(edge.Type, edgeTypes) {
				result = append(result, step{edge: edge, target: edge.Source})
			}
		}
	}
	return result
}

func matchesEdgeType(edgeType model.EdgeType, edgeTypes []model.EdgeType) bool {
	if len(edgeTypes) == 0 {
		return true
	}
	for _, t := range edgeTypes {
		if t == edgeType {
			return true
		}
	}
	return false
}

// BFS performs breadth-first search from a source node. The source is the
// first result. An empty edgeTypes list follows every edge type, with
// followBidirectional incoming edges are followed as well.
func BFS(ctx context.Context, db GraphDB, sourceID string, maxHops int, edgeTypes []model.EdgeType, followBidirectional bool) ([]*TraversalResult, error) {
	sourceNode, ok := db.Node(sourceID)
	if !ok {
		return nil, &model.UnknownNodeError{NodeID: sourceID}
	}

	visited := map[string]bool{sourceID: true}
	queue := []*TraversalResult{{
		Node:     sourceNode,
		Distance: 0,
		Path:     []string{sourceID},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		current := queue[0]
		queue = queue[1:]

		results = append(results, current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		for _, s := range steps(db, current.Node.ID, edgeTypes, followBidirectional) {
			if visited[s.target] {
				continue
			}

			targetNode, ok := db.Node(s.target)
			if !ok {
				continue
			}
			visited[s.target] = true

			newPath := make([]string, len(current.Path), len(current.Path)+1)
			copy(newPath, current.Path)

			queue = append(queue, &TraversalResult{
				Node:     targetNode,
				Edge:     s.edge,
				Distance: current.Distance + 1,
				Path:     append(newPath, s.target),
			})
		}
	}

	return results, nil
}

// DFS performs depth-first search from a source node
func DFS(ctx context.Context, db GraphDB, sourceID string, maxHops int, edgeTypes []model.EdgeType, followBidirectional bool) ([]*TraversalResult, error) {
	sourceNode, ok := db.Node(sourceID)
	if !ok {
		return nil, &model.UnknownNodeError{NodeID: sourceID}
	}

	visited := make(map[string]bool)
	var results []*TraversalResult

	dfsRecursive(ctx, db, sourceNode, nil, 0, maxHops, []string{sourceID}, edgeTypes, followBidirectional, visited, &results)

	return results, ctx.Err()
}

// dfsRecursive is the recursive helper for DFS
func dfsRecursive(
	ctx context.Context,
	db GraphDB,
	current *model.KnowledgeNode,
	via *model.KnowledgeEdge,
	distance int,
	maxHops int,
	path []string,
	edgeTypes []model.EdgeType,
	followBidirectional bool,
	visited map[string]bool,
	results *[]*TraversalResult,
) {
	if ctx.Err() != nil {
		return
	}

	visited[current.ID] = true

	pathCopy := make([]string, len(path))
	copy(pathCopy, path)
	*results = append(*results, &TraversalResult{
		Node:     current,
		Edge:     via,
		Distance: distance,
		Path:     pathCopy,
	})

	if distance >= maxHops {
		return
	}

	for _, s := range steps(db, current.ID, edgeTypes, followBidirectional) {
		if visited[s.target] {
			continue
		}

		targetNode, ok := db.Node(s.target)
		if !ok {
			continue
		}

		newPath := make([]string, len(path), len(path)+1)
		copy(newPath, path)

		dfsRecursive(ctx, db, targetNode, s.edge, distance+1, maxHops, append(newPath, s.target), edgeTypes, followBidirectional, visited, results)
	}
}

// GetNeighbors retrieves immediate neighbors (1-hop) of a node
func GetNeighbors(ctx context.Context, db GraphDB, nodeID string, edgeTypes []model.EdgeType, followBidirectional bool) ([]*model.KnowledgeNode, error) {
	results, err := BFS(ctx, db, nodeID, 1, edgeTypes, followBidirectional)
	if err != nil {
		return nil, err
	}

	// Skip the source node itself (first result)
	neighbors := make([]*model.KnowledgeNode, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].Node)
	}

	return neighbors, nil
}

// QueryNeighbors returns the outgoing neighborhood of a node grouped by
// depth. Every edge is reported, so a node reachable over several edges
// may appear more than once. A missing node yields an empty map.
func QueryNeighbors(ctx context.Context, db GraphDB, nodeID string, maxDepth int, edgeTypes []model.EdgeType) (map[int][]NeighborInfo, error) {
	byDepth := map[int][]NeighborInfo{}
	if _, ok := db.Node(nodeID); !ok || maxDepth <= 0 {
		return byDepth, nil
	}

	type entry struct {
		id    string
		depth int
	}
	visited := map[string]bool{}
	queue := []entry{{id: nodeID, depth: 0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return byDepth, err
		}

		current := queue[0]
		queue = queue[1:]
		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		for _, s := range steps(db, current.id, edgeTypes, false) {
			neighbor, ok := db.Node(s.target)
			if !ok {
				continue
			}

			depth := current.depth + 1
			byDepth[depth] = append(byDepth[depth], NeighborInfo{
				NodeID:         neighbor.ID,
				NodeType:       neighbor.Type,
				EdgeType:       s.edge.Type,
				Weight:         s.edge.Weight,
				Depth:          depth,
				ContentPreview: neighbor.Preview(NeighborPreviewLength),
			})

			if depth < maxDepth {
				queue = append(queue, entry{id: neighbor.ID, depth: depth})
			}
		}
	}

	return byDepth, nil
}
