package graph

import (
	"container/heap"
	"context"
	"math"
	"sort"
	"time"

	"github.com/siherrmann/nexus/model"
)

const (
	hotspotBetweennessWeight = 0.4
	hotspotDegreeWeight      = 0.4
	hotspotClosenessWeight   = 0.2

	// ExportPreviewLength is the number of content runes in exported nodes.
	ExportPreviewLength = 50
)

// Hotspot is a highly connected node.
type Hotspot struct {
	NodeID         string         `json:"node_id"`
	NodeType       model.NodeType `json:"node_type"`
	Score          float64        `json:"hotspot_score"`
	Betweenness    float64        `json:"betweenness"`
	Degree         float64        `json:"degree"`
	Closeness      float64        `json:"closeness"`
	ContentPreview string         `json:"content_preview"`
}

// Hotspots ranks nodes by 0.4*betweenness + 0.4*weighted degree relative
// to the maximum + 0.2*closeness and returns the best limit nodes.
func (g *Graph) Hotspots(ctx context.Context, limit int) ([]*Hotspot, error) {
	s := g.snapshot()
	hotspots := []*Hotspot{}
	if len(s.ids) == 0 {
		return hotspots, nil
	}

	betweenness, err := s.betweenness(ctx)
	if err != nil {
		return nil, err
	}
	closeness := s.closeness()
	degree := s.weightedDegree()

	maxDegree := 0.0
	for _, d := range degree {
		maxDegree = math.Max(maxDegree, d)
	}
	if maxDegree == 0 {
		maxDegree = 1
	}

	for i, id := range s.ids {
		node, ok := g.Node(id)
		if !ok {
			continue
		}
		hotspots = append(hotspots, &Hotspot{
			NodeID:         id,
			NodeType:       s.types[i],
			Score:          hotspotBetweennessWeight*betweenness[i] + hotspotDegreeWeight*degree[i]/maxDegree + hotspotClosenessWeight*closeness[i],
			Betweenness:    betweenness[i],
			Degree:         degree[i],
			Closeness:      closeness[i],
			ContentPreview: node.Preview(NeighborPreviewLength),
		})
	}

	sort.SliceStable(hotspots, func(i, j int) bool {
		return hotspots[i].Score > hotspots[j].Score
	})
	if limit > 0 && len(hotspots) > limit {
		hotspots = hotspots[:limit]
	}
	return hotspots, nil
}

func (s *snapshot) weightedDegree() []float64 {
	degree := make([]float64, len(s.ids))
	for u := range s.out {
		for _, a := range s.out[u] {
			degree[u] += a.sumWeight
			degree[a.to] += a.sumWeight
		}
	}
	return degree
}

// betweenness computes normalized betweenness centrality with edge weight
// as distance (Brandes).
func (s *snapshot) betweenness(ctx context.Context) ([]float64, error) {
	n := len(s.ids)
	centrality := make([]float64, n)

	for source := 0; source < n; source++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var stack []int
		preds := make([][]int, n)
		sigma := make([]float64, n)
		dist := make([]float64, n)
		done := make([]bool, n)
		for i := range dist {
			dist[i] = math.Inf(1)
		}
		sigma[source] = 1
		dist[source] = 0

		seq := 0
		q := &pathQueue{{node: source, dist: 0, seq: seq}}
		for q.Len() > 0 {
			item := heap.Pop(q).(pathItem)
			u := item.node
			if done[u] {
				continue
			}
			done[u] = true
			stack = append(stack, u)

			for _, a := range s.out[u] {
				candidate := dist[u] + a.minWeight
				switch {
				case candidate < dist[a.to]:
					dist[a.to] = candidate
					sigma[a.to] = sigma[u]
					preds[a.to] = []int{u}
					seq++
					heap.Push(q, pathItem{node: a.to, dist: candidate, seq: seq})
				case candidate == dist[a.to] && !done[a.to]:
					sigma[a.to] += sigma[u]
					preds[a.to] = append(preds[a.to], u)
				}
			}
		}

		delta := make([]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != source {
				centrality[w] += delta[w]
			}
		}
	}

	if n > 2 {
		scale := 1 / float64((n-1)*(n-2))
		for i := range centrality {
			centrality[i] *= scale
		}
	}
	return centrality, nil
}

// closeness uses incoming hop distances and scales by the share of nodes
// that can reach the node, so small components do not dominate.
func (s *snapshot) closeness() []float64 {
	n := len(s.ids)
	closeness := make([]float64, n)
	if n < 2 {
		return closeness
	}

	reverse := make([][]int, n)
	for u := range s.out {
		for _, a := range s.out[u] {
			reverse[a.to] = append(reverse[a.to], u)
		}
	}

	for target := 0; target < n; target++ {
		dist := map[int]int{target: 0}
		queue := []int{target}
		total := 0
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, u := range reverse[v] {
				if _, seen := dist[u]; seen {
					continue
				}
				dist[u] = dist[v] + 1
				total += dist[u]
				queue = append(queue, u)
			}
		}
		reached := float64(len(dist) - 1)
		if total > 0 {
			closeness[target] = reached / float64(total) * reached / float64(n-1)
		}
	}
	return closeness
}

// CentralNode is a node ranked by degree centrality.
type CentralNode struct {
	NodeID         string         `json:"node_id"`
	NodeType       model.NodeType `json:"node_type"`
	Centrality     float64        `json:"centrality_score"`
	ContentPreview string         `json:"content_preview"`
}

// Statistics summarizes the graph.
type Statistics struct {
	Nodes struct {
		Total  int                    `json:"total"`
		ByType map[model.NodeType]int `json:"by_type"`
	} `json:"nodes"`
	Edges struct {
		Total  int                    `json:"total"`
		ByType map[model.EdgeType]int `json:"by_type"`
	} `json:"edges"`
	Connectivity struct {
		Density             float64 `json:"density"`
		ConnectedComponents int     `json:"connected_components"`
		AverageClustering   float64 `json:"average_clustering"`
	} `json:"connectivity"`
	MostCentral []CentralNode `json:"most_central"`
}

// Statistics counts nodes and edges by type and reports density, weakly
// connected components, average clustering and the five nodes with the
// highest degree centrality.
func (g *Graph) Statistics() *Statistics {
	nodes, edges := g.contents()

	stats := &Statistics{MostCentral: []CentralNode{}}
	stats.Nodes.Total = len(nodes)
	stats.Nodes.ByType = map[model.NodeType]int{}
	stats.Edges.Total = len(edges)
	stats.Edges.ByType = map[model.EdgeType]int{}

	for _, node := range nodes {
		stats.Nodes.ByType[node.Type]++
	}
	for _, edge := range edges {
		stats.Edges.ByType[edge.Type]++
	}

	n := len(nodes)
	if n == 0 {
		return stats
	}
	if n > 1 {
		stats.Connectivity.Density = float64(len(edges)) / float64(n*(n-1))
	}

	index := make(map[string]int, n)
	for i, node := range nodes {
		index[node.ID] = i
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	degree := make([]int, n)
	undirected := make([]map[int]bool, n)
	for i := range undirected {
		undirected[i] = map[int]bool{}
	}
	for _, edge := range edges {
		u, v := index[edge.Source], index[edge.Target]
		degree[u]++
		degree[v]++
		parent[find(u)] = find(v)
		if u != v {
			undirected[u][v] = true
			undirected[v][u] = true
		}
	}

	components := 0
	for i := range parent {
		if find(i) == i {
			components++
		}
	}
	stats.Connectivity.ConnectedComponents = components
	stats.Connectivity.AverageClustering = averageClustering(undirected)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return degree[order[a]] > degree[order[b]]
	})
	for _, i := range order {
		if len(stats.MostCentral) == 5 {
			break
		}
		centrality := 0.0
		if n > 1 {
			centrality = float64(degree[i]) / float64(n-1)
		}
		stats.MostCentral = append(stats.MostCentral, CentralNode{
			NodeID:         nodes[i].ID,
			NodeType:       nodes[i].Type,
			Centrality:     centrality,
			ContentPreview: nodes[i].Preview(ExportPreviewLength),
		})
	}

	return stats
}

func averageClustering(adjacency []map[int]bool) float64 {
	if len(adjacency) == 0 {
		return 0
	}
	total := 0.0
	for _, neighbors := range adjacency {
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		for a := range neighbors {
			for b := range neighbors {
				if a < b && adjacency[a][b] {
					links++
				}
			}
		}
		total += float64(links) / float64(k*(k-1)/2)
	}
	return total / float64(len(adjacency))
}

// ExportedNode is a node in the visualization export.
type ExportedNode struct {
	ID             string         `json:"id"`
	Type           model.NodeType `json:"type"`
	ContentPreview string         `json:"content_preview"`
	Metadata       model.Metadata `json:"metadata"`
}

// ExportedEdge is an edge in the visualization export.
type ExportedEdge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Type   model.EdgeType `json:"type"`
	Weight float64        `json:"weight"`
}

// Export is the graph serialized for visualization clients.
type Export struct {
	Nodes    []ExportedNode `json:"nodes"`
	Edges    []ExportedEdge `json:"edges"`
	Metadata struct {
		TotalNodes int              `json:"total_nodes"`
		TotalEdges int              `json:"total_edges"`
		NodeTypes  []model.NodeType `json:"node_types"`
		EdgeTypes  []model.EdgeType `json:"edge_types"`
		ExportedAt time.Time        `json:"exported_at"`
	} `json:"metadata"`
}

// Export returns all nodes and edges with short content previews. Type
// lists are sorted.
func (g *Graph) Export() *Export {
	nodes, edges := g.contents()

	export := &Export{
		Nodes: make([]ExportedNode, 0, len(nodes)),
		Edges: make([]ExportedEdge, 0, len(edges)),
	}

	nodeTypes := map[model.NodeType]bool{}
	for _, node := range nodes {
		nodeTypes[node.Type] = true
		export.Nodes = append(export.Nodes, ExportedNode{
			ID:             node.ID,
			Type:           node.Type,
			ContentPreview: node.Preview(ExportPreviewLength),
			Metadata:       node.Metadata,
		})
	}

	edgeTypes := map[model.EdgeType]bool{}
	for _, edge := range edges {
		edgeTypes[edge.Type] = true
		export.Edges = append(export.Edges, ExportedEdge{
			Source: edge.Source,
			Target: edge.Target,
			Type:   edge.Type,
			Weight: edge.Weight,
		})
	}

	export.Metadata.TotalNodes = len(nodes)
	export.Metadata.TotalEdges = len(edges)
	export.Metadata.NodeTypes = make([]model.NodeType, 0, len(nodeTypes))
	for t := range nodeTypes {
		export.Metadata.NodeTypes = append(export.Metadata.NodeTypes, t)
	}
	sort.Slice(export.Metadata.NodeTypes, func(i, j int) bool {
		return export.Metadata.NodeTypes[i] < export.Metadata.NodeTypes[j]
	})
	export.Metadata.EdgeTypes = make([]model.EdgeType, 0, len(edgeTypes))
	for t := range edgeTypes {
		export.Metadata.EdgeTypes = append(export.Metadata.EdgeTypes, t)
	}
	sort.Slice(export.Metadata.EdgeTypes, func(i, j int) bool {
		return export.Metadata.EdgeTypes[i] < export.Metadata.EdgeTypes[j]
	})
	export.Metadata.ExportedAt = g.now()

	return export
}
