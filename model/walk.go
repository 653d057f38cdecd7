package model

// WalkMethod names the graph strategy that produced a walk result.
type WalkMethod string

const (
	WalkMethodBFS          WalkMethod = "bfs"
	WalkMethodPageRank     WalkMethod = "pagerank"
	WalkMethodShortestPath WalkMethod = "shortest_path"
)

// WalkResult is a goal node found by a reasoning walk.
type WalkResult struct {
	NodeID         string     `json:"node_id"`
	NodeType       NodeType   `json:"node_type"`
	StartNode      string     `json:"start_node"`
	Path           []string   `json:"path,omitempty"`
	Method         WalkMethod `json:"method"`
	CompositeScore float64    `json:"composite_score"`
	Depth          int        `json:"depth"`
	Importance     float64    `json:"importance,omitempty"`
	PathWeight     float64    `json:"path_weight,omitempty"`
}

// ToRetrievalResult converts a walk result into an unranked graph channel result.
func (w *WalkResult) ToRetrievalResult() *RetrievalResult {
	return &RetrievalResult{
		ItemID: w.NodeID,
		Score:  w.CompositeScore,
		Source: StrategyGraph,
		Metadata: Metadata{
			"node_type":   string(w.NodeType),
			"walk_method": string(w.Method),
			"start_node":  w.StartNode,
			"depth":       w.Depth,
		},
	}
}
