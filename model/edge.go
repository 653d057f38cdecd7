package model

import "time"

// EdgeType represents the type of relationship between nodes
type EdgeType string

const (
	EdgeTypeSimilarity   EdgeType = "similarity"
	EdgeTypeDependency   EdgeType = "dependency"
	EdgeTypeTemporal     EdgeType = "temporal"
	EdgeTypeConversation EdgeType = "conversation"
	EdgeTypeEditRelation EdgeType = "edit_relation"
	EdgeTypeMention      EdgeType = "mention"
	EdgeTypeReference    EdgeType = "reference"
	EdgeTypeCoOccurrence EdgeType = "co_occurrence"
)

// KnowledgeEdge is a directed, weighted relation between two nodes.
// Two edges between the same pair may coexist when their types differ.
type KnowledgeEdge struct {
	Source    string    `json:"source_id"`
	Target    string    `json:"target_id"`
	Type      EdgeType  `json:"edge_type"`
	Weight    float64   `json:"weight"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EdgeKey identifies an edge inside the multigraph.
type EdgeKey struct {
	Source string
	Target string
	Type   EdgeType
}

// Key returns the multigraph identity of the edge.
func (e *KnowledgeEdge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Type: e.Type}
}
