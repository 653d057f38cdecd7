package model

import "time"

// NodeType is the open set of knowledge node kinds.
// It is used as the goal predicate of a reasoning walk.
type NodeType string

const (
	NodeTypeDocument     NodeType = "document"
	NodeTypeFunction     NodeType = "function"
	NodeTypeClass        NodeType = "class"
	NodeTypeConversation NodeType = "conversation"
	NodeTypeEdit         NodeType = "edit"
	NodeTypeError        NodeType = "error"
	NodeTypeModule       NodeType = "module"
	NodeTypeSymbol       NodeType = "symbol"
	NodeTypeEntity       NodeType = "entity"
	NodeTypeReference    NodeType = "reference"
)

// KnowledgeNode is a vertex of the reasoning graph.
type KnowledgeNode struct {
	ID        string    `json:"node_id"`
	Type      NodeType  `json:"node_type"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Preview returns the first n runes of the content.
func (n *KnowledgeNode) Preview(length int) string {
	runes := []rune(n.Content)
	if len(runes) <= length {
		return n.Content
	}
	return string(runes[:length])
}
