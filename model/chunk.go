package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a piece of a document that is embedded and indexed for retrieval.
// Its ID doubles as the item id on the vector and fuzzy channels.
type Chunk struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  int64     `json:"document_id"`
	DocumentRID uuid.UUID `json:"document_rid"`
	Content     string    `json:"content"`
	Path        string    `json:"path"` // ltree path
	Embedding   []float32 `json:"embedding,omitempty"`
	StartPos    *int      `json:"start_pos,omitempty"`
	EndPos      *int      `json:"end_pos,omitempty"`
	ChunkIndex  *int      `json:"chunk_index,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// ToRetrievalResult converts a similarity hit into an unranked result of the given strategy.
func (c *Chunk) ToRetrievalResult(strategy Strategy) *RetrievalResult {
	metadata := c.Metadata.Clone()
	metadata["document_rid"] = c.DocumentRID.String()
	metadata["path"] = c.Path
	metadata["content"] = c.Content

	return &RetrievalResult{
		ItemID:   c.ID.String(),
		Score:    c.Similarity,
		Source:   strategy,
		Metadata: metadata,
	}
}
