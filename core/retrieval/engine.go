package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/siherrmann/nexus/core/pipeline"
	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

// ChunkSearcher is the similarity search of database.ChunksDBHandler.
type ChunkSearcher interface {
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64, documentRIDs []uuid.UUID) ([]*model.Chunk, error)
}

// Engine is the vector channel: it embeds the query and runs a pgvector
// similarity search over the stored chunks.
type Engine struct {
	chunks       ChunkSearcher
	embed        pipeline.EmbedFunc
	threshold    float64
	documentRIDs []uuid.UUID
}

// NewEngine creates a new vector retrieval engine
func NewEngine(chunks ChunkSearcher, embed pipeline.EmbedFunc, config model.QueryConfig) *Engine {
	return &Engine{
		chunks:       chunks,
		embed:        embed,
		threshold:    config.SimilarityThreshold,
		documentRIDs: config.DocumentRIDs,
	}
}

// Search returns the k chunks most similar to the query, best first.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]*model.RetrievalResult, error) {
	if e.chunks == nil || e.embed == nil {
		return nil, helper.NewError("vector search", fmt.Errorf("engine not initialized"))
	}

	embedding, err := e.embed(query)
	if err != nil {
		return nil, helper.NewError("generate embedding", err)
	}

	return e.VectorRetrieve(ctx, embedding, k)
}

// VectorRetrieve performs pure vector similarity search for an embedding
func (e *Engine) VectorRetrieve(ctx context.Context, embedding []float32, k int) ([]*model.RetrievalResult, error) {
	chunks, err := e.chunks.SelectChunksBySimilarity(ctx, embedding, k, e.threshold, e.documentRIDs)
	if err != nil {
		return nil, helper.NewError("select chunks by similarity", err)
	}

	results := make([]*model.RetrievalResult, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, chunk.ToRetrievalResult(model.StrategyVector))
	}

	return results, nil
}
