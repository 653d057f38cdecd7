package pipeline

import (
	"fmt"

	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

// ChunkFunc splits text into chunks with their hierarchical paths.
// Paths follow the ltree format (e.g. "doc_1.chunk3").
type ChunkFunc func(text string, basePath string) ([]ChunkWithPath, error)

// EmbedFunc generates the embedding of a text.
type EmbedFunc func(text string) ([]float32, error)

// EntityExtractFunc finds named entities in a text and returns them as
// entity nodes of the knowledge graph.
type EntityExtractFunc func(text string) ([]*model.KnowledgeNode, error)

// RelationExtractFunc links the node sourceID to what the text mentions
// or cites. entities are the nodes already extracted from the same text.
type RelationExtractFunc func(text string, sourceID string, entities []*model.KnowledgeNode) (*Extraction, error)

// ChunkWithPath represents a chunk with its hierarchical path
type ChunkWithPath struct {
	Content    string
	Path       string // ltree path
	StartPos   *int
	EndPos     *int
	ChunkIndex *int
	Metadata   model.Metadata
}

// Extraction is a fragment of the knowledge graph produced from text or code.
type Extraction struct {
	Nodes []*model.KnowledgeNode
	Edges []*model.KnowledgeEdge
}

// Merge appends the nodes and edges of other.
func (e *Extraction) Merge(other *Extraction) {
	if other == nil {
		return
	}
	e.Nodes = append(e.Nodes, other.Nodes...)
	e.Edges = append(e.Edges, other.Edges...)
}

// Empty reports whether the extraction holds nothing.
func (e *Extraction) Empty() bool {
	return e == nil || (len(e.Nodes) == 0 && len(e.Edges) == 0)
}

// Pipeline combines chunking, embedding and optional graph extraction.
type Pipeline struct {
	Chunker           ChunkFunc
	Embedder          EmbedFunc
	EntityExtractor   EntityExtractFunc   // Optional
	RelationExtractor RelationExtractFunc // Optional
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Chunker:  chunker,
		Embedder: embedder,
	}
}

// SetEntityExtractor sets the entity extraction function
func (p *Pipeline) SetEntityExtractor(extractor EntityExtractFunc) {
	p.EntityExtractor = extractor
}

// SetRelationExtractor sets the relation extraction function
func (p *Pipeline) SetRelationExtractor(extractor RelationExtractFunc) {
	p.RelationExtractor = extractor
}

// ProcessingResult contains the embedded chunks and the graph fragment
// extracted from them.
type ProcessingResult struct {
	Chunks []*model.Chunk
	Graph  *Extraction
}

// Process splits and embeds text, returning the chunks only.
func (p *Pipeline) Process(text string, basePath string) ([]*model.Chunk, error) {
	result, err := p.ProcessWithExtraction(text, basePath, "")
	if err != nil {
		return nil, err
	}
	return result.Chunks, nil
}

// ProcessWithExtraction splits and embeds text. When extractors are set and
// sourceID is not empty, entities of every chunk are linked to sourceID.
// Extraction failures of a single chunk are skipped.
func (p *Pipeline) ProcessWithExtraction(text string, basePath string, sourceID string) (*ProcessingResult, error) {
	if p.Chunker == nil || p.Embedder == nil {
		return nil, helper.NewError("process", fmt.Errorf("pipeline needs a chunker and an embedder"))
	}

	chunksWithPath, err := p.Chunker(text, basePath)
	if err != nil {
		return nil, err
	}

	result := &ProcessingResult{
		Chunks: make([]*model.Chunk, 0, len(chunksWithPath)),
		Graph:  &Extraction{},
	}

	for _, cwp := range chunksWithPath {
		embedding, err := p.Embedder(cwp.Content)
		if err != nil {
			return nil, err
		}

		result.Chunks = append(result.Chunks, &model.Chunk{
			Content:    cwp.Content,
			Path:       cwp.Path,
			Embedding:  embedding,
			StartPos:   cwp.StartPos,
			EndPos:     cwp.EndPos,
			ChunkIndex: cwp.ChunkIndex,
			Metadata:   cwp.Metadata,
		})

		if sourceID == "" {
			continue
		}

		var entities []*model.KnowledgeNode
		if p.EntityExtractor != nil {
			entities, err = p.EntityExtractor(cwp.Content)
			if err == nil {
				result.Graph.Nodes = append(result.Graph.Nodes, entities...)
			}
		}

		if p.RelationExtractor != nil {
			relations, err := p.RelationExtractor(cwp.Content, sourceID, entities)
			if err == nil {
				result.Graph.Merge(relations)
			}
		}
	}

	return result, nil
}
