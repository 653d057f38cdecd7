package nexus

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/nexus/config"
	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/core/graph"
	"github.com/siherrmann/nexus/core/pipeline"
	"github.com/siherrmann/nexus/core/retrieval"
	"github.com/siherrmann/nexus/database"
	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
	loadSql "github.com/siherrmann/nexus/sql"
)

// Options configures a Nexus.
type Options struct {
	Database     *helper.DatabaseConfiguration
	EmbeddingDim int
	// FTSPath is the SQLite file of the fuzzy index, ":memory:" keeps it in memory.
	FTSPath string
	Query   model.QueryConfig
	// Generator answers RAG queries. Nil uses the demo generator.
	Generator    generation.Generator
	SystemPrompt string
	Logger       *slog.Logger
}

// Nexus wires the stores, the knowledge graph, the ingestion pipeline and
// the hybrid retrieval into one service.
type Nexus struct {
	DB           *helper.Database
	Documents    *database.DocumentsDBHandler
	Chunks       *database.ChunksDBHandler
	Knowledge    *database.KnowledgeDBHandler
	Text         *database.FTSDBHandler
	Graph        *graph.Graph
	Pipeline     *pipeline.Pipeline // Optional chunking pipeline
	Engine       *retrieval.Engine  // Vector channel, set with the pipeline
	Orchestrator *retrieval.Orchestrator
	RAG          *generation.RAG
	// Config
	query        model.QueryConfig
	generator    generation.Generator
	systemPrompt string
	// Logging
	log *slog.Logger
}

// NewLogger returns the pretty slog logger used by default.
func NewLogger(level slog.Level) *slog.Logger {
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: level,
		},
	}
	return slog.New(helper.NewPrettyHandler(os.Stdout, opts))
}

// NewNexus connects to the database, creates all handlers and loads the
// persisted knowledge graph.
func NewNexus(options Options) (*Nexus, error) {
	if options.Database == nil {
		return nil, helper.NewError("create nexus", fmt.Errorf("database configuration is required"))
	}
	if options.EmbeddingDim <= 0 {
		options.EmbeddingDim = pipeline.DefaultEmbeddingDim
	}
	if options.FTSPath == "" {
		options.FTSPath = ":memory:"
	}
	if options.Query.TopK == 0 {
		options.Query = model.DefaultQueryConfig()
	}
	if options.Generator == nil {
		options.Generator = generation.DemoGenerator{}
	}
	logger := options.Logger
	if logger == nil {
		logger = NewLogger(slog.LevelInfo)
	}

	// Initialize database
	db := helper.NewDatabase("nexus", options.Database, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Documents first, chunks reference them.
	// force=false to not reload if functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, options.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	knowledge, err := database.NewKnowledgeDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create knowledge handler", err)
	}

	text, err := database.NewFTSDBHandler(options.FTSPath, logger)
	if err != nil {
		return nil, helper.NewError("create fts handler", err)
	}

	n := &Nexus{
		DB:           db,
		Documents:    documents,
		Chunks:       chunks,
		Knowledge:    knowledge,
		Text:         text,
		Graph:        graph.NewGraph(logger),
		query:        options.Query,
		generator:    options.Generator,
		systemPrompt: options.SystemPrompt,
		log:          logger,
	}

	if err := n.LoadGraph(context.Background()); err != nil {
		_ = n.Close()
		return nil, err
	}
	n.wire()

	return n, nil
}

// NewNexusFromConfig creates a Nexus with the pipeline and generator
// selected by the configuration.
func NewNexusFromConfig(cfg *config.Config, logger *slog.Logger) (*Nexus, error) {
	if cfg.Embedding.Provider == "openai" && cfg.DemoMode() {
		return nil, helper.NewError("create openai embedder", fmt.Errorf("llm.api_keys is required for the openai embedding provider"))
	}

	var generator generation.Generator = generation.DemoGenerator{}
	if !cfg.DemoMode() {
		openaiGenerator, err := generation.NewOpenAIGenerator(cfg.OpenAIConfig(), logger)
		if err != nil {
			return nil, err
		}
		generator = openaiGenerator
	}

	dbConfig := cfg.Database
	n, err := NewNexus(Options{
		Database:     &dbConfig,
		EmbeddingDim: cfg.Embedding.Dimensions,
		FTSPath:      cfg.FTS.Path,
		Query:        cfg.QueryConfig(),
		Generator:    generator,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	n.RAG.SetMaxContextLength(cfg.LLM.MaxContextLength)

	switch cfg.Embedding.Provider {
	case "openai":
		clientConfig := openai.DefaultConfig(cfg.LLM.APIKeys[0])
		if cfg.LLM.BaseURL != "" {
			clientConfig.BaseURL = cfg.LLM.BaseURL
		}
		embedder := pipeline.OpenAIEmbedder(openai.NewClientWithConfig(clientConfig), cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.LLM.Timeout)
		n.SetPipeline(pipeline.NewPipeline(pipeline.SemanticChunker(embedder, cfg.Chunking.MaxChunkSize, float32(cfg.Chunking.Threshold)), embedder))
		n.Pipeline.SetRelationExtractor(pipeline.DefaultRelationExtractor())
	default:
		if err := n.UseDefaultPipeline(cfg.Chunking.MaxChunkSize, float32(cfg.Chunking.Threshold)); err != nil {
			_ = n.Close()
			return nil, err
		}
	}

	return n, nil
}

// wire rebuilds the retrieval and generation layer around the current
// pipeline. Without an embedder the vector channel is left out.
func (n *Nexus) wire() {
	var vector retrieval.VectorSearcher
	n.Engine = nil
	if n.Pipeline != nil && n.Pipeline.Embedder != nil {
		n.Engine = retrieval.NewEngine(n.Chunks, n.Pipeline.Embedder, n.query)
		vector = n.Engine
	}

	n.Orchestrator = retrieval.NewOrchestrator(vector, retrieval.NewFuzzyStrategy(n.Text), n.Graph, n.query, n.log)

	maxContext := generation.DefaultMaxContextLength
	if n.RAG != nil {
		maxContext = n.RAG.MaxContextLength()
	}
	n.RAG = generation.NewRAG(n.Orchestrator, n.generator, n.log)
	n.RAG.SetConversations(n.Graph)
	n.RAG.SetSystemPrompt(n.systemPrompt)
	n.RAG.SetMaxContextLength(maxContext)
}

// Close closes the full text index and the database connection
func (n *Nexus) Close() error {
	var err error
	if n.Text != nil {
		err = n.Text.Close()
	}
	if closeErr := n.DB.Close(); closeErr != nil {
		err = closeErr
	}
	return err
}

// Ping checks the database connection.
func (n *Nexus) Ping(ctx context.Context) error {
	return n.DB.Ping(ctx)
}

// SetPipeline sets the chunking pipeline for document processing and
// rebuilds the vector channel around its embedder.
func (n *Nexus) SetPipeline(pipeline *pipeline.Pipeline) {
	n.Pipeline = pipeline
	n.wire()
}

// UseDefaultPipeline sets up semantic chunking and embedding with the local
// all-MiniLM-L6-v2 model (384 dimensions) and regex relation extraction.
func (n *Nexus) UseDefaultPipeline(maxChunkSize int, similarityThreshold float32) error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	p := pipeline.NewPipeline(pipeline.SemanticChunker(embedder, maxChunkSize, similarityThreshold), embedder)
	p.SetRelationExtractor(pipeline.DefaultRelationExtractor())
	n.SetPipeline(p)
	return nil
}

// EnableEntityExtraction adds named entity recognition to the pipeline.
// The model is downloaded on first use.
func (n *Nexus) EnableEntityExtraction() error {
	if n.Pipeline == nil {
		return helper.NewError("enable entity extraction", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}
	extractor, err := pipeline.DefaultEntityExtractor()
	if err != nil {
		return helper.NewError("create entity extractor", err)
	}
	n.Pipeline.SetEntityExtractor(extractor)
	return nil
}

// QueryConfig returns the retrieval configuration with defaults applied.
func (n *Nexus) QueryConfig() model.QueryConfig {
	return n.Orchestrator.Config()
}

// ProcessAndInsertDocument processes a document by:
// 1. Inserting the document metadata (without content)
// 2. Processing the content into chunks using the pipeline
// 3. Inserting all chunks into the vector store and the full text index
// 4. Adding the document, its code dependencies and extracted entities to the graph
// Returns the number of chunks inserted and any error encountered.
func (n *Nexus) ProcessAndInsertDocument(ctx context.Context, doc *model.Document) (int, error) {
	if n.Pipeline == nil {
		return 0, helper.NewError("process document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}
	if doc.Content == "" {
		return 0, helper.NewError("process document", fmt.Errorf("document content is empty"))
	}

	// Content is processed but not stored in the documents table
	content := doc.Content
	doc.Content = ""

	if err := n.Documents.InsertDocument(ctx, doc); err != nil {
		return 0, helper.NewError("insert document", err)
	}
	n.log.Info("Inserted document", slog.String("document_id", doc.RID.String()), slog.String("title", doc.Title))

	nodeID := doc.NodeID()
	result, err := n.Pipeline.ProcessWithExtraction(content, fmt.Sprintf("doc_%s", doc.RID.String()), nodeID)
	if err != nil {
		return 0, helper.NewError("process chunks", err)
	}
	n.log.Info("Processed document into chunks", slog.Int("num_chunks", len(result.Chunks)), slog.String("document_id", doc.RID.String()))

	for i, chunk := range result.Chunks {
		chunk.DocumentID = doc.ID
		chunk.Metadata = chunk.Metadata.Clone()
		chunk.Metadata["document_node"] = nodeID
		chunk.Metadata["title"] = doc.Title
		if doc.Source != "" {
			chunk.Metadata["source"] = doc.Source
		}

		if err := n.Chunks.InsertChunk(ctx, chunk); err != nil {
			return i, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
		err := n.Text.UpsertItem(ctx, &database.FTSItem{
			ItemID:   chunk.ID.String(),
			Title:    doc.Title,
			Content:  chunk.Content,
			Source:   doc.Source,
			Language: doc.Language,
			Metadata: chunk.Metadata,
		})
		if err != nil {
			return i, helper.NewError(fmt.Sprintf("index chunk %d", i), err)
		}
	}

	if err := n.addDocumentNode(doc, nodeID, content); err != nil {
		return len(result.Chunks), err
	}
	if err := n.addExtraction(result.Graph); err != nil {
		return len(result.Chunks), err
	}

	return len(result.Chunks), nil
}

func (n *Nexus) addDocumentNode(doc *model.Document, nodeID string, content string) error {
	if doc.Language != "" && doc.Source != "" {
		_, err := n.AddCodeFile(doc.Source, content, doc.Language)
		if err != nil {
			return err
		}
		node, _ := n.Graph.Node(nodeID)
		metadata := node.Metadata.Clone()
		metadata["title"] = doc.Title
		metadata["document_rid"] = doc.RID.String()
		_, err = n.Graph.AddNode(nodeID, node.Type, node.Content, metadata)
		return err
	}

	metadata := doc.Metadata.Clone()
	metadata["title"] = doc.Title
	metadata["document_rid"] = doc.RID.String()
	if doc.Source != "" {
		metadata["source"] = doc.Source
	}
	_, err := n.Graph.AddNode(nodeID, model.NodeTypeDocument, content, metadata)
	if err != nil {
		return helper.NewError("add document node", err)
	}
	return nil
}

// addExtraction adds extracted nodes that are not in the graph yet and all
// extracted edges.
func (n *Nexus) addExtraction(extraction *pipeline.Extraction) error {
	if extraction.Empty() {
		return nil
	}

	for _, node := range extraction.Nodes {
		if n.Graph.HasNode(node.ID) {
			continue
		}
		if _, err := n.Graph.AddNode(node.ID, node.Type, node.Content, node.Metadata); err != nil {
			return helper.NewError("add extracted node", err)
		}
	}
	for _, edge := range extraction.Edges {
		if err := n.Graph.AddEdge(edge.Source, edge.Target, edge.Type, edge.Weight, edge.Metadata); err != nil {
			return helper.NewError("add extracted edge", err)
		}
	}

	n.log.Debug("Added extraction", slog.Int("nodes", len(extraction.Nodes)), slog.Int("edges", len(extraction.Edges)))
	return nil
}

// AddCodeFile adds a code file and its imports and definitions to the
// graph. It returns the id of the file node.
func (n *Nexus) AddCodeFile(path string, content string, language string) (string, error) {
	nodeID := "file::" + path
	extraction, err := pipeline.CodeGraph(nodeID, path, content, language)
	if err != nil {
		return "", helper.NewError("analyze code file", err)
	}

	// The file node is replaced, dependency nodes are only added once.
	file := extraction.Nodes[0]
	if _, err := n.Graph.AddNode(file.ID, file.Type, file.Content, file.Metadata); err != nil {
		return "", helper.NewError("add file node", err)
	}
	extraction.Nodes = extraction.Nodes[1:]
	if err := n.addExtraction(extraction); err != nil {
		return "", err
	}

	n.log.Info("Added code file", slog.String("node_id", nodeID), slog.Int("dependencies", len(extraction.Edges)))
	return nodeID, nil
}

// Retrieve runs the hybrid retrieval over the channels of mode.
func (n *Nexus) Retrieve(ctx context.Context, query string, mode model.Mode, k int) (*model.RetrievalResponse, error) {
	return n.Orchestrator.Retrieve(ctx, query, mode, k)
}

// Answer generates a response for the query from retrieved context.
func (n *Nexus) Answer(ctx context.Context, query string, k int, taskType generation.TaskType, pilotID string) (*generation.Answer, error) {
	return n.RAG.Answer(ctx, query, k, taskType, pilotID)
}

// AddConversation records an utterance of a pilot in the graph.
func (n *Nexus) AddConversation(utterance, pilotID string, relatedDocs []string) (string, error) {
	return n.Graph.AddConversation(utterance, pilotID, relatedDocs)
}

// Walk runs the reasoning walk from the start nodes.
func (n *Nexus) Walk(ctx context.Context, startNodes []string, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error) {
	return n.Graph.ReasoningWalk(ctx, startNodes, goalType, maxSteps)
}

// QueryNeighbors returns the neighborhood of a node grouped by depth.
func (n *Nexus) QueryNeighbors(ctx context.Context, nodeID string, maxDepth int, edgeTypes []model.EdgeType) (map[int][]graph.NeighborInfo, error) {
	if !n.Graph.HasNode(nodeID) {
		return nil, &model.UnknownNodeError{NodeID: nodeID}
	}
	return graph.QueryNeighbors(ctx, n.Graph, nodeID, maxDepth, edgeTypes)
}

// Hotspots returns the most central nodes of the graph.
func (n *Nexus) Hotspots(ctx context.Context, limit int) ([]*graph.Hotspot, error) {
	return n.Graph.Hotspots(ctx, limit)
}

// GraphStatistics summarizes the graph.
func (n *Nexus) GraphStatistics() *graph.Statistics {
	return n.Graph.Statistics()
}

// ExportGraph returns all nodes and edges for visualization.
func (n *Nexus) ExportGraph() *graph.Export {
	return n.Graph.Export()
}

// SaveGraph persists the graph to the knowledge tables.
func (n *Nexus) SaveGraph(ctx context.Context) error {
	return n.Graph.Save(ctx, n.Knowledge)
}

// LoadGraph adds the persisted graph to the in-memory graph.
func (n *Nexus) LoadGraph(ctx context.Context) error {
	return n.Graph.Load(ctx, n.Knowledge)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (n *Nexus) ChangeIndexType(ctx context.Context, indexType string, params database.IndexParams) error {
	return n.Chunks.ChangeIndexType(ctx, indexType, params)
}
