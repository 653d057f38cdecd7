package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/siherrmann/nexus"
	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

const sampleContent = `This is a sample document about graph databases.

Graph databases are designed to store and query data with complex relationships.
They use nodes to represent entities and edges to represent relationships between them.

PostgreSQL with extensions like ltree and pgvector can be used to build powerful graph-based systems.
The ltree extension provides hierarchical tree structures, while pgvector enables vector similarity search.

Combining these features allows for hybrid retrieval strategies that leverage both semantic similarity
and graph structure for more sophisticated information retrieval.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	n, err := nexus.NewNexus(nexus.Options{
		Database:     dbConfig,
		EmbeddingDim: 384,
		Logger:       nexus.NewLogger(slog.LevelInfo),
	})
	if err != nil {
		log.Fatalf("Failed to create nexus: %v", err)
	}
	defer n.Close()

	// Semantic chunking, local embeddings and regex relation extraction
	if err := n.UseDefaultPipeline(500, 0.7); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	doc := &model.Document{
		Title:   "Introduction to Graph Databases",
		Source:  "basic_example",
		Content: sampleContent,
		Metadata: model.Metadata{
			"author": "Example Author",
			"topic":  "graph databases",
		},
	}

	ctx := context.Background()

	fmt.Println("Ingesting document...")
	numChunks, err := n.ProcessAndInsertDocument(ctx, doc)
	if err != nil {
		log.Fatalf("Failed to process and insert document: %v", err)
	}
	fmt.Printf("Document inserted with ID: %s\n", doc.RID)
	fmt.Printf("Inserted %d chunks\n", numChunks)

	queryText := "What are graph databases?"
	fmt.Printf("\nQuerying: %s\n", queryText)

	response, err := n.Retrieve(ctx, queryText, model.ModeAll, 5)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("\nFound %d fused results:\n", len(response.FusedResults))
	for i, result := range response.FusedResults {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Score: %.4f\n", result.FusedScore)
		fmt.Printf("Source: %s\n", generation.ResultSource(result))
		fmt.Printf("Content: %v\n", result.Metadata["content"])
	}

	// Without a generator the demo generator answers
	answer, err := n.Answer(ctx, queryText, 3, generation.TaskDocumentation, "example")
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}
	fmt.Printf("\nAnswer (%s): %s\n", answer.Model, answer.Response)

	fmt.Println("\nBasic example completed successfully!")
}
