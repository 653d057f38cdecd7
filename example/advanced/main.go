package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/siherrmann/nexus"
	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

const authModule = `import hashlib
from sessions import SessionStore

class Authenticator:
    def login(self, user, password):
        return SessionStore().create(user)

def hash_password(password):
    return hashlib.sha256(password.encode()).hexdigest()
`

const sessionModule = `import time

class SessionStore:
    def create(self, user):
        return {"user": user, "created": time.time()}
`

const designNotes = `Login is handled by the Authenticator class in auth.py.
Sessions are created by SessionStore and expire after one hour.
As described in Section 2.1, passwords are never stored in plain text.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	query := model.DefaultQueryConfig()
	// Let graph results take part in the fusion
	query.Weights[model.StrategyGraph] = 0.3

	n, err := nexus.NewNexus(nexus.Options{
		Database:     dbConfig,
		EmbeddingDim: 384,
		Query:        query,
		Logger:       nexus.NewLogger(slog.LevelInfo),
	})
	if err != nil {
		log.Fatalf("Failed to create nexus: %v", err)
	}
	defer n.Close()

	if err := n.UseDefaultPipeline(500, 0.7); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	ctx := context.Background()
	docs := []*model.Document{
		{Title: "auth", Source: "auth.py", Language: "python", Content: authModule},
		{Title: "sessions", Source: "sessions.py", Language: "python", Content: sessionModule},
		{Title: "Design notes", Source: "design.md", Content: designNotes},
	}
	for _, doc := range docs {
		numChunks, err := n.ProcessAndInsertDocument(ctx, doc)
		if err != nil {
			log.Fatalf("Failed to ingest %s: %v", doc.Source, err)
		}
		fmt.Printf("Ingested %s as %s (%d chunks)\n", doc.Source, doc.NodeID(), numChunks)
	}

	// Dependencies of a code file
	neighbors, err := n.QueryNeighbors(ctx, "file::auth.py", 1, []model.EdgeType{model.EdgeTypeDependency})
	if err != nil {
		log.Fatalf("Failed to query neighbors: %v", err)
	}
	fmt.Println("\nDependencies of auth.py:")
	for _, neighbor := range neighbors[1] {
		fmt.Printf("  %s (%s)\n", neighbor.NodeID, neighbor.NodeType)
	}

	// Reasoning walk from a code file to related documents
	results, err := n.Walk(ctx, []string{"file::auth.py"}, model.NodeTypeDocument, 2)
	if err != nil {
		log.Fatalf("Failed to walk: %v", err)
	}
	fmt.Println("\nReasoning walk from auth.py:")
	for _, result := range results {
		fmt.Printf("  %-30s %-14s score=%.3f path=%v\n", result.NodeID, result.Method, result.CompositeScore, result.Path)
	}

	// Hybrid retrieval with per channel diagnostics
	response, err := n.Retrieve(ctx, "how are sessions created", model.ModeAll, 5)
	if err != nil {
		log.Fatalf("Failed to retrieve: %v", err)
	}
	fmt.Printf("\nvector=%d fuzzy=%d graph=%d fused=%d\n",
		len(response.VectorResults), len(response.FuzzyResults), len(response.GraphResults), len(response.FusedResults))
	for _, result := range response.FusedResults {
		fmt.Printf("  %-40s fused=%.4f via %v\n", result.ItemID, result.FusedScore, result.ContributingStrategies)
	}

	hotspots, err := n.Hotspots(ctx, 3)
	if err != nil {
		log.Fatalf("Failed to compute hotspots: %v", err)
	}
	fmt.Println("\nHotspots:")
	for _, hotspot := range hotspots {
		fmt.Printf("  %s score=%.3f\n", hotspot.NodeID, hotspot.Score)
	}

	stats := n.GraphStatistics()
	fmt.Printf("\nGraph: %d nodes, %d edges\n", stats.Nodes.Total, stats.Edges.Total)

	if err := n.SaveGraph(ctx); err != nil {
		log.Fatalf("Failed to save graph: %v", err)
	}
	fmt.Println("\nAdvanced example completed successfully!")
}
