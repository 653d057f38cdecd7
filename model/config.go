package model

import (
	"time"

	"github.com/google/uuid"
)

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	// Result size
	TopK            int `json:"top_k"`
	OverFetchFactor int `json:"over_fetch_factor"`

	// Fusion parameters
	RRFK    int                  `json:"rrf_k"`
	Weights map[Strategy]float64 `json:"weights"`

	// Vector search parameters
	SimilarityThreshold float64     `json:"similarity_threshold,omitempty"`
	DocumentRIDs        []uuid.UUID `json:"document_rids,omitempty"` // Filter by specific documents

	// Graph parameters
	GraphMaxSteps      int      `json:"graph_max_steps"`
	GraphGoalType      NodeType `json:"graph_goal_type"`
	MaxSeedNodes       int      `json:"max_seed_nodes"`
	SeedMinOverlap     int      `json:"seed_min_overlap"`
	SeedMinTokenLength int      `json:"seed_min_token_length"`

	// Limits
	ChannelTimeout time.Duration `json:"channel_timeout"`
	MaxQueryLength int           `json:"max_query_length"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:            10,
		OverFetchFactor: 2,
		RRFK:            60,
		Weights: map[Strategy]float64{
			StrategyVector: 0.6,
			StrategyFuzzy:  0.4,
			StrategyGraph:  0, // Graph results are reported separately
		},
		SimilarityThreshold: 0.0,
		GraphMaxSteps:       2,
		GraphGoalType:       NodeTypeDocument,
		MaxSeedNodes:        3,
		SeedMinOverlap:      2,
		SeedMinTokenLength:  3,
		ChannelTimeout:      5 * time.Second,
		MaxQueryLength:      2048,
	}
}

// FetchSize is the number of candidates requested from each channel.
func (c *QueryConfig) FetchSize() int {
	factor := c.OverFetchFactor
	if factor < 1 {
		factor = 1
	}
	return c.TopK * factor
}

// FuseGraph reports whether graph results take part in the fusion.
func (c *QueryConfig) FuseGraph() bool {
	return c.Weights[StrategyGraph] > 0
}
