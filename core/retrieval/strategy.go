package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

// Searcher is a retrieval channel returning results sorted best first.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]*model.RetrievalResult, error)
}

// VectorSearcher is the semantic channel, see Engine.
type VectorSearcher = Searcher

// FuzzySearcher is the lexical channel, see FuzzyStrategy.
type FuzzySearcher = Searcher

// GraphWalker is the graph channel. *graph.Graph implements it.
type GraphWalker interface {
	FindSeeds(query string, maxSeeds, minOverlap, minTokenLength int) []string
	ReasoningWalk(ctx context.Context, startNodes []string, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error)
}

// TextSearcher is the search of database.FTSDBHandler.
type TextSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]*model.TextMatch, error)
}

// FuzzyStrategy is the fuzzy channel over the full text index.
type FuzzyStrategy struct {
	index TextSearcher
}

// NewFuzzyStrategy creates a new fuzzy strategy
func NewFuzzyStrategy(index TextSearcher) *FuzzyStrategy {
	return &FuzzyStrategy{index: index}
}

// Search returns up to k text matches, best first.
func (s *FuzzyStrategy) Search(ctx context.Context, query string, k int) ([]*model.RetrievalResult, error) {
	if s.index == nil {
		return nil, helper.NewError("fuzzy search", fmt.Errorf("text index not initialized"))
	}

	matches, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, helper.NewError("text search", err)
	}

	results := make([]*model.RetrievalResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, match.ToRetrievalResult())
	}

	return results, nil
}
