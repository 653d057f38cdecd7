package model

// Strategy tags the retrieval channel a result originates from.
type Strategy string

const (
	StrategyVector Strategy = "vector"
	StrategyFuzzy  Strategy = "fuzzy"
	StrategyGraph  Strategy = "graph"
)

// RetrievalResult is one hit from a single retrieval strategy.
// After fusion the FusedScore and ContributingStrategies fields are set.
type RetrievalResult struct {
	ItemID   string   `json:"item_id"`
	Score    float64  `json:"score"`
	Rank     int      `json:"rank"`
	Source   Strategy `json:"source_strategy"`
	Metadata Metadata `json:"metadata,omitempty"`
	// Fusion
	FusedScore             float64    `json:"fused_score,omitempty"`
	ContributingStrategies []Strategy `json:"contributing_strategies,omitempty"`
}

// RankedResultSet is the ordered output of one strategy, best first.
type RankedResultSet struct {
	Strategy Strategy           `json:"strategy"`
	Results  []*RetrievalResult `json:"results"`
}

// NewRankedResultSet copies the given results, tags them with the strategy
// and assigns zero-based ranks by position. The inputs must already be
// sorted best first.
func NewRankedResultSet(strategy Strategy, results []*RetrievalResult) *RankedResultSet {
	ranked := make([]*RetrievalResult, 0, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		copied := *r
		copied.Rank = i
		copied.Source = strategy
		ranked = append(ranked, &copied)
	}

	return &RankedResultSet{
		Strategy: strategy,
		Results:  ranked,
	}
}

// Len returns the number of results in the set.
func (s *RankedResultSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Results)
}

// Truncate keeps at most n results.
func (s *RankedResultSet) Truncate(n int) {
	if s != nil && n >= 0 && len(s.Results) > n {
		s.Results = s.Results[:n]
	}
}
