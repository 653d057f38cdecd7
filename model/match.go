package model

// TextMatch is a hit of the fuzzy text index.
type TextMatch struct {
	ItemID    string   `json:"item_id"`
	Title     string   `json:"title,omitempty"`
	Content   string   `json:"content"`
	Score     float64  `json:"score"`
	MatchType string   `json:"match_type"`
	Metadata  Metadata `json:"metadata,omitempty"`
}

// Fuzzy match types, best first.
const (
	MatchTypeFTS      = "fts"
	MatchTypeWildcard = "wildcard"
	MatchTypeFuzzy    = "levenshtein"
)

// ToRetrievalResult converts a text match into an unranked fuzzy channel result.
func (m *TextMatch) ToRetrievalResult() *RetrievalResult {
	metadata := m.Metadata.Clone()
	metadata["content"] = m.Content
	metadata["match_type"] = m.MatchType
	if m.Title != "" {
		metadata["title"] = m.Title
	}

	return &RetrievalResult{
		ItemID:   m.ItemID,
		Score:    m.Score,
		Source:   StrategyFuzzy,
		Metadata: metadata,
	}
}
