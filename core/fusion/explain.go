package fusion

import (
	"fmt"

	"github.com/siherrmann/nexus/model"
)

// Component is the share one strategy contributed to a fused score.
type Component struct {
	Rank          int     `json:"rank"`
	Contribution  float64 `json:"contribution"`
	OriginalScore float64 `json:"original_score"`
}

// Breakdown explains the fused score of a single item.
type Breakdown struct {
	ItemID     string                       `json:"item_id"`
	FinalScore float64                      `json:"final_score"`
	Components map[model.Strategy]Component `json:"components"`
}

// Explanation describes how a fused ranking was produced.
type Explanation struct {
	Method    string      `json:"method"`
	K         int         `json:"k"`
	Formula   string      `json:"formula"`
	Breakdown []Breakdown `json:"breakdown"`
}

// Explain rebuilds the per-strategy contributions of the first limit fused
// results from their side fields. A limit <= 0 explains all results.
func Explain(results []*model.RetrievalResult, weights map[model.Strategy]float64, k int, limit int) *Explanation {
	if k <= 0 {
		k = DefaultK
	}
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}

	explanation := &Explanation{
		Method:    "reciprocal_rank_fusion",
		K:         k,
		Formula:   fmt.Sprintf("score = sum(weight / (%d + rank + 1))", k),
		Breakdown: make([]Breakdown, 0, limit),
	}

	for _, r := range results[:limit] {
		b := Breakdown{
			ItemID:     r.ItemID,
			FinalScore: r.FusedScore,
			Components: map[model.Strategy]Component{},
		}
		for _, s := range r.ContributingStrategies {
			rank, ok := intValue(r.Metadata[RankKey(s)])
			if !ok {
				continue
			}
			score, _ := floatValue(r.Metadata[ScoreKey(s)])
			b.Components[s] = Component{
				Rank:          rank,
				Contribution:  weights[s] / float64(k+rank+1),
				OriginalScore: score,
			}
		}
		explanation.Breakdown = append(explanation.Breakdown, b)
	}

	return explanation
}

// Metadata that went through JSON carries numbers as float64.
func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
