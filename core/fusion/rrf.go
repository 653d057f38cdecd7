package fusion

import (
	"fmt"
	"sort"

	"github.com/siherrmann/nexus/model"
)

// DefaultK is the RRF smoothing constant used when no positive k is given.
const DefaultK = 60

// RankKey is the metadata field holding an item's rank in the list of s.
func RankKey(s model.Strategy) string {
	return fmt.Sprintf("%s_rank", s)
}

// ScoreKey is the metadata field holding an item's original score from s.
func ScoreKey(s model.Strategy) string {
	return fmt.Sprintf("%s_score", s)
}

type fusedEntry struct {
	result *model.RetrievalResult
	score  float64
	scored bool
}

// Fuse merges ranked result sets with weighted reciprocal rank fusion.
//
// Each item at zero-based position rank in the list of strategy s
// contributes weights[s] / (k + rank + 1). Contributions are summed per
// item id and the result is sorted descending by the total. Ties keep the
// order in which items were first seen. Strategies without a weight count
// as zero: they do not score, and items only they returned are left out,
// but their metadata is still merged into items that are kept.
//
// Metadata of later lists never overwrites keys set by earlier ones. For
// each contributing strategy the fields <strategy>_rank and
// <strategy>_score are recorded.
func Fuse(lists []*model.RankedResultSet, weights map[model.Strategy]float64, k int) []*model.RetrievalResult {
	if k <= 0 {
		k = DefaultK
	}

	entries := make(map[string]*fusedEntry)
	order := make([]string, 0)

	for _, list := range lists {
		if list == nil {
			continue
		}
		weight := weights[list.Strategy]

		for rank, r := range list.Results {
			if r == nil {
				continue
			}

			entry, ok := entries[r.ItemID]
			if !ok {
				entry = &fusedEntry{
					result: &model.RetrievalResult{
						ItemID:   r.ItemID,
						Source:   list.Strategy,
						Metadata: model.Metadata{},
					},
				}
				entries[r.ItemID] = entry
				order = append(order, r.ItemID)
			}

			entry.result.Metadata.Merge(r.Metadata)
			entry.result.Metadata.Merge(model.Metadata{
				RankKey(list.Strategy):  rank,
				ScoreKey(list.Strategy): r.Score,
			})

			if weight <= 0 {
				continue
			}
			entry.score += weight / float64(k+rank+1)
			if !entry.scored {
				entry.result.Source = list.Strategy
			}
			entry.scored = true
			if !containsStrategy(entry.result.ContributingStrategies, list.Strategy) {
				entry.result.ContributingStrategies = append(entry.result.ContributingStrategies, list.Strategy)
			}
		}
	}

	fused := make([]*model.RetrievalResult, 0, len(order))
	for _, id := range order {
		entry := entries[id]
		if !entry.scored {
			continue
		}
		entry.result.Score = entry.score
		entry.result.FusedScore = entry.score
		fused = append(fused, entry.result)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].FusedScore > fused[j].FusedScore
	})

	for i, r := range fused {
		r.Rank = i
	}

	return fused
}

func containsStrategy(strategies []model.Strategy, s model.Strategy) bool {
	for _, existing := range strategies {
		if existing == s {
			return true
		}
	}
	return false
}
