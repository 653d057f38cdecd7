package graph

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Keywords returns the distinct lower-cased words of text with at least
// minLength characters, in order of first appearance.
func Keywords(text string, minLength int) []string {
	seen := map[string]bool{}
	keywords := []string{}
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(word) < minLength || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	return keywords
}

// FindSeeds picks up to maxSeeds nodes whose content shares at least
// minOverlap distinct keywords with the query. Nodes with more shared
// keywords come first, ties keep insertion order.
func (g *Graph) FindSeeds(query string, maxSeeds, minOverlap, minTokenLength int) []string {
	seeds := []string{}
	queryWords := Keywords(query, minTokenLength)
	if maxSeeds <= 0 || len(queryWords) == 0 {
		return seeds
	}

	type candidate struct {
		id      string
		overlap int
	}
	var candidates []candidate

	g.mu.RLock()
	for _, id := range g.order {
		content := map[string]bool{}
		for _, word := range Keywords(g.nodes[id].Content, minTokenLength) {
			content[word] = true
		}

		overlap := 0
		for _, word := range queryWords {
			if content[word] {
				overlap++
			}
		}
		if overlap >= minOverlap {
			candidates = append(candidates, candidate{id: id, overlap: overlap})
		}
	}
	g.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].overlap > candidates[j].overlap
	})

	for i := 0; i < len(candidates) && i < maxSeeds; i++ {
		seeds = append(seeds, candidates[i].id)
	}
	return seeds
}
