package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/siherrmann/nexus/model"
)

// ReferenceNodePrefix prefixes the node ids of cited references.
const ReferenceNodePrefix = "reference::"

// coOccurrenceWindow is the maximum distance in bytes between two entities
// that are linked as co-occurring.
const coOccurrenceWindow = 100

type citationPattern struct {
	kind    string
	pattern *regexp.Regexp
}

var citationPatterns = []citationPattern{
	{"numeric_citation", regexp.MustCompile(`\[(\d+)\]`)},
	{"author_year_citation", regexp.MustCompile(`\(([A-Z][a-z]+(?:\s+et\s+al\.)?)\s+(\d{4})\)`)},
	{"section_reference", regexp.MustCompile(`\b(?:Section|Chapter|Figure|Table|section|chapter)\s+(\d+(?:\.\d+)*)\b`)},
	{"doi_reference", regexp.MustCompile(`doi:\s*(\S+)`)},
	{"url_reference", regexp.MustCompile(`https?://\S+`)},
}

// DefaultRelationExtractor creates a pattern based relation extractor.
//
// The source gets a mention edge to every entity, weighted by the entity
// confidence. Entities starting less than 100 bytes apart are linked with
// co-occurrence edges in both directions. Citations found in the text become
// reference nodes linked from the source with weight 0.7.
func DefaultRelationExtractor() RelationExtractFunc {
	return func(text string, sourceID string, entities []*model.KnowledgeNode) (*Extraction, error) {
		if sourceID == "" {
			return nil, fmt.Errorf("source id is empty")
		}

		extraction := &Extraction{}

		for _, entity := range entities {
			extraction.Edges = append(extraction.Edges, &model.KnowledgeEdge{
				Source:   sourceID,
				Target:   entity.ID,
				Type:     model.EdgeTypeMention,
				Weight:   clampWeight(floatMetadata(entity.Metadata, "confidence", 1)),
				Metadata: model.Metadata{"label": entity.Metadata["label"]},
			})
		}

		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				start1, ok1 := entities[i].Metadata["start"].(int)
				start2, ok2 := entities[j].Metadata["start"].(int)
				if !ok1 || !ok2 {
					continue
				}

				distance := start2 - start1
				if distance < 0 {
					distance = -distance
				}
				if distance >= coOccurrenceWindow {
					continue
				}

				weight := coOccurrenceWeight(distance)
				metadata := model.Metadata{"distance": distance, "context": sourceID}
				extraction.Edges = append(extraction.Edges,
					&model.KnowledgeEdge{Source: entities[i].ID, Target: entities[j].ID, Type: model.EdgeTypeCoOccurrence, Weight: weight, Metadata: metadata},
					&model.KnowledgeEdge{Source: entities[j].ID, Target: entities[i].ID, Type: model.EdgeTypeCoOccurrence, Weight: weight, Metadata: metadata.Clone()},
				)
			}
		}

		seen := map[string]bool{}
		for _, citation := range citationPatterns {
			for _, match := range citation.pattern.FindAllStringSubmatch(text, -1) {
				id := ReferenceNodePrefix + strings.ToLower(match[0])
				if seen[id] {
					continue
				}
				seen[id] = true

				metadata := model.Metadata{"citation_pattern": citation.kind}
				if len(match) > 1 {
					metadata["reference_id"] = match[1]
				}
				if len(match) > 2 {
					metadata["reference_year"] = match[2]
				}

				extraction.Nodes = append(extraction.Nodes, &model.KnowledgeNode{
					ID:       id,
					Type:     model.NodeTypeReference,
					Content:  match[0],
					Metadata: metadata,
				})
				extraction.Edges = append(extraction.Edges, &model.KnowledgeEdge{
					Source:   sourceID,
					Target:   id,
					Type:     model.EdgeTypeReference,
					Weight:   0.7,
					Metadata: model.Metadata{"citation_pattern": citation.kind},
				})
			}
		}

		return extraction, nil
	}
}

// coOccurrenceWeight is 1 for adjacent entities and 0.5 at the edge of the window.
func coOccurrenceWeight(distance int) float64 {
	return clampWeight(1.0 - float64(distance)/200.0)
}

func clampWeight(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func floatMetadata(m model.Metadata, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return fallback
}
