package pipeline

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

// EntityNodePrefix prefixes the node ids of extracted entities.
const EntityNodePrefix = "entity::"

// EntityNode creates the graph node of a named entity. Entities with the
// same name share one node regardless of case.
func EntityNode(name string, label string, confidence float32) *model.KnowledgeNode {
	name = strings.TrimSpace(name)
	return &model.KnowledgeNode{
		ID:      EntityNodePrefix + strings.ToLower(name),
		Type:    model.NodeTypeEntity,
		Content: name,
		Metadata: model.Metadata{
			"label":      label,
			"confidence": confidence,
		},
	}
}

// DefaultEntityExtractor creates an entity extractor using the distilbert-NER
// token classification model. It detects PER, ORG, LOC and MISC entities.
func DefaultEntityExtractor() (EntityExtractFunc, error) {
	modelPath, err := helper.PrepareModel("KnightsAnalytics/distilbert-NER", "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(text string) ([]*model.KnowledgeNode, error) {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}

		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}
		if len(result.Entities) == 0 {
			return nil, nil
		}

		seen := map[string]bool{}
		var nodes []*model.KnowledgeNode
		for _, entity := range result.Entities[0] {
			node := EntityNode(entity.Word, normalizeEntityType(entity.Entity), entity.Score)
			if node.Content == "" || seen[node.ID] {
				continue
			}
			seen[node.ID] = true
			node.Metadata["start"] = int(entity.Start)
			node.Metadata["end"] = int(entity.End)
			nodes = append(nodes, node)
		}

		return nodes, nil
	}, nil
}

// normalizeEntityType removes the B- and I- prefixes of BIO labels.
func normalizeEntityType(label string) string {
	return strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
}
