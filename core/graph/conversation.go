package graph

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

const (
	// RelatedDocumentWeight is the weight of edges to explicitly related documents.
	RelatedDocumentWeight = 0.8
	// MinAutoLinkMatches is the number of keywords a node must contain to be auto-linked.
	MinAutoLinkMatches = 2
)

// AddConversation records an utterance of a pilot as a conversation node.
//
// The node is linked to every existing node in relatedDocs and then
// auto-linked to each other node whose content contains at least two of
// the utterance's keywords, weighted by the share of keywords found.
// Explicit links are not replaced by auto-links.
func (g *Graph) AddConversation(utterance, pilotID string, relatedDocs []string) (string, error) {
	now := g.now()
	id := fmt.Sprintf("conversation::%s::%s", pilotID, now.Format(time.RFC3339Nano))

	_, err := g.AddNode(id, model.NodeTypeConversation, utterance, model.Metadata{
		"pilot_id":  pilotID,
		"timestamp": now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", helper.NewError("add conversation node", err)
	}

	linked := map[string]bool{id: true}
	for _, docID := range relatedDocs {
		if !g.HasNode(docID) {
			continue
		}
		if err := g.AddEdge(id, docID, model.EdgeTypeConversation, RelatedDocumentWeight, nil); err != nil {
			return id, helper.NewError("link related document", err)
		}
		linked[docID] = true
	}

	autoLinked, err := g.autoLinkConversation(id, utterance, linked)
	if err != nil {
		return id, helper.NewError("auto link conversation", err)
	}

	g.log.Debug("Added conversation",
		slog.String("node_id", id),
		slog.Int("related", len(linked)-1),
		slog.Int("auto_linked", autoLinked),
	)

	return id, nil
}

func (g *Graph) autoLinkConversation(id, utterance string, skip map[string]bool) (int, error) {
	keywords := Keywords(utterance, 3)
	if len(keywords) == 0 {
		return 0, nil
	}

	type link struct {
		target string
		weight float64
	}
	var links []link

	g.mu.RLock()
	for _, nodeID := range g.order {
		if skip[nodeID] {
			continue
		}
		content := strings.ToLower(g.nodes[nodeID].Content)
		matches := 0
		for _, keyword := range keywords {
			if strings.Contains(content, keyword) {
				matches++
			}
		}
		if matches >= MinAutoLinkMatches {
			links = append(links, link{target: nodeID, weight: float64(matches) / float64(len(keywords))})
		}
	}
	g.mu.RUnlock()

	for _, l := range links {
		if err := g.AddEdge(id, l.target, model.EdgeTypeConversation, l.weight, model.Metadata{"auto_linked": true}); err != nil {
			return 0, err
		}
	}
	return len(links), nil
}

// RecentConversations returns the contents of the last n conversation
// nodes of a pilot, oldest first.
func (g *Graph) RecentConversations(pilotID string, n int) []string {
	if n <= 0 {
		return []string{}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var recent []string
	for i := len(g.order) - 1; i >= 0 && len(recent) < n; i-- {
		node := g.nodes[g.order[i]]
		if node.Type != model.NodeTypeConversation || node.Metadata["pilot_id"] != pilotID {
			continue
		}
		recent = append(recent, node.Content)
	}

	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	if recent == nil {
		recent = []string{}
	}
	return recent
}
