package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/nexus/helper"
	"github.com/siherrmann/nexus/model"
)

// DefaultHistorySize is the number of earlier utterances of a pilot added to the prompt.
const DefaultHistorySize = 5

// Retriever is the hybrid retrieval used for context, see retrieval.Orchestrator.
type Retriever interface {
	Retrieve(ctx context.Context, query string, mode model.Mode, k int) (*model.RetrievalResponse, error)
}

// ConversationStore keeps the utterances of a pilot, see graph.Graph.
type ConversationStore interface {
	AddConversation(utterance, pilotID string, relatedDocs []string) (string, error)
	RecentConversations(pilotID string, n int) []string
}

// Answer is the outcome of a RAG query.
type Answer struct {
	Query          string                   `json:"query"`
	Response       string                   `json:"response"`
	TaskType       TaskType                 `json:"task_type"`
	PilotID        string                   `json:"pilot_id,omitempty"`
	Model          string                   `json:"model_used"`
	KeyUsed        string                   `json:"api_key_used,omitempty"`
	Demo           bool                     `json:"demo_mode,omitempty"`
	ContextChunks  int                      `json:"context_chunks"`
	Sources        []string                 `json:"sources"`
	ConversationID string                   `json:"conversation_id,omitempty"`
	GeneratedAt    time.Time                `json:"generated_at"`
	Retrieval      *model.RetrievalResponse `json:"retrieval"`
}

// RAG answers queries from retrieved context.
type RAG struct {
	retriever     Retriever
	generator     Generator
	conversations ConversationStore
	systemPrompt  string
	maxContext    int
	historySize   int
	now           func() time.Time
	log           *slog.Logger
}

// NewRAG creates a new RAG for a retriever and a generator.
func NewRAG(retriever Retriever, generator Generator, logger *slog.Logger) *RAG {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAG{
		retriever:   retriever,
		generator:   generator,
		maxContext:  DefaultMaxContextLength,
		historySize: DefaultHistorySize,
		now:         time.Now,
		log:         logger,
	}
}

// SetConversations enables conversation history and recording for pilots.
func (r *RAG) SetConversations(store ConversationStore) {
	r.conversations = store
}

// SetSystemPrompt replaces the base system prompt.
func (r *RAG) SetSystemPrompt(prompt string) {
	r.systemPrompt = prompt
}

// SetMaxContextLength sets the character budget of the retrieved context.
func (r *RAG) SetMaxContextLength(n int) {
	if n > 0 {
		r.maxContext = n
	}
}

// MaxContextLength returns the character budget of the retrieved context.
func (r *RAG) MaxContextLength() int {
	return r.maxContext
}

// Answer retrieves context for the query over all channels and generates a
// response. The fused results are used as context, falling back to the
// vector and fuzzy results when fusion produced nothing. Without any context
// the query is sent on its own.
func (r *RAG) Answer(ctx context.Context, query string, k int, taskType TaskType, pilotID string) (*Answer, error) {
	if r.retriever == nil || r.generator == nil {
		return nil, helper.NewError("rag answer", fmt.Errorf("retriever and generator are required"))
	}
	if taskType == "" {
		taskType = TaskGeneral
	}

	retrieval, err := r.retriever.Retrieve(ctx, query, model.ModeAll, k)
	if err != nil {
		return nil, helper.NewError("retrieve context", err)
	}
	if k <= 0 {
		k = retrieval.K
	}

	chunks := ContextResults(retrieval, k)

	var messages []Message
	if len(chunks) > 0 {
		messages = r.buildMessages(query, chunks, taskType, pilotID)
	} else {
		messages = []Message{{Role: RoleUser, Content: query}}
	}

	generation, err := r.generator.Generate(ctx, messages, taskType)
	if err != nil {
		return nil, helper.NewError("generate response", err)
	}

	answer := &Answer{
		Query:         query,
		Response:      generation.Text,
		TaskType:      taskType,
		PilotID:       pilotID,
		Model:         generation.Model,
		KeyUsed:       generation.KeyUsed,
		Demo:          generation.Demo,
		ContextChunks: len(chunks),
		Sources:       sources(chunks),
		GeneratedAt:   r.now(),
		Retrieval:     retrieval,
	}

	if pilotID != "" && r.conversations != nil {
		id, err := r.conversations.AddConversation(query, pilotID, relatedDocuments(chunks))
		if err != nil {
			r.log.Warn("Failed to record conversation", slog.String("pilot_id", pilotID), slog.String("error", err.Error()))
		} else {
			answer.ConversationID = id
		}
	}

	r.log.Info("Answered query", slog.String("task_type", string(taskType)), slog.Int("context_chunks", len(chunks)), slog.String("model", generation.Model))

	return answer, nil
}

// ContextResults picks the results used as context: the fused results, or
// the vector results followed by the fuzzy results, at most k.
func ContextResults(response *model.RetrievalResponse, k int) []*model.RetrievalResult {
	if response == nil {
		return nil
	}
	if len(response.FusedResults) > 0 {
		return response.FusedResults
	}

	combined := make([]*model.RetrievalResult, 0, len(response.VectorResults)+len(response.FuzzyResults))
	combined = append(combined, response.VectorResults...)
	combined = append(combined, response.FuzzyResults...)
	if k > 0 && len(combined) > k {
		combined = combined[:k]
	}
	return combined
}

func (r *RAG) buildMessages(query string, chunks []*model.RetrievalResult, taskType TaskType, pilotID string) []Message {
	messages := []Message{{Role: RoleSystem, Content: BuildSystemPrompt(r.systemPrompt, taskType)}}

	if pilotID != "" && r.conversations != nil {
		history := r.conversations.RecentConversations(pilotID, r.historySize)
		if len(history) > 0 {
			messages = append(messages, Message{
				Role:    RoleAssistant,
				Content: "Previous conversation context:\n" + strings.Join(history, "\n"),
			})
		}
	}

	if retrieved := PrepareContext(chunks, r.maxContext); retrieved != "" {
		messages = append(messages, Message{
			Role:    RoleAssistant,
			Content: "Retrieved context:\n" + retrieved,
		})
	}

	return append(messages, Message{Role: RoleUser, Content: query})
}

func sources(chunks []*model.RetrievalResult) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range chunks {
		source := ResultSource(c)
		if !seen[source] {
			seen[source] = true
			out = append(out, source)
		}
	}
	return out
}

func relatedDocuments(chunks []*model.RetrievalResult) []string {
	seen := map[string]bool{}
	var docs []string
	for _, c := range chunks {
		if id, ok := c.Metadata["document_node"].(string); ok && id != "" && !seen[id] {
			seen[id] = true
			docs = append(docs, id)
		}
	}
	return docs
}
