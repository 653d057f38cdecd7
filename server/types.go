package server

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/siherrmann/nexus/core/fusion"
	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/model"
)

// MaxK bounds the result size a client may request.
const MaxK = 100

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query   string `json:"query" binding:"required"`
	Mode    string `json:"mode" binding:"omitempty,retrievalmode"`
	K       int    `json:"k" binding:"omitempty,min=1,max=100"`
	Explain bool   `json:"explain"`
}

// SearchResponse is a retrieval response with an optional fusion breakdown.
type SearchResponse struct {
	*model.RetrievalResponse
	Explanation *fusion.Explanation `json:"explanation,omitempty"`
}

// RAGRequest is the body of POST /v1/rag.
type RAGRequest struct {
	Query    string `json:"query" binding:"required"`
	K        int    `json:"k" binding:"omitempty,min=1,max=100"`
	TaskType string `json:"task_type" binding:"omitempty,tasktype"`
	PilotID  string `json:"pilot_id" binding:"omitempty,max=128"`
}

// DocumentRequest is the body of POST /v1/documents. Documents with a
// language are treated as code files and their dependencies are added to
// the graph.
type DocumentRequest struct {
	Title    string         `json:"title" binding:"required,max=512"`
	Content  string         `json:"content" binding:"required"`
	Source   string         `json:"source" binding:"omitempty,max=1024"`
	Language string         `json:"language" binding:"omitempty,oneof=python go cpp qml"`
	Metadata model.Metadata `json:"metadata"`
}

// DocumentResponse reports an ingested document.
type DocumentResponse struct {
	RID    string `json:"rid"`
	NodeID string `json:"node_id"`
	Chunks int    `json:"chunks"`
}

// ConversationRequest is the body of POST /v1/conversations.
type ConversationRequest struct {
	Utterance   string   `json:"utterance" binding:"required"`
	PilotID     string   `json:"pilot_id" binding:"required,max=128"`
	RelatedDocs []string `json:"related_docs" binding:"omitempty,dive,required"`
}

// WalkRequest is the body of POST /v1/graph/walk.
type WalkRequest struct {
	StartNodes []string `json:"start_nodes" binding:"required,min=1,dive,required"`
	GoalType   string   `json:"goal_type" binding:"required"`
	MaxSteps   int      `json:"max_steps" binding:"min=0,max=10"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// registerValidations adds the custom tags used by the request types to
// the validator behind gin's binding.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("retrievalmode", func(fl validator.FieldLevel) bool {
		_, err := model.ParseMode(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("tasktype", func(fl validator.FieldLevel) bool {
		_, err := generation.ParseTaskType(fl.Field().String())
		return err == nil
	})
}

// HotspotsQuery holds the query parameters of GET /v1/graph/hotspots.
type HotspotsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// NeighborsQuery holds the query parameters of GET /v1/graph/nodes/:id/neighbors.
type NeighborsQuery struct {
	Depth     int      `form:"depth" binding:"omitempty,min=1,max=5"`
	EdgeTypes []string `form:"edge_type"`
}
