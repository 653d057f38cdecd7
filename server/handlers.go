package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/siherrmann/nexus/core/fusion"
	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/model"
)

const (
	defaultHotspots      = 10
	defaultNeighborDepth = 2
)

// fail maps err to a status code and writes it as an ErrorResponse.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var unknown *model.UnknownNodeError
	switch {
	case model.IsMalformedQuery(err):
		status = http.StatusBadRequest
	case errors.As(err, &unknown):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.service.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSearch(c *gin.Context) {
	var request SearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	mode, err := model.ParseMode(request.Mode)
	if err != nil {
		s.fail(c, err)
		return
	}

	response, err := s.service.Retrieve(c.Request.Context(), request.Query, mode, request.K)
	if err != nil {
		s.fail(c, err)
		return
	}

	body := SearchResponse{RetrievalResponse: response}
	if request.Explain {
		config := s.service.QueryConfig()
		body.Explanation = fusion.Explain(response.FusedResults, config.Weights, config.RRFK, 0)
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleRAG(c *gin.Context) {
	var request RAGRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	taskType, err := generation.ParseTaskType(request.TaskType)
	if err != nil {
		badRequest(c, err)
		return
	}

	answer, err := s.service.Answer(c.Request.Context(), request.Query, request.K, taskType, request.PilotID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleDocuments(c *gin.Context) {
	var request DocumentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	language := request.Language
	if language == "" && request.Source != "" {
		language = model.DetectLanguage(request.Source)
	}
	doc := &model.Document{
		Title:    request.Title,
		Source:   request.Source,
		Language: language,
		Content:  request.Content,
		Metadata: request.Metadata,
	}

	chunks, err := s.service.ProcessAndInsertDocument(c.Request.Context(), doc)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, DocumentResponse{
		RID:    doc.RID.String(),
		NodeID: doc.NodeID(),
		Chunks: chunks,
	})
}

func (s *Server) handleConversations(c *gin.Context) {
	var request ConversationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	id, err := s.service.AddConversation(request.Utterance, request.PilotID, request.RelatedDocs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"node_id": id})
}

func (s *Server) handleWalk(c *gin.Context) {
	var request WalkRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	maxSteps := request.MaxSteps
	if maxSteps == 0 {
		maxSteps = s.service.QueryConfig().GraphMaxSteps
	}

	results, err := s.service.Walk(c.Request.Context(), request.StartNodes, model.NodeType(request.GoalType), maxSteps)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (s *Server) handleNeighbors(c *gin.Context) {
	var query NeighborsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}
	if query.Depth == 0 {
		query.Depth = defaultNeighborDepth
	}
	edgeTypes := make([]model.EdgeType, 0, len(query.EdgeTypes))
	for _, t := range query.EdgeTypes {
		edgeTypes = append(edgeTypes, model.EdgeType(t))
	}

	neighbors, err := s.service.QueryNeighbors(c.Request.Context(), c.Param("id"), query.Depth, edgeTypes)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"node_id": c.Param("id"), "neighbors": neighbors})
}

func (s *Server) handleHotspots(c *gin.Context) {
	var query HotspotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultHotspots
	}

	hotspots, err := s.service.Hotspots(c.Request.Context(), query.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hotspots": hotspots})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.GraphStatistics())
}

func (s *Server) handleExport(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.ExportGraph())
}
