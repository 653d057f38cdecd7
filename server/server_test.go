package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/core/graph"
	"github.com/siherrmann/nexus/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockService struct {
	graph       *graph.Graph
	response    *model.RetrievalResponse
	retrieveErr error
	answerErr   error
	ingestErr   error
	pingErr     error

	gotQuery string
	gotMode  model.Mode
	gotK     int
	gotTask  generation.TaskType
	gotPilot string
	gotDoc   *model.Document
	gotSteps int
}

func (m *mockService) Retrieve(ctx context.Context, query string, mode model.Mode, k int) (*model.RetrievalResponse, error) {
	m.gotQuery, m.gotMode, m.gotK = query, mode, k
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	return m.response, nil
}

func (m *mockService) QueryConfig() model.QueryConfig {
	return model.DefaultQueryConfig()
}

func (m *mockService) Answer(ctx context.Context, query string, k int, taskType generation.TaskType, pilotID string) (*generation.Answer, error) {
	m.gotQuery, m.gotK, m.gotTask, m.gotPilot = query, k, taskType, pilotID
	if m.answerErr != nil {
		return nil, m.answerErr
	}
	return &generation.Answer{Query: query, Response: "answer", TaskType: taskType, Sources: []string{"router.go"}}, nil
}

func (m *mockService) ProcessAndInsertDocument(ctx context.Context, doc *model.Document) (int, error) {
	m.gotDoc = doc
	if m.ingestErr != nil {
		return 0, m.ingestErr
	}
	doc.RID = uuid.MustParse("6f1c1f3e-7d3b-4a5e-9c1a-2b3c4d5e6f70")
	return 3, nil
}

func (m *mockService) AddConversation(utterance, pilotID string, relatedDocs []string) (string, error) {
	return m.graph.AddConversation(utterance, pilotID, relatedDocs)
}

func (m *mockService) Walk(ctx context.Context, startNodes []string, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error) {
	m.gotSteps = maxSteps
	return m.graph.ReasoningWalk(ctx, startNodes, goalType, maxSteps)
}

func (m *mockService) QueryNeighbors(ctx context.Context, nodeID string, maxDepth int, edgeTypes []model.EdgeType) (map[int][]graph.NeighborInfo, error) {
	if !m.graph.HasNode(nodeID) {
		return nil, &model.UnknownNodeError{NodeID: nodeID}
	}
	return graph.QueryNeighbors(ctx, m.graph, nodeID, maxDepth, edgeTypes)
}

func (m *mockService) Hotspots(ctx context.Context, limit int) ([]*graph.Hotspot, error) {
	return m.graph.Hotspots(ctx, limit)
}

func (m *mockService) GraphStatistics() *graph.Statistics {
	return m.graph.Statistics()
}

func (m *mockService) ExportGraph() *graph.Export {
	return m.graph.Export()
}

func (m *mockService) Ping(ctx context.Context) error {
	return m.pingErr
}

func newTestService(t *testing.T) *mockService {
	g := graph.NewGraph(nil)
	for _, n := range []struct {
		id       string
		nodeType model.NodeType
		content  string
	}{
		{"auth", model.NodeTypeModule, "authentication tokens"},
		{"login", model.NodeTypeDocument, "login handler"},
		{"session", model.NodeTypeDocument, "session store"},
	} {
		_, err := g.AddNode(n.id, n.nodeType, n.content, nil)
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge("auth", "login", model.EdgeTypeDependency, 0.9, nil))
	require.NoError(t, g.AddEdge("login", "session", model.EdgeTypeDependency, 0.5, nil))

	fused := &model.RetrievalResult{
		ItemID:                 "c1",
		FusedScore:             0.6/61 + 0.4/61,
		ContributingStrategies: []model.Strategy{model.StrategyVector, model.StrategyFuzzy},
		Metadata: model.Metadata{
			"vector_rank": 0, "vector_score": 0.9,
			"fuzzy_rank": 0, "fuzzy_score": 0.5,
		},
	}

	return &mockService{
		graph: g,
		response: &model.RetrievalResponse{
			Mode:          model.ModeAll,
			K:             10,
			VectorResults: []*model.RetrievalResult{},
			FuzzyResults:  []*model.RetrievalResult{},
			GraphResults:  []*model.WalkResult{},
			FusedResults:  []*model.RetrievalResult{fused},
		},
	}
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "Expected a JSON body, got %s", w.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	t.Run("Ok", func(t *testing.T) {
		s := New(newTestService(t), Config{}, nil)
		w := do(t, s, http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode(t, w)["status"])
	})

	t.Run("Unavailable backend", func(t *testing.T) {
		service := newTestService(t)
		service.pingErr = errors.New("connection refused")
		w := do(t, New(service, Config{}, nil), http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSearch(t *testing.T) {
	t.Run("Returns the retrieval response", func(t *testing.T) {
		service := newTestService(t)
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/search", SearchRequest{Query: "login tokens", Mode: "vector", K: 5})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Len(t, body["fused_results"], 1)
		assert.NotContains(t, body, "explanation", "Expected no explanation unless requested")
		assert.Equal(t, model.ModeSemantic, service.gotMode, "Expected vector to be parsed as semantic")
		assert.Equal(t, 5, service.gotK)
		assert.Equal(t, "login tokens", service.gotQuery)
	})

	t.Run("Explains the fused ranking", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodPost, "/v1/search", SearchRequest{Query: "login", Explain: true})

		require.Equal(t, http.StatusOK, w.Code)
		explanation, ok := decode(t, w)["explanation"].(map[string]interface{})
		require.True(t, ok, "Expected an explanation object")
		assert.Equal(t, "reciprocal_rank_fusion", explanation["method"])
		assert.Len(t, explanation["breakdown"], 1)
	})

	t.Run("Invalid requests", func(t *testing.T) {
		s := New(newTestService(t), Config{}, nil)
		for name, request := range map[string]SearchRequest{
			"missing query": {Mode: "all"},
			"unknown mode":  {Query: "login", Mode: "telepathy"},
			"k too large":   {Query: "login", K: 1000},
		} {
			w := do(t, s, http.MethodPost, "/v1/search", request)
			assert.Equal(t, http.StatusBadRequest, w.Code, "Expected bad request for %s", name)
		}
	})

	t.Run("Malformed query is a bad request", func(t *testing.T) {
		service := newTestService(t)
		service.retrieveErr = &model.MalformedQueryError{Reason: "query is empty", Err: model.ErrEmptyQuery}
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/search", SearchRequest{Query: "   "})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["error"], "malformed query")
	})

	t.Run("Internal error", func(t *testing.T) {
		service := newTestService(t)
		service.retrieveErr = errors.New("boom")
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/search", SearchRequest{Query: "login"})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRAG(t *testing.T) {
	t.Run("Returns the answer", func(t *testing.T) {
		service := newTestService(t)
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/rag", RAGRequest{Query: "how does login work", TaskType: "code", PilotID: "codewright"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "answer", decode(t, w)["response"])
		assert.Equal(t, generation.TaskCode, service.gotTask)
		assert.Equal(t, "codewright", service.gotPilot)
	})

	t.Run("Unknown task type", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodPost, "/v1/rag", RAGRequest{Query: "login", TaskType: "poetry"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Generation timeout", func(t *testing.T) {
		service := newTestService(t)
		service.answerErr = context.DeadlineExceeded
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/rag", RAGRequest{Query: "login"})
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})
}

func TestDocuments(t *testing.T) {
	t.Run("Ingests a code file", func(t *testing.T) {
		service := newTestService(t)
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/documents", DocumentRequest{
			Title:   "router",
			Content: "package router",
			Source:  "internal/router.go",
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, float64(3), body["chunks"])
		assert.Equal(t, "file::internal/router.go", body["node_id"])
		assert.Equal(t, "6f1c1f3e-7d3b-4a5e-9c1a-2b3c4d5e6f70", body["rid"])
		assert.Equal(t, "go", service.gotDoc.Language, "Expected the language to be detected from the source")
	})

	t.Run("Invalid requests", func(t *testing.T) {
		s := New(newTestService(t), Config{}, nil)
		for name, request := range map[string]DocumentRequest{
			"missing content":  {Title: "router"},
			"missing title":    {Content: "text"},
			"unknown language": {Title: "router", Content: "text", Language: "cobol"},
		} {
			w := do(t, s, http.MethodPost, "/v1/documents", request)
			assert.Equal(t, http.StatusBadRequest, w.Code, "Expected bad request for %s", name)
		}
	})
}

func TestConversations(t *testing.T) {
	t.Run("Adds a conversation node", func(t *testing.T) {
		service := newTestService(t)
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/conversations", ConversationRequest{
			Utterance:   "the login handler breaks",
			PilotID:     "remediator",
			RelatedDocs: []string{"login"},
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		id, _ := decode(t, w)["node_id"].(string)
		assert.Contains(t, id, "conversation::remediator::")
		assert.True(t, service.graph.HasNode(id))
	})

	t.Run("Missing pilot", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodPost, "/v1/conversations", ConversationRequest{Utterance: "hello"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGraphEndpoints(t *testing.T) {
	t.Run("Walk uses the default max steps", func(t *testing.T) {
		service := newTestService(t)
		w := do(t, New(service, Config{}, nil), http.MethodPost, "/v1/graph/walk", WalkRequest{StartNodes: []string{"auth"}, GoalType: "document"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 2, service.gotSteps)
		body := decode(t, w)
		assert.Equal(t, float64(2), body["count"], "Expected login and session to be reached")
	})

	t.Run("Walk requires start nodes", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodPost, "/v1/graph/walk", WalkRequest{GoalType: "document"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Neighbors by depth", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodGet, "/v1/graph/nodes/auth/neighbors?depth=2", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		neighbors, ok := decode(t, w)["neighbors"].(map[string]interface{})
		require.True(t, ok)
		assert.Len(t, neighbors["1"], 1)
		assert.Len(t, neighbors["2"], 1)
	})

	t.Run("Neighbors of a missing node", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodGet, "/v1/graph/nodes/missing/neighbors", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Neighbors depth out of range", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodGet, "/v1/graph/nodes/auth/neighbors?depth=9", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Hotspots", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodGet, "/v1/graph/hotspots?limit=2", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, decode(t, w)["hotspots"], 2)
	})

	t.Run("Hotspots with an invalid limit", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodGet, "/v1/graph/hotspots?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Statistics", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodGet, "/v1/graph/stats", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		nodes, ok := decode(t, w)["nodes"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, float64(3), nodes["total"])
	})

	t.Run("Export", func(t *testing.T) {
		w := do(t, New(newTestService(t), Config{}, nil), http.MethodGet, "/v1/graph/export", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Len(t, body["nodes"], 3)
		assert.Len(t, body["edges"], 2)
	})
}

func TestMetrics(t *testing.T) {
	s := New(newTestService(t), Config{}, nil)
	do(t, s, http.MethodGet, "/health", nil)

	w := do(t, s, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nexus_http_requests_total")
}
