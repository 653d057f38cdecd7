package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/siherrmann/nexus/core/generation"
	"github.com/siherrmann/nexus/core/graph"
	"github.com/siherrmann/nexus/model"
)

// Service is what the HTTP surface exposes. *nexus.Nexus implements it.
type Service interface {
	Retrieve(ctx context.Context, query string, mode model.Mode, k int) (*model.RetrievalResponse, error)
	QueryConfig() model.QueryConfig
	Answer(ctx context.Context, query string, k int, taskType generation.TaskType, pilotID string) (*generation.Answer, error)
	ProcessAndInsertDocument(ctx context.Context, doc *model.Document) (int, error)
	AddConversation(utterance, pilotID string, relatedDocs []string) (string, error)
	Walk(ctx context.Context, startNodes []string, goalType model.NodeType, maxSteps int) ([]*model.WalkResult, error)
	QueryNeighbors(ctx context.Context, nodeID string, maxDepth int, edgeTypes []model.EdgeType) (map[int][]graph.NeighborInfo, error)
	Hotspots(ctx context.Context, limit int) ([]*graph.Hotspot, error)
	GraphStatistics() *graph.Statistics
	ExportGraph() *graph.Export
	Ping(ctx context.Context) error
}

// Config configures the server.
type Config struct {
	Addr            string
	Mode            string
	ShutdownTimeout time.Duration
}

// Server is the JSON/HTTP transport in front of a Service.
type Server struct {
	service Service
	config  Config
	router  *gin.Engine
	log     *slog.Logger
}

var validationsOnce sync.Once

// New creates a new server and registers all routes.
func New(service Service, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	validationsOnce.Do(registerValidations)

	s := &Server{
		service: service,
		config:  config,
		router:  gin.New(),
		log:     logger,
	}
	s.router.Use(gin.Recovery(), metricsMiddleware(), s.logRequests())
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.POST("/search", s.handleSearch)
	v1.POST("/rag", s.handleRAG)
	v1.POST("/documents", s.handleDocuments)
	v1.POST("/conversations", s.handleConversations)

	g := v1.Group("/graph")
	g.GET("/export", s.handleExport)
	g.GET("/hotspots", s.handleHotspots)
	g.GET("/stats", s.handleStats)
	g.POST("/walk", s.handleWalk)
	g.GET("/nodes/:id/neighbors", s.handleNeighbors)
}

// Handler returns the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("Starting server", slog.String("addr", s.config.Addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.log.Info("Shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Debug("Handled request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
