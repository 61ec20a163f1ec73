package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uavlogviewer/chatbot/pkg/controller"
	"github.com/uavlogviewer/chatbot/pkg/docindex"
	"github.com/uavlogviewer/chatbot/pkg/session"
	"github.com/uavlogviewer/chatbot/pkg/version"
)

// Server is the HTTP API server. It is a thin layer: every
// handler translates one HTTP request into a call against the Session
// Registry, the Agent Controller, or the Doc Index, and maps the result
// back to the documented wire shape.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	registry   *session.Registry
	controller *controller.Controller
	docs       *docindex.Index
}

// NewServer wires a Server over its dependencies and registers every route.
func NewServer(registry *session.Registry, ctrl *controller.Controller, docs *docindex.Index) *Server {
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(securityHeaders())

	s := &Server{engine: e, registry: registry, controller: ctrl, docs: docs}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	chatbot := s.engine.Group("/chatbot")
	chatbot.POST("/init", s.initHandler)
	chatbot.POST("/chat", s.chatHandler)
	chatbot.GET("/sessions/stats", s.statsHandler)
	chatbot.GET("/sessions/:id/validate", s.validateSessionHandler)
	chatbot.GET("/sessions/:id/schema", s.schemaHandler)
	chatbot.POST("/sessions/:id/query", s.queryHandler)
	chatbot.GET("/sessions/:id/validation-history", s.validationHistoryHandler)
	chatbot.GET("/docs/status", s.docsStatusHandler)
	chatbot.POST("/docs/refresh", s.docsRefreshHandler)
	chatbot.POST("/docs/clear-cache", s.docsClearCacheHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": version.Full()})
}

// sessionOrNotFound resolves :id to a live session, writing a 404 and
// returning nil if it is unknown or TTL-evicted.
func (s *Server) sessionOrNotFound(c *gin.Context) *session.Session {
	id := c.Param("id")
	sess := s.registry.Get(id)
	if sess == nil {
		writeNotFound(c, "session not found or expired")
		return nil
	}
	return sess
}
