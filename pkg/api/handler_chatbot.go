package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uavlogviewer/chatbot/pkg/docindex"
	"github.com/uavlogviewer/chatbot/pkg/ingest"
	"github.com/uavlogviewer/chatbot/pkg/session"
	"github.com/uavlogviewer/chatbot/pkg/tools"
)

// initHandler handles POST /chatbot/init.
func (s *Server) initHandler(c *gin.Context) {
	var req InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "logData is required")
		return
	}

	sess, err := s.registry.Create(c.Request.Context(), ingest.ParsedLog(req.LogData))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to ingest log"})
		return
	}

	c.JSON(http.StatusOK, InitResponse{
		SessionID:     sess.ID,
		IngestSummary: sess.IngestSummary(),
		Timestamp:     time.Now(),
	})
}

// chatHandler handles POST /chatbot/chat.
func (s *Server) chatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "message and sessionId are required")
		return
	}

	sess := s.registry.Get(req.SessionID)
	if sess == nil {
		writeNotFound(c, "session not found or expired")
		return
	}

	result, err := s.controller.Handle(c.Request.Context(), sess, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	sess.AppendValidation(result.QueryValidation)

	var relevantDocs []docindex.SearchResult
	if s.docs != nil {
		if hits, err := s.docs.Search(c.Request.Context(), req.Message, 0); err == nil {
			relevantDocs = hits
		}
	}

	c.JSON(http.StatusOK, ChatResponse{
		Response:        result.Text,
		RelevantDocs:    relevantDocs,
		DataSchema:      dataSchema(c, sess),
		AvailableTables: sess.TablesAvailable,
		QueryValidation: result.QueryValidation,
		Timestamp:       time.Now(),
	})
}

// validateSessionHandler handles GET /chatbot/sessions/:id/validate.
func (s *Server) validateSessionHandler(c *gin.Context) {
	sess := s.registry.Get(c.Param("id"))
	if sess == nil {
		c.JSON(http.StatusNotFound, ValidateResponse{Valid: false})
		return
	}
	c.JSON(http.StatusOK, ValidateResponse{Valid: true})
}

// schemaHandler handles GET /chatbot/sessions/:id/schema.
func (s *Server) schemaHandler(c *gin.Context) {
	sess := s.sessionOrNotFound(c)
	if sess == nil {
		return
	}
	c.JSON(http.StatusOK, dataSchema(c, sess))
}

// queryHandler handles POST /chatbot/sessions/:id/query.
func (s *Server) queryHandler(c *gin.Context) {
	sess := s.sessionOrNotFound(c)
	if sess == nil {
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "sql is required")
		return
	}

	argsJSON, err := json.Marshal(map[string]string{"sql": req.SQL})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	result := tools.Dispatch(c.Request.Context(), sess.Store(), tools.ToolQueryData, string(argsJSON))
	if !result.OK {
		writeBadRequest(c, result.Message)
		return
	}
	c.JSON(http.StatusOK, result)
}

// validationHistoryHandler handles GET /chatbot/sessions/:id/validation-history.
func (s *Server) validationHistoryHandler(c *gin.Context) {
	sess := s.sessionOrNotFound(c)
	if sess == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"validations": sess.ValidationHistory()})
}

// statsHandler handles GET /chatbot/sessions/stats.
func (s *Server) statsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, SessionStats{ActiveSessions: s.registry.Count()})
}

// dataSchema runs the getDataSchema tool against sess's store, the same
// capability the model itself calls during a turn, so the
// HTTP surface and the agent never observe a different schema.
func dataSchema(c *gin.Context, sess *session.Session) any {
	result := tools.Dispatch(c.Request.Context(), sess.Store(), tools.ToolGetDataSchema, "{}")
	return result.Rows
}
