package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// docsStatusHandler handles GET /chatbot/docs/status.
func (s *Server) docsStatusHandler(c *gin.Context) {
	if s.docs == nil {
		c.JSON(http.StatusOK, gin.H{"sourceCount": 0, "chunkCount": 0, "usingSeed": true})
		return
	}
	c.JSON(http.StatusOK, s.docs.Status())
}

// docsRefreshHandler handles POST /chatbot/docs/refresh.
func (s *Server) docsRefreshHandler(c *gin.Context) {
	if s.docs == nil {
		writeNotFound(c, "doc index not configured")
		return
	}
	if err := s.docs.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to refresh documentation"})
		return
	}
	c.JSON(http.StatusOK, s.docs.Status())
}

// docsClearCacheHandler handles POST /chatbot/docs/clear-cache.
func (s *Server) docsClearCacheHandler(c *gin.Context) {
	if s.docs == nil {
		writeNotFound(c, "doc index not configured")
		return
	}
	if err := s.docs.ClearCache(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to clear documentation cache"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
