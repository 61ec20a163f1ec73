package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uavlogviewer/chatbot/pkg/llm"
)

// writeError maps an internal error to the HTTP error taxonomy and writes
// a uniform JSON body. It never leaks a stack trace or a raw
// provider error body.
func writeError(c *gin.Context, err error) {
	var modelErr *llm.ModelError
	var transportErr *llm.TransportError

	switch {
	case errors.As(err, &modelErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "the language model rejected the request"})
	case errors.As(err, &transportErr):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "the language model is temporarily unreachable"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func writeNotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: message})
}
