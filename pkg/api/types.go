// Package api is the HTTP surface: gin handlers over the
// Session Registry, Agent Controller, and Doc Index.
package api

import (
	"time"

	"github.com/uavlogviewer/chatbot/pkg/docindex"
	"github.com/uavlogviewer/chatbot/pkg/ingest"
	"github.com/uavlogviewer/chatbot/pkg/validator"
)

// InitRequest is the body of POST /chatbot/init.
type InitRequest struct {
	LogData map[string]any `json:"logData" binding:"required"`
}

// InitResponse is the response of POST /chatbot/init. IngestSummary lets a
// caller see which message types were dropped and why.
type InitResponse struct {
	SessionID     string                `json:"sessionId"`
	IngestSummary *ingest.IngestSummary `json:"ingestSummary"`
	Timestamp     time.Time             `json:"timestamp"`
}

// ChatRequest is the body of POST /chatbot/chat.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
}

// ChatResponse is the response of POST /chatbot/chat. The wire format is
// stable; numbers are emitted as JSON reals.
type ChatResponse struct {
	Response        string                  `json:"response"`
	Thinking        string                  `json:"thinking,omitempty"`
	RelevantDocs    []docindex.SearchResult `json:"relevantDocs,omitempty"`
	DataSchema      any                     `json:"dataSchema,omitempty"`
	AvailableTables []string                `json:"availableTables"`
	QueryValidation validator.Report        `json:"queryValidation"`
	Timestamp       time.Time               `json:"timestamp"`
}

// QueryRequest is the body of POST /chatbot/sessions/:id/query.
type QueryRequest struct {
	SQL string `json:"sql" binding:"required"`
}

// ValidateResponse is the response of GET /chatbot/sessions/:id/validate.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// SessionStats is the response of GET /chatbot/sessions/stats.
type SessionStats struct {
	ActiveSessions int `json:"activeSessions"`
}

// ErrorResponse is the uniform JSON error body. User-visible errors never
// leak stack traces or provider error bodies.
type ErrorResponse struct {
	Error string `json:"error"`
}
