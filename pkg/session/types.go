package session

import (
	"sync"
	"time"

	"github.com/uavlogviewer/chatbot/pkg/ingest"
	"github.com/uavlogviewer/chatbot/pkg/store"
	"github.com/uavlogviewer/chatbot/pkg/validator"
)

// Role values for Turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxHistoryTurns bounds the retained conversation window.
const maxHistoryTurns = 20

// maxValidationHistory bounds the retained Validation Record window served
// by GET /chatbot/sessions/:id/validation-history.
const maxValidationHistory = 20

// Turn is one (role, text) entry in a session's conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a server-side binding between an opaque id, a derived table
// set, and a bounded chat history.
type Session struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	TablesAvailable []string  `json:"tablesAvailable"`

	mu          sync.RWMutex
	lastAccess  time.Time
	history     []Turn
	validations []validator.Report
	summary     *ingest.IngestSummary
	tables      store.Store
}

// Store returns the session's private Tabular Store (C1). The table set was
// fully established before Create returned; the Store does not itself
// prevent later writes made through Query.
func (s *Session) Store() store.Store {
	return s.tables
}

// Touch updates LastAccess to now (thread-safe). Called on every Get.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// LastAccess returns the last-access timestamp (thread-safe).
func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// AppendTurn records a (role, text) pair and trims history to the trailing
// window of maxHistoryTurns.
func (s *Session) AppendTurn(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, Turn{Role: role, Text: text, Timestamp: time.Now()})
	if len(s.history) > maxHistoryTurns {
		s.history = s.history[len(s.history)-maxHistoryTurns:]
	}
}

// History returns a copy of the retained conversation turns.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// AppendValidation records a turn's Query Validator report and trims to the
// trailing window of maxValidationHistory.
func (s *Session) AppendValidation(report validator.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.validations = append(s.validations, report)
	if len(s.validations) > maxValidationHistory {
		s.validations = s.validations[len(s.validations)-maxValidationHistory:]
	}
}

// ValidationHistory returns a copy of the retained Validation Records.
func (s *Session) ValidationHistory() []validator.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]validator.Report, len(s.validations))
	copy(out, s.validations)
	return out
}

// IngestSummary returns the summary produced when the session's log was
// ingested.
func (s *Session) IngestSummary() *ingest.IngestSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Snapshot is a read-only copy of a Session's externally visible fields,
// safe to serialize without holding the session's lock.
type Snapshot struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	LastAccess      time.Time `json:"lastAccess"`
	MessageCount    int       `json:"messageCount"`
	TablesAvailable []string  `json:"tablesAvailable"`
}

// Snapshot returns a consistent point-in-time copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make([]string, len(s.TablesAvailable))
	copy(tables, s.TablesAvailable)

	return Snapshot{
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		LastAccess:      s.lastAccess,
		MessageCount:    len(s.history),
		TablesAvailable: tables,
	}
}
