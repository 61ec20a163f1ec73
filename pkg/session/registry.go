// Package session is the process-local Session Registry (C4):
// session_id -> {log-derived tables, chat history}, with TTL eviction.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uavlogviewer/chatbot/pkg/ingest"
	"github.com/uavlogviewer/chatbot/pkg/store"
)

// defaultTTL is the default session eviction window.
const defaultTTL = 24 * time.Hour

// Registry is the process-wide Session Registry singleton.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	ingester *ingest.Ingester
}

// NewRegistry creates a Registry with the given session TTL. A non-positive
// ttl falls back to the spec default of 24h.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		ingester: ingest.New(),
	}
}

// Create ingests log into a freshly opened Tabular Store and registers a new
// Session bound to it. The table set is fully established
// before this returns.
func (r *Registry) Create(ctx context.Context, log ingest.ParsedLog) (*Session, error) {
	s, err := store.New()
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	summary, err := r.ingester.Ingest(ctx, s, log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("ingest log: %w", err)
	}

	now := time.Now()
	sess := &Session{
		ID:              uuid.New().String(),
		CreatedAt:       now,
		TablesAvailable: summary.TablesCreated,
		lastAccess:      now,
		summary:         summary,
		tables:          s,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	return sess, nil
}

// Get returns the session for id, touching LastAccess, or nil if the id is
// unknown or the session has expired (lazily evicted on this call).
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	if time.Since(sess.LastAccess()) > r.ttl {
		r.evict(id)
		return nil
	}

	sess.Touch()
	return sess
}

// Sweep evicts every session whose idle time exceeds the registry TTL. It
// runs periodically via StartSweeper; Get does not call it, and instead
// evicts only the expired session it was asked for.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, sess := range r.sessions {
		if time.Since(sess.LastAccess()) > r.ttl {
			sess.tables.Close()
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of live (non-evicted) sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		sess.tables.Close()
		delete(r.sessions, id)
	}
}

// StartSweeper runs Sweep on a ticker until ctx is cancelled, mirroring the
// teacher's cleanup-service loop shape (pkg/cleanup/service.go) repurposed
// from DB soft-deletes to in-memory session eviction. The interval is TTL/10,
// trading sweep latency for wakeup frequency.
func (r *Registry) StartSweeper(ctx context.Context) {
	interval := r.ttl / 10
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
