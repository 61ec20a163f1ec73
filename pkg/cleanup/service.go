// Package cleanup runs the background maintenance loop. Session expiry is
// handled by session.Registry.StartSweeper directly; this service owns the
// one piece of state that registry sweeping does not touch: periodically
// re-fetching documentation sources so the Doc Index does not go stale
// across a long-lived process.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/uavlogviewer/chatbot/pkg/docindex"
)

// Service periodically re-fetches documentation sources on an interval.
type Service struct {
	interval time.Duration
	docs     *docindex.Index

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup service that refreshes docs every interval.
// docs may be nil, in which case the service runs but does nothing.
func NewService(interval time.Duration, docs *docindex.Index) *Service {
	return &Service{interval: interval, docs: docs}
}

// Start launches the background refresh loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "interval", s.interval)
}

// Stop signals the refresh loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.refreshDocs(ctx)
}

func (s *Service) refreshDocs(ctx context.Context) {
	if s.docs == nil {
		return
	}
	if err := s.docs.Refresh(ctx); err != nil {
		slog.Error("scheduled doc refresh failed", "error", err)
		return
	}
	slog.Info("scheduled doc refresh completed")
}
