// Package coordinator implements the authenticated HTTP facade of
// spec.md §4.3 over a jobqueue.Engine: a stateless per-request wrapper
// exposing job issuance/lifecycle, result submission, status, worker
// configuration and a live event stream.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garnizeh/searchcoordinator/internal/jobqueue"
	"github.com/garnizeh/searchcoordinator/internal/logging"
)

// Server is the HTTP facade for the search coordinator.
type Server struct {
	engine *jobqueue.Engine
	apiKey string
	logger *logging.Logger
	hub    *EventHub

	router     *http.ServeMux
	handler    http.Handler
	httpServer *http.Server

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New constructs a Server wrapping engine. hub should be the same
// EventHub passed to jobqueue.WithEventSink when engine was built, so
// lifecycle events reach GET /status/stream subscribers. The returned
// Server has registered routes and is ready for Start.
func New(engine *jobqueue.Engine, apiKey string, logger *logging.Logger, hub *EventHub) *Server {
	s := &Server{
		engine: engine,
		apiKey: apiKey,
		logger: logger,
		hub:    hub,
		conns:  make(map[net.Conn]struct{}),
	}
	s.registerRoutes()
	return s
}

// Start runs the HTTP server bound to addr and the websocket hub, both
// joined to ctx. It blocks until ctx is cancelled or the server fails,
// and performs a graceful shutdown with a final checkpoint write on the
// way out — the same connection-tracking and force-close-on-timeout
// pattern as the teacher's internal/server.Server.Start.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.httpServer.ConnState = func(c net.Conn, state http.ConnState) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch state {
		case http.StateNew, http.StateActive:
			s.conns[c] = struct{}{}
		case http.StateClosed, http.StateHijacked:
			delete(s.conns, c)
		}
	}

	lc := &net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warning("shutdown timed out, force-closing active connections")
				s.mu.Lock()
				for c := range s.conns {
					_ = c.Close()
				}
				s.mu.Unlock()
			}
			return fmt.Errorf("server shutdown: %w", err)
		}

		if err := s.engine.Checkpoint(); err != nil {
			s.logger.Error("final checkpoint write failed", zap.Error(err))
		}
		s.logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}
