// Package server exposes advisory sessions over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/agriassist/internal/assistant"
	"github.com/raphaelgruber/agriassist/internal/metrics"
	"github.com/raphaelgruber/agriassist/internal/service"
)

// maxAudioBytes caps uploaded audio (Whisper endpoints reject larger files).
const maxAudioBytes = 25 << 20

// Runtime is the subset of service.Runtime the server needs.
type Runtime interface {
	NewSession(id string) *assistant.Session
	Sessions() *assistant.Manager
	Metrics() *metrics.Collector
	Info() service.IndexInfo
	CanTranscribe() bool
}

// Server wraps the HTTP handlers with dependencies and lifecycle management.
type Server struct {
	rt       Runtime
	version  string
	logger   *slog.Logger
	upgrader websocket.Upgrader
	handler  http.Handler

	// pongWait and pingPeriod bound chat connection liveness.
	pongWait   time.Duration
	pingPeriod time.Duration
}

// New creates a server for the given runtime.
func New(rt Runtime, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		rt:         rt,
		version:    version,
		logger:     logger,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/ask", s.handleAsk)
	mux.HandleFunc("POST /sessions/{id}/ask-audio", s.handleAskAudio)
	mux.HandleFunc("POST /sessions/{id}/clear", s.handleClear)
	mux.HandleFunc("GET /sessions/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /sessions/{id}/export", s.handleExport)
	mux.HandleFunc("GET /ws", s.handleChat)

	s.handler = LoggingMiddleware(logger)(mux)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,  // audio uploads
		WriteTimeout: 120 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
