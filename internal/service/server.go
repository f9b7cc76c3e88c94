package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer leaves WriteTimeout unset: ingestion requests block for the whole pipeline run.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
	return &Server{httpServer: s, logger: logger}
}

// Start blocks until the server fails or Stop is called; a clean Stop returns nil.
func (s *Server) Start() error {
	s.logger.Info("Starting cortex-admin HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop waits for in-flight requests, including running pipelines, until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping cortex-admin HTTP server")
	return s.httpServer.Shutdown(ctx)
}
