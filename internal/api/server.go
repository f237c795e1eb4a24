// Package api exposes the recommendation service over HTTP. Routes use
// the net/http method-aware patterns; node ids may contain slashes
// (repo:owner/name) so path parameters use trailing wildcards.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/devintel/devgraph/internal/ingest"
	"github.com/devintel/devgraph/internal/recommend"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second

	// ingestTimeout bounds a single fetch/enrich request end to end,
	// covering the external API calls it fans out to.
	ingestTimeout = 2 * time.Minute
)

// Server routes HTTP requests to the recommendation pipeline.
type Server struct {
	recommender *recommend.Service
	enricher    *ingest.Enricher
	logger      *slog.Logger
	httpServer  *http.Server
}

// NewServer wires routes and middleware. enricher may be nil, which
// disables the ingestion endpoints with 503.
func NewServer(addr string, recommender *recommend.Service, enricher *ingest.Enricher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		recommender: recommender,
		enricher:    enricher,
		logger:      logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /recommend/{node...}", s.handleRecommend)
	mux.HandleFunc("GET /metrics/{node...}", s.handleMetrics)
	mux.HandleFunc("GET /predict/{user...}", s.handlePredict)
	mux.HandleFunc("POST /fetch", s.handleFetch)
	mux.HandleFunc("GET /enrich/{username}", s.handleEnrich)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withRequestID(s.withLogging(mux)),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the context is cancelled, then shuts the
// server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}
