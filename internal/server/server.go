package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultShutdownTimeout = 5 * time.Second

// New creates a status server. A nil registry gets a fresh one.
func New(config Config) *Server {
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Server{
		config:  config,
		metrics: newHTTPMetrics(config.Registry),
	}
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetupRoutes registers the endpoints on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	metrics := promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{})
	mux.HandleFunc("/health", s.instrument("/health", getOnly(s.healthHandler)))
	mux.HandleFunc("/status", s.instrument("/status", getOnly(s.statusHandler)))
	mux.HandleFunc("/metrics", s.instrument("/metrics", getOnly(metrics.ServeHTTP)))
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Serve listens on the configured address until ctx is done, then shuts
// down gracefully. It returns once the server has stopped.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting status server", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	slog.Info("Status server stopped")
	return <-errCh
}
