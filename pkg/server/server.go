package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ccg-hq/gateway/pkg/server/middleware"
	"ccg-hq/gateway/pkg/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Options carries the handlers the server mounts.
type Options struct {
	// Addr is the listen address, host:port.
	Addr string

	// Proxy handles every request not claimed by another route.
	Proxy http.Handler

	// Admin handles the operator API under /api/.
	Admin http.Handler

	// Metrics handles GET /metrics. Optional.
	Metrics http.Handler

	// Recorder receives lifecycle events. Optional.
	Recorder *telemetry.Recorder
}

// Server is the gateway's HTTP server.
type Server struct {
	opts       Options
	httpServer *http.Server
	logger     *slog.Logger

	mu        sync.Mutex
	isRunning bool
}

// New creates the server. Call Start to begin serving.
func New(opts Options) *Server {
	return &Server{
		opts:   opts,
		logger: slog.Default().With("component", "server"),
	}
}

// Start binds the listen address and serves until ctx is cancelled or a
// SIGINT/SIGTERM arrives, then shuts down gracefully. The gateway_started
// event is emitted once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: streams stay open until the proxy's own
		// idle/total timeouts fire.
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}

	s.logger.Info("gateway listening", "address", s.opts.Addr)
	if s.opts.Recorder != nil {
		s.opts.Recorder.Event("info", "gateway_started",
			fmt.Sprintf("Gateway started on %s", s.opts.Addr), "", "")
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown stops the server, waiting up to shutdownTimeout for in-flight
// requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("gateway stopped")
	return nil
}

// Handler returns the assembled route tree, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// routes mounts the handlers and wraps them in the middleware chain.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	if s.opts.Admin != nil {
		mux.Handle("/api/", s.opts.Admin)
	}
	// Everything else is CLI traffic for the proxy.
	mux.Handle("/", s.opts.Proxy)

	var handler http.Handler = mux
	handler = middleware.CORS(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(handler)
	return handler
}
