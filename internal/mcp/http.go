package mcp

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rcourtman/unraid-mcp/internal/logging"
)

const (
	maxRequestBodyBytes = 1 << 20
	shutdownTimeout     = 10 * time.Second
)

// Handler returns the HTTP handler serving the MCP endpoint at /mcp plus a
// liveness probe at /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleHTTP)
	mux.HandleFunc("/mcp/", s.handleHTTP)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		s.writeHTTP(w, mustMarshal(errorResponse(nil, ErrParse, "Failed to read request body")))
		return
	}
	if len(body) > maxRequestBodyBytes {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ctx, _ := logging.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
	response := s.HandleMessage(ctx, body)
	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeHTTP(w, response)
}

func (s *Server) writeHTTP(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write MCP response")
	}
}

// ListenAndServe serves the HTTP transport on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves the HTTP transport on an existing listener until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting MCP HTTP server")
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("MCP HTTP server shutdown did not complete cleanly")
		return err
	}
	s.logger.Info().Msg("MCP HTTP server stopped")
	return nil
}
