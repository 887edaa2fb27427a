// Package pprof runs a loopback-only profiling endpoint next to the chat server.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/rs/zerolog"
)

// Server wraps the net/http/pprof handlers for runtime profiling.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	log      zerolog.Logger
}

// NewServer creates a new pprof Server.
func NewServer(log zerolog.Logger) *Server {
	return &Server{log: log.With().Str("component", "pprof").Logger()}
}

// Handler returns a mux with only the pprof handlers registered, so nothing
// on http.DefaultServeMux is exposed.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Start binds the server to 127.0.0.1 on port (0 picks a free port) and
// returns the port it listens on.
func (s *Server) Start(port int) (int, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("bind to %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.server = &http.Server{Handler: Handler()}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("pprof server stopped")
		}
	}()

	s.log.Info().Str("url", s.URL()).Msg("pprof listening")
	return s.port, nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// URL returns the base pprof URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/debug/pprof/", s.port)
}

// Stop gracefully shuts down the pprof server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
