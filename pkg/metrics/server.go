package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/csudata/clup-agent/pkg/logging"
)

// Server serves /metrics on a loopback-only listener, kept separate
// from the RPC port so nothing outside this host can scrape it.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewServer binds addr (expected to be a loopback address, e.g.
// "127.0.0.1:9187") without starting to accept yet.
func NewServer(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		httpServer: &http.Server{Handler: mux},
		listener:   ln,
	}, nil
}

// Serve blocks, accepting requests until Close is called.
func (s *Server) Serve() error {
	logging.WithComponent("metrics").Info().Str("addr", s.listener.Addr().String()).Msg("metrics server listening")
	err := s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the HTTP server down within 5 seconds.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
