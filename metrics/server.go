package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the /metrics endpoint over HTTP. Workers that already run
// an HTTP server can mount promhttp.Handler themselves and skip this.
type Server struct {
	server *http.Server
	errc   chan error
}

// NewServer creates a metrics server listening on addr, e.g. ":9090".
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		errc: make(chan error, 1),
	}
}

// Start begins serving in a goroutine and returns immediately. Bind
// failures surface through Err.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.errc <- err
		}
	}()
}

// Err reports a serve error if one has occurred, without blocking.
func (s *Server) Err() error {
	select {
	case err := <-s.errc:
		return err
	default:
		return nil
	}
}

// Shutdown stops the server, waiting for in-flight scrapes up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
