package metrics

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the Prometheus registry on its own listener, separate from
// the API port.
type Server struct {
	srv *http.Server
}

// NewServer starts the metrics listener on addr (e.g. ":9090") and serves
// /metrics in the background.
func NewServer(addr string) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}
	log.Println("Starting metrics server at", srv.Addr)
	go srv.Serve(ln)

	return &Server{srv: srv}, nil
}

// Shutdown stops the metrics listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
