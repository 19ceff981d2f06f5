// internal/core/server/metrics.go
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/solatis/quill/internal/metrics"
	"github.com/solatis/quill/internal/pkg/logger"
)

// MetricsServer exposes Prometheus metrics over HTTP at /metrics.
type MetricsServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewMetricsServer serves the collectors of g on addr.
func NewMetricsServer(addr string, g prometheus.Gatherer, log *logger.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if log == nil {
		log = logger.Nop()
	}
	return &MetricsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.WithComponent("metrics-server"),
	}
}

// Handler returns the HTTP handler, for tests.
func (m *MetricsServer) Handler() http.Handler {
	return m.server.Handler
}

// Start binds the configured address and serves until shut down.
func (m *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return err
	}
	m.log.Info("metrics server listening", "addr", ln.Addr().String())
	if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
