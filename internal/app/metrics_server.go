package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sufield/certkeeper/internal/core/services"
)

// MetricsServer exposes /metrics and a small /healthz for the process.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	address  string
	logger   *slog.Logger
}

// NewMetricsServer creates the HTTP server. It does not listen until Start.
func NewMetricsServer(address string, registry *prometheus.Registry, store *services.CertificateStore, logger *slog.Logger) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       "ok",
			"certificates": store.Names(),
		})
	})

	return &MetricsServer{
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		address: address,
		logger:  logger,
	}
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly; later serve errors arrive on the channel.
func (s *MetricsServer) Start() (<-chan error, error) {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = listener

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Metrics endpoint listening", "address", listener.Addr().String())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the bound address once Start has succeeded.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight scrapes.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
