// Package server provides gRPC server lifecycle management.
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
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/caseflow/internal/core/api"
	"github.com/solatis/caseflow/internal/core/auth"
	"github.com/solatis/caseflow/internal/core/config"
)

// shutdownTimeout bounds graceful stop before connections are forced closed.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle and the metrics endpoint.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	metrics  *http.Server
	listener net.Listener
	config   *config.ServerConfig
	logger   *slog.Logger
}

// NewGRPCServer creates gRPC server with auth interceptor and service registration.
// gatherer backs the /metrics endpoint; nil disables it.
func NewGRPCServer(cfg *config.ServerConfig, service api.FormRulesServer, authenticator *auth.Authenticator, gatherer prometheus.Gatherer, logger *slog.Logger) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			authenticator.UnaryInterceptor(
				"/grpc.health.v1.Health/Check",
				"/grpc.health.v1.Health/List",
			),
		),
		grpc.MaxConcurrentStreams(uint32(cfg.MaxConnections)),
	}

	server := grpc.NewServer(opts...)
	api.RegisterFormRulesServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s := &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}

	if gatherer != nil && cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		s.metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return s, nil
}

// Start binds listener and serves gRPC requests.
// Serve blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC on an existing listener, plus metrics if configured.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener

	if s.metrics != nil {
		go func() {
			s.logger.Info("metrics endpoint listening", "addr", s.metrics.Addr)
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	return s.server.Serve(listener)
}

// Shutdown gracefully stops server with 30-second timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	// Load balancers stop routing before connections drain
	s.health.Shutdown()

	if s.metrics != nil {
		metricsCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(metricsCtx); err != nil {
			s.logger.Warn("metrics endpoint shutdown", "error", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
