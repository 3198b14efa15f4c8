// Package server hosts the gRPC side of the listener: the standard health
// service, driven by the orchestrator's health check, plus reflection.
package server

import (
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"harvest-engine/internal/config"
	"harvest-engine/internal/grpc/interceptors"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/logging/types"
)

// ServiceName is the health service name clients can check besides ""
const ServiceName = "harvest.v1.Engine"

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	source     HealthSource
	metrics    *interceptors.MetricsCollector
	interval   time.Duration
	shutdown   time.Duration
	logger     types.Logger

	stop chan struct{}
	done chan struct{}
}

// NewServer builds the gRPC server; nothing listens until Start
func NewServer(cfg *config.Config, source HealthSource) *Server {
	metrics := interceptors.NewMetricsCollector()

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryInterceptor(),
			interceptors.LoggingInterceptor(),
			interceptors.MetricsInterceptor(metrics),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecoveryInterceptor(),
			interceptors.StreamLoggingInterceptor(),
			interceptors.StreamMetricsInterceptor(metrics),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	s := &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		source:     source,
		metrics:    metrics,
		interval:   10 * time.Second,
		shutdown:   cfg.Server.ShutdownTimeout,
		logger:     logging.Component("grpc_server"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.refresh()
	return s
}

// Start serves on lis until Stop; it also keeps the health status in sync
func (s *Server) Start(lis net.Listener) error {
	go s.watchHealth()
	s.logger.Info("Starting gRPC server", map[string]interface{}{"address": lis.Addr().String()})
	return s.grpcServer.Serve(lis)
}

// Stop flips every service to NOT_SERVING and drains in-flight calls,
// forcing the close after the shutdown timeout
func (s *Server) Stop() {
	select {
	case <-s.stop:
		return
	default:
		close(s.stop)
	}
	s.health.Shutdown()

	drained := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(drained)
	}()

	timeout := s.shutdown
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-drained:
	case <-time.After(timeout):
		s.logger.Warn("gRPC graceful stop timed out, forcing", nil)
		s.grpcServer.Stop()
	}
	s.logger.Info("gRPC server stopped", nil)
}

// Metrics exposes per-method call counters
func (s *Server) Metrics() *interceptors.MetricsCollector {
	return s.metrics
}

func (s *Server) watchHealth() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}
