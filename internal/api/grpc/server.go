// Package grpcapi serves gRPC health checks and reflection for
// orchestrator probes and debugging tools like grpcurl.
package grpcapi

import (
	"context"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ai-care-assistant-service/internal/observability"
	"ai-care-assistant-service/internal/observability/logging"
)

// ServiceName is the health-checked service name.
const ServiceName = "ai.care.assistant.CareAssistantService"

// Server wraps a gRPC server with health and reflection registered.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    zerolog.Logger
}

// New creates the server. It reports NOT_SERVING until SetServing(true).
func New() *Server {
	g := grpc.NewServer(grpc.UnaryInterceptor(observability.UnaryServerInterceptor()))

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	reflection.Register(g)

	s := &Server{grpc: g, health: hs, log: logging.WithComponent("grpc")}
	s.SetServing(false)
	return s
}

// SetServing flips the overall and per-service health status.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("Starting gRPC health server")
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls, forcing a stop once ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.SetServing(false)
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful stop timed out, forcing")
		s.grpc.Stop()
	}
}
