package grpcserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"cgu-connect/internal/observability"
)

// ServiceName is the health service name reported for the messaging API.
const ServiceName = "cgu.connect.Messaging"

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server exposes grpc.health.v1.Health backed by a store ping.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	store  Pinger
}

// New builds the gRPC server with tracing and metrics instrumentation.
func New(store Pinger) *Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{grpc: srv, health: hs, store: store}
}

// Check pings the store once and updates the serving status.
func (s *Server) Check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.store.PingContext(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("store ping failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Watch runs Check every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
