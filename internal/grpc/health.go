package grpc

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messenger-service/internal/observability"
)

// ServiceName is the health service name reported for the messenger.
const ServiceName = "messenger.v1.Messenger"

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// HealthServer exposes the standard gRPC health protocol. Status follows the
// result of the registered checker.
type HealthServer struct {
	server   *grpclib.Server
	health   *health.Server
	checker  Checker
	interval time.Duration
	logger   *zap.Logger
}

// NewHealthServer builds the gRPC server with metrics and tracing attached.
func NewHealthServer(checker Checker, interval time.Duration, logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	srv := grpclib.NewServer(
		grpclib.StatsHandler(otelgrpc.NewServerHandler()),
		grpclib.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		server:   srv,
		health:   hs,
		checker:  checker,
		interval: interval,
		logger:   logger.Named("grpc"),
	}
}

// Serve blocks until ctx is done or the listener fails.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.check(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(lis)
	}()
	s.logger.Info("grpc health server listening", zap.String("addr", lis.Addr().String()))

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *HealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *HealthServer) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.checker != nil {
		checkCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.checker(checkCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("health check failed", zap.Error(err))
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
