package transportgrpc

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/auth-session-service/internal/transport/grpc/interceptors"
	"github.com/arklim/auth-session-service/internal/transport/grpc/server"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Validator     grpcinterceptors.AccessValidator
	Metrics       *grpcinterceptors.GRPCMetrics
	Tracing       grpcinterceptors.TracingOptions
	Logger        *zap.Logger
	PublicMethods []string // methods that don't require authentication
}

// Server bundles the gRPC server with its health service so the app can flip serving status.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer wires gRPC services with authentication enforced through interceptors.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Validator == nil {
		return nil, fmt.Errorf("access validator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append([]string{
		healthpb.Health_Check_FullMethodName,
		healthpb.Health_Watch_FullMethodName,
	}, deps.PublicMethods...)

	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Validator, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: public,
	})
	unaryInterceptors := []grpc.UnaryServerInterceptor{
		deps.Metrics.UnaryServerInterceptor(),
		authInterceptor.UnaryServerInterceptor(),
	}

	s := grpc.NewServer(
		grpcinterceptors.TracingServerOption(deps.Tracing),
		grpc.ChainUnaryInterceptor(unaryInterceptors...),
	)

	server.RegisterSessionServiceServer(s, server.NewSessionServer(logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(server.SessionServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	// Register reflection service for tools like grpcurl.
	reflection.Register(s)

	return &Server{Server: s, Health: healthServer}, nil
}

// Drain marks every service as not serving ahead of a graceful stop.
func (s *Server) Drain() {
	if s != nil && s.Health != nil {
		s.Health.Shutdown()
	}
}
