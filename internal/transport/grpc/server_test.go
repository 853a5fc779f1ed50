package transportgrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/arklim/auth-session-service/internal/core/domain"
	grpcinterceptors "github.com/arklim/auth-session-service/internal/transport/grpc/interceptors"
	"github.com/arklim/auth-session-service/internal/transport/grpc/server"
)

type tokenTable map[string]*domain.AccessToken

func (t tokenTable) ValidateAccess(_ context.Context, token string) (*domain.AccessToken, error) {
	if access, ok := t[token]; ok {
		return access, nil
	}
	return nil, domain.ErrTokenRevoked
}

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	metrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	srv, err := NewServer(ServerDependencies{
		Validator: tokenTable{
			"good": {JTI: "j1", Fresh: true, ExpiresAt: &expires, Subject: domain.AccessSubject{UserID: "u1", UserRoles: []string{"user", "admin"}}},
		},
		Metrics: metrics,
		Logger:  zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	listener := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func checkAccess(ctx context.Context, conn *grpc.ClientConn, token string) (*structpb.Struct, error) {
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	out := new(structpb.Struct)
	err := conn.Invoke(ctx, server.CheckAccessMethod, &emptypb.Empty{}, out)
	return out, err
}

func TestCheckAccessReturnsIdentity(t *testing.T) {
	conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := checkAccess(ctx, conn, "good")
	if err != nil {
		t.Fatalf("check access: %v", err)
	}

	fields := out.GetFields()
	if fields["user_id"].GetStringValue() != "u1" || fields["jti"].GetStringValue() != "j1" {
		t.Fatalf("unexpected identity: %v", out)
	}
	if !fields["fresh"].GetBoolValue() {
		t.Fatalf("expected fresh token")
	}
	if got := len(fields["roles"].GetListValue().GetValues()); got != 2 {
		t.Fatalf("expected 2 roles, got %d", got)
	}
	if fields["expires_at"].GetStringValue() != "2030-01-01T00:00:00Z" {
		t.Fatalf("unexpected expiry: %v", fields["expires_at"])
	}
}

func TestCheckAccessRejectsRevokedAndMissingTokens(t *testing.T) {
	conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := checkAccess(ctx, conn, ""); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("missing token: expected unauthenticated, got %v", err)
	}
	if _, err := checkAccess(ctx, conn, "revoked"); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("revoked token: expected unauthenticated, got %v", err)
	}
}

func TestHealthIsPublic(t *testing.T) {
	conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: server.SessionServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}
}

func TestNewServerRequiresValidator(t *testing.T) {
	if _, err := NewServer(ServerDependencies{}); err == nil {
		t.Fatalf("expected error without validator")
	}
}
