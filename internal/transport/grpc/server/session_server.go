package server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/arklim/auth-session-service/internal/transport/grpc/interceptors"
)

const (
	// SessionServiceName is the fully qualified gRPC service name.
	SessionServiceName = "auth.v1.SessionService"
	// CheckAccessMethod is the full method name of SessionService/CheckAccess.
	CheckAccessMethod = "/" + SessionServiceName + "/CheckAccess"
)

// SessionServiceServer is the server API for auth.v1.SessionService.
type SessionServiceServer interface {
	CheckAccess(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// SessionServiceDesc describes auth.v1.SessionService. The messages are well-known protobuf types,
// so no generated stubs are needed.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAccess", Handler: checkAccessHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "auth/v1/session.proto",
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func checkAccessHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).CheckAccess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckAccessMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).CheckAccess(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// SessionServer answers token checks for other services. The bearer token is validated by the
// auth interceptor through the same path the HTTP API uses, including revocation.
type SessionServer struct {
	logger *zap.Logger
}

// NewSessionServer constructs a SessionServer instance.
func NewSessionServer(logger *zap.Logger) *SessionServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionServer{logger: logger}
}

// CheckAccess returns the identity carried by the caller's access token.
func (s *SessionServer) CheckAccess(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	token, ok := interceptors.AccessTokenFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authorization token required")
	}

	roles := make([]interface{}, 0, len(token.Subject.UserRoles))
	for _, role := range token.Subject.UserRoles {
		roles = append(roles, role)
	}

	fields := map[string]interface{}{
		"user_id":    token.Subject.UserID,
		"email":      token.Subject.Email,
		"roles":      roles,
		"jti":        token.JTI,
		"fresh":      token.Fresh,
		"user_agent": token.Subject.UserAgent,
		"expires_at": nil,
	}
	if token.ExpiresAt != nil {
		fields["expires_at"] = token.ExpiresAt.UTC().Format(time.RFC3339)
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.Error("failed to encode access check response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}
