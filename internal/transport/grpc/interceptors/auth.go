package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

const (
	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// AccessValidator checks an access token, including its revocation state.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (*domain.AccessToken, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor validates incoming requests using bearer access tokens.
type AuthInterceptor struct {
	validator AccessValidator
	logger    *zap.Logger
	allow     map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(validator AccessValidator, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{validator: validator, logger: logger, allow: allow}
}

// UnaryServerInterceptor returns a gRPC unary interceptor that enforces token authentication.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if ai == nil || ai.validator == nil {
			return handler(ctx, req)
		}

		if _, ok := ai.allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		raw, err := tokenFromMetadata(ctx)
		if err != nil {
			ai.logger.Warn("gRPC authentication failed", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		token, err := ai.validator.ValidateAccess(ctx, raw)
		if err != nil {
			ai.logger.Warn("gRPC token validation failed", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, statusFromTokenError(err)
		}

		return handler(WithAccessToken(ctx, token), req)
	}
}

func statusFromTokenError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "access token expired")
	case errors.Is(err, domain.ErrTokenRevoked):
		return status.Error(codes.Unauthenticated, "access token revoked")
	case errors.Is(err, domain.ErrMalformedToken):
		return status.Error(codes.Unauthenticated, "invalid access token")
	case errors.Is(err, domain.ErrRevocationStoreUnavailable):
		return status.Error(codes.Unauthenticated, "token validation temporarily unavailable")
	default:
		return status.Error(codes.Internal, "failed to validate access token")
	}
}

// accessTokenContextKey stores the validated token within the request context.
type accessTokenContextKey struct{}

// WithAccessToken returns a derived context containing the validated access token.
func WithAccessToken(ctx context.Context, token *domain.AccessToken) context.Context {
	if token == nil {
		return ctx
	}
	return context.WithValue(ctx, accessTokenContextKey{}, token)
}

// AccessTokenFromContext extracts the validated access token from context when available.
func AccessTokenFromContext(ctx context.Context) (*domain.AccessToken, bool) {
	if ctx == nil {
		return nil, false
	}
	token, ok := ctx.Value(accessTokenContextKey{}).(*domain.AccessToken)
	return token, ok && token != nil
}

func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}

	// metadata keys are lower-cased on the wire
	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errors.New("authorization token required")
	}

	value := strings.TrimSpace(values[0])
	if len(value) < len(bearerPrefix) || !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}

	return token, nil
}
