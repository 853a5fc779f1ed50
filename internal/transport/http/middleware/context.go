package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// UserIDKey is the context key for authenticated user ID
	UserIDKey = "user_id"

	accessTokenKey    = "access_token"
	refreshTokenKey   = "refresh_token"
	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext assigns a trace ID to each request. The active span's trace ID wins over the
// X-Trace-ID header, which in turn wins over a freshly generated identifier.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = c.GetHeader(TraceIDHeader)
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

// GetRequestContext retrieves the full request context
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}

// GetAuthenticatedUserID returns the principal set by RequireAuth or RequireRefresh.
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}

// GetAccessToken returns the validated access token stored by RequireAuth.
func GetAccessToken(c *gin.Context) (*domain.AccessToken, bool) {
	value, exists := c.Get(accessTokenKey)
	if !exists {
		return nil, false
	}
	token, ok := value.(*domain.AccessToken)
	return token, ok && token != nil
}

// GetRefreshToken returns the validated refresh token stored by RequireRefresh.
func GetRefreshToken(c *gin.Context) (*domain.RefreshToken, bool) {
	value, exists := c.Get(refreshTokenKey)
	if !exists {
		return nil, false
	}
	token, ok := value.(*domain.RefreshToken)
	return token, ok && token != nil
}

func setPrincipal(c *gin.Context, userID string) {
	c.Set(UserIDKey, userID)
	if reqCtx := GetRequestContext(c); reqCtx != nil {
		reqCtx.UserID = userID
	}
}
