package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// TokenValidator checks presented credentials, including revocation state.
type TokenValidator interface {
	ValidateAccess(ctx context.Context, token string) (*domain.AccessToken, error)
	ValidateRefresh(ctx context.Context, token string) (*domain.RefreshToken, error)
}

// RequireAuth validates the bearer access token and stores its claims on the context.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			return
		}

		token, err := validator.ValidateAccess(c.Request.Context(), raw)
		if err != nil {
			abortTokenError(c, err, "access")
			return
		}

		c.Set(accessTokenKey, token)
		setPrincipal(c, token.Subject.UserID)
		c.Next()
	}
}

// OptionalAuth lets anonymous requests through. A presented access token must be valid and fresh,
// in which case its claims are stored like RequireAuth does.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}

		raw, ok := bearerToken(c)
		if !ok {
			return
		}

		token, err := validator.ValidateAccess(c.Request.Context(), raw)
		if err != nil {
			abortTokenError(c, err, "access")
			return
		}
		if !token.Fresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "fresh token required"))
			return
		}

		c.Set(accessTokenKey, token)
		setPrincipal(c, token.Subject.UserID)
		c.Next()
	}
}

// RequireRefresh validates the bearer refresh token and stores its claims on the context.
func RequireRefresh(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			return
		}

		token, err := validator.ValidateRefresh(c.Request.Context(), raw)
		if err != nil {
			abortTokenError(c, err, "refresh")
			return
		}

		c.Set(refreshTokenKey, token)
		setPrincipal(c, token.Subject.UserID)
		c.Next()
	}
}

// RequireFresh rejects access tokens that were minted by a refresh rather than a credential login.
// It must run after RequireAuth.
func RequireFresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := GetAccessToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			return
		}
		if !token.Fresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "fresh token required"))
			return
		}
		c.Next()
	}
}

// RequireRole checks that the access token carries any of the specified roles. It must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := GetAccessToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			return
		}

		for _, role := range roles {
			if domain.HasRole(token.Subject.UserRoles, role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "insufficient permissions"))
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "missing authorization header"))
		return "", false
	}

	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "missing bearer token"))
		return "", false
	}
	return token, true
}

func abortTokenError(c *gin.Context, err error, class string) {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, class+" token expired"))
	case errors.Is(err, domain.ErrTokenRevoked):
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, class+" token revoked"))
	case errors.Is(err, domain.ErrMalformedToken):
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "invalid "+class+" token"))
	case errors.Is(err, domain.ErrRevocationStoreUnavailable):
		c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "token validation temporarily unavailable"))
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "authentication failed"))
	}
}
