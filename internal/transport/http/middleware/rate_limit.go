package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/usecase"
)

const (
	rateLimitProblemType    = "https://auth.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle   = "Rate Limit Exceeded"
	limiterDownProblemType  = "https://auth.example.com/errors/rate-limiter-unavailable"
	limiterDownProblemTitle = "Rate Limiter Unavailable"
)

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RateLimiter adapts the admission controller to gin routes.
type RateLimiter struct {
	admitter port.Admitter
	logger   *zap.Logger
	now      func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(admitter port.Admitter, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{admitter: admitter, logger: logger, now: time.Now}
}

// WithClock allows injection of a custom clock for the X-RateLimit-Reset header.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// RateLimit admits the request under the key scope:operation[:user_id]. The user id is taken from
// a preceding RequireAuth or RequireRefresh; unauthenticated routes share one key per endpoint.
func (rl *RateLimiter) RateLimit(scope, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.admitter == nil {
			c.Next()
			return
		}

		identity, _ := GetAuthenticatedUserID(c)
		key := usecase.AdmissionKey(scope, operation, identity)

		decision, err := rl.admitter.Admit(c.Request.Context(), key)
		rl.applyHeaders(c, decision)

		if err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				// Fail closed: the caller sees a rate limit, the problem type names the cause.
				rl.logger.Debug("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				rl.respond(c, http.StatusTooManyRequests, limiterDownProblemType, limiterDownProblemTitle,
					"Request admission is temporarily unavailable.", decision.RetryAfter)
				return
			}
			if errors.Is(err, domain.ErrRateLimited) {
				seconds := retrySeconds(decision.RetryAfter)
				rl.respond(c, http.StatusTooManyRequests, rateLimitProblemType, rateLimitProblemTitle,
					fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds), decision.RetryAfter)
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "rate limit check failed"))
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, decision domain.AdmissionDecision) {
	headers := c.Writer.Header()
	if decision.Limit > 0 {
		headers.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(decision.ResetAfter).Unix(), 10))
	}
	if !decision.Allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(decision.RetryAfter)))
	}
}

func (rl *RateLimiter) respond(c *gin.Context, status int, problemType, title, detail string, retryAfter time.Duration) {
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(status, ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		RetryAfter: retrySeconds(retryAfter),
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
