package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// With an empty Message the error text itself is returned, which suits validation failures.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// commonErrorCases apply after the handler specific ones.
var commonErrorCases = []ErrorCase{
	{Err: domain.ErrInvalidInput, Status: http.StatusBadRequest},
	{Err: domain.ErrMissingEntity, Status: http.StatusNotFound, Message: "not found"},
	{Err: domain.ErrConflict, Status: http.StatusConflict, Message: "already exists"},
	{Err: domain.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: domain.ErrFreshTokenRequired, Status: http.StatusUnauthorized, Message: "fresh token required"},
	{Err: domain.ErrTokenExpired, Status: http.StatusUnauthorized, Message: "token expired"},
	{Err: domain.ErrMalformedToken, Status: http.StatusUnauthorized, Message: "invalid token"},
	{Err: domain.ErrAuthenticationFailure, Status: http.StatusUnauthorized, Message: "authentication failed"},
	{Err: domain.ErrRevocationStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "session store temporarily unavailable"},
	{Err: domain.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "store temporarily unavailable"},
	{Err: domain.ErrRateLimited, Status: http.StatusTooManyRequests, Message: "rate limit exceeded"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			message := cs.Message
			if message == "" {
				message = err.Error()
			}
			if cs.Status >= http.StatusInternalServerError {
				_ = c.Error(err)
			}
			c.JSON(cs.Status, NewErrorResponse(c, message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// respondError maps err against the handler specific cases first and the common domain cases second.
func respondError(c *gin.Context, err error, fallbackMessage string, cases ...ErrorCase) {
	all := make([]ErrorCase, 0, len(cases)+len(commonErrorCases))
	all = append(all, cases...)
	all = append(all, commonErrorCases...)
	RespondWithMappedError(c, err, all, http.StatusInternalServerError, fallbackMessage)
}
