package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/transport/http/middleware"
)

// AccountManager covers the self-service account operations.
type AccountManager interface {
	ListHistory(ctx context.Context, userID string, limit int, searchAfter string) (domain.AuthHistoryPage, error)
	UpdateAuthData(ctx context.Context, userID string, update domain.AuthDataUpdate) error
}

// AccountHandler exposes login history and credential updates for the authenticated principal.
type AccountHandler struct {
	accounts AccountManager
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(accounts AccountManager) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// History godoc
// @Summary List login history
// @Description Returns successful logins newest first. Pass search_after from the previous page to continue.
// @Tags Account
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param limit query int false "Page size"
// @Param search_after query string false "Cursor from the previous page"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/account/history [get]
func (h *AccountHandler) History(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be an integer"))
			return
		}
		limit = parsed
	}

	page, err := h.accounts.ListHistory(c.Request.Context(), userID, limit, c.Query("search_after"))
	if err != nil {
		respondError(c, err, "failed to load history")
		return
	}

	c.JSON(http.StatusOK, newHistoryResponse(page))
}

// UpdateAuthData godoc
// @Summary Change login or password
// @Description Updates the login and/or password of the authenticated principal.
// @Tags Account
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body AuthDataUpdateRequest true "Credential update"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/account/auth-data [patch]
func (h *AccountHandler) UpdateAuthData(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req AuthDataUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid auth data payload"))
		return
	}

	err := h.accounts.UpdateAuthData(c.Request.Context(), userID, domain.AuthDataUpdate{
		Login:    req.Login,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err, "failed to update auth data",
			ErrorCase{Err: domain.ErrConflict, Status: http.StatusConflict, Message: "login already taken"})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "auth data updated"})
}
