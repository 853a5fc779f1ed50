package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/transport/http/middleware"
)

// SessionService is the subset of the session manager used by the auth endpoints.
type SessionService interface {
	Login(ctx context.Context, login, password, userAgent string) (domain.TokenPair, error)
	Refresh(ctx context.Context, refresh *domain.RefreshToken) (string, error)
	Logout(ctx context.Context, access *domain.AccessToken) error
	LogoutDevices(ctx context.Context, userID string, userAgents []string) (int, error)
}

// Registrar creates new principals.
type Registrar interface {
	SignUp(ctx context.Context, input domain.NewUser) (domain.User, error)
}

// loginErrorCases hide whether the login or the password was wrong.
var loginErrorCases = []ErrorCase{
	{Err: domain.ErrMissingEntity, Status: http.StatusUnauthorized, Message: "invalid login or password"},
	{Err: domain.ErrAuthenticationFailure, Status: http.StatusUnauthorized, Message: "invalid login or password"},
}

// AuthHandler exposes sign-up, login and session endpoints.
type AuthHandler struct {
	sessions  SessionService
	registrar Registrar
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(sessions SessionService, registrar Registrar) *AuthHandler {
	return &AuthHandler{sessions: sessions, registrar: registrar}
}

// SignUp godoc
// @Summary Register a new account
// @Description Creates a principal with the default role. Weak passwords are rejected.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Sign-up request"
// @Success 201 {object} UserResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid sign-up payload"))
		return
	}

	user, err := h.registrar.SignUp(c.Request.Context(), domain.NewUser{
		Login:     req.Login,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err, "failed to sign up",
			ErrorCase{Err: domain.ErrConflict, Status: http.StatusConflict, Message: "login or email already taken"})
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(user))
}

// Login godoc
// @Summary Log in with login and password
// @Description Issues an access and refresh token pair bound to the caller's user agent.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} TokenPairResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	pair, err := h.sessions.Login(c.Request.Context(), req.Login, req.Password, c.Request.UserAgent())
	if err != nil {
		respondError(c, err, "failed to log in", loginErrorCases...)
		return
	}

	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

// Refresh godoc
// @Summary Issue a new access token
// @Description Mints an access token with the principal's current roles. The refresh token is not rotated.
// @Tags Auth
// @Produce json
// @Param Authorization header string true "Bearer refresh token"
// @Success 200 {object} AccessTokenResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, ok := middleware.GetRefreshToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "refresh token required"))
		return
	}

	access, err := h.sessions.Refresh(c.Request.Context(), refresh)
	if err != nil {
		respondError(c, err, "failed to refresh session",
			ErrorCase{Err: domain.ErrMissingEntity, Status: http.StatusUnauthorized, Message: "session no longer exists"})
		return
	}

	c.JSON(http.StatusOK, AccessTokenResponse{AccessToken: access, TokenType: tokenTypeBearer})
}

// Logout godoc
// @Summary Log out the current device
// @Description Revokes the access token and the refresh session it was issued with.
// @Tags Auth
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	access, ok := middleware.GetAccessToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), access); err != nil {
		respondError(c, err, "failed to log out")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutDevices godoc
// @Summary Log out selected devices
// @Description Revokes refresh sessions for the listed user agents, or all of them with ["all"].
// @Tags Auth
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer access token"
// @Param request body LogoutDevicesRequest true "Devices to log out"
// @Success 200 {object} LogoutDevicesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/logout-devices [post]
func (h *AuthHandler) LogoutDevices(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LogoutDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_agents must list at least one device"))
		return
	}

	revoked, err := h.sessions.LogoutDevices(c.Request.Context(), userID, req.UserAgents)
	if err != nil {
		respondError(c, err, "failed to log out devices")
		return
	}

	c.JSON(http.StatusOK, LogoutDevicesResponse{Revoked: revoked})
}
