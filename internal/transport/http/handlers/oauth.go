package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// OAuthFlow drives the authorization code flow with external providers.
type OAuthFlow interface {
	Providers() []string
	AuthorizeURL(ctx context.Context, provider string) (string, error)
	Complete(ctx context.Context, provider, code, state, userAgent string) (domain.TokenPair, error)
}

var oauthErrorCases = []ErrorCase{
	{Err: domain.ErrUnsupportedProvider, Status: http.StatusNotFound, Message: "unknown oauth provider"},
	{Err: domain.ErrInvalidOAuthState, Status: http.StatusUnauthorized, Message: "invalid or expired oauth state"},
}

// OAuthHandler exposes the provider login redirect and callback.
type OAuthHandler struct {
	flow OAuthFlow
}

// NewOAuthHandler constructs OAuthHandler.
func NewOAuthHandler(flow OAuthFlow) *OAuthHandler {
	return &OAuthHandler{flow: flow}
}

// Providers godoc
// @Summary List enabled OAuth providers
// @Tags OAuth
// @Produce json
// @Success 200 {object} OAuthProvidersResponse
// @Router /api/v1/oauth/providers [get]
func (h *OAuthHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, OAuthProvidersResponse{Providers: h.flow.Providers()})
}

// Login godoc
// @Summary Start an OAuth login
// @Description Redirects to the provider's consent page with a one-time state.
// @Tags OAuth
// @Param provider path string true "Provider name (yandex, vk)"
// @Success 302
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/oauth/{provider}/login [get]
func (h *OAuthHandler) Login(c *gin.Context) {
	target, err := h.flow.AuthorizeURL(c.Request.Context(), c.Param("provider"))
	if err != nil {
		respondError(c, err, "failed to start oauth login", oauthErrorCases...)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// Callback godoc
// @Summary Complete an OAuth login
// @Description Exchanges the authorization code and issues a token pair.
// @Tags OAuth
// @Produce json
// @Param provider path string true "Provider name (yandex, vk)"
// @Param code query string true "Authorization code"
// @Param state query string true "State issued by the login redirect"
// @Success 200 {object} TokenPairResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/v1/oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "provider denied access: "+reason))
		return
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "code and state are required"))
		return
	}

	pair, err := h.flow.Complete(c.Request.Context(), c.Param("provider"), code, state, c.Request.UserAgent())
	if err != nil {
		RespondWithMappedError(c, err, append(oauthErrorCases, commonErrorCases...),
			http.StatusBadGateway, "oauth provider exchange failed")
		return
	}
	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}
