package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/config"
)

const (
	vkAuthURL    = "https://oauth.vk.com/authorize"
	vkTokenURL   = "https://oauth.vk.com/access_token"
	vkAPIVersion = "5.131"
)

// NewVK builds the VK provider. VK returns user_id and email inside the token response itself,
// so no user info request is made.
func NewVK(creds config.OAuthProviderSettings, redirectURL string, client *http.Client, endpoints Endpoints) *Provider {
	return &Provider{
		name: ProviderVK,
		config: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(endpoints.AuthURL, vkAuthURL),
				TokenURL:  orDefault(endpoints.TokenURL, vkTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		authOpts: []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("v", vkAPIVersion)},
		client:   client,
		identity: func(_ context.Context, _ *http.Client, token *oauth2.Token) (port.OAuthIdentity, error) {
			return port.OAuthIdentity{
				SocialID: extraString(token, "user_id"),
				Email:    extraString(token, "email"),
			}, nil
		},
	}
}
