package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/config"
)

const (
	yandexAuthURL     = "https://oauth.yandex.ru/authorize"
	yandexTokenURL    = "https://oauth.yandex.ru/token"
	yandexUserInfoURL = "https://login.yandex.ru/info?format=json"
)

type yandexUserInfo struct {
	ID           string `json:"id"`
	DefaultEmail string `json:"default_email"`
}

// NewYandex builds the Yandex ID provider. The account is read from the login.yandex.ru info endpoint.
func NewYandex(creds config.OAuthProviderSettings, redirectURL string, client *http.Client, endpoints Endpoints) *Provider {
	userInfoURL := orDefault(endpoints.UserInfoURL, yandexUserInfoURL)

	return &Provider{
		name: ProviderYandex,
		config: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"login:email", "login:info"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(endpoints.AuthURL, yandexAuthURL),
				TokenURL:  orDefault(endpoints.TokenURL, yandexTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: client,
		identity: func(ctx context.Context, client *http.Client, token *oauth2.Token) (port.OAuthIdentity, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
			if err != nil {
				return port.OAuthIdentity{}, err
			}
			req.Header.Set("Authorization", "OAuth "+token.AccessToken)

			var info yandexUserInfo
			if err := getJSON(ctx, client, req, &info); err != nil {
				return port.OAuthIdentity{}, err
			}
			return port.OAuthIdentity{SocialID: info.ID, Email: info.DefaultEmail}, nil
		},
	}
}
