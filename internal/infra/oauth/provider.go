package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/config"
)

// Provider names as they appear in routes and social account rows.
const (
	ProviderYandex = "yandex"
	ProviderVK     = "vk"
)

// ErrIdentityUnavailable indicates the provider did not return a usable account identifier.
var ErrIdentityUnavailable = errors.New("oauth: provider identity unavailable")

// identityFetcher resolves the provider account behind an exchanged token.
type identityFetcher func(ctx context.Context, client *http.Client, token *oauth2.Token) (port.OAuthIdentity, error)

// Provider implements port.OAuthProvider on top of golang.org/x/oauth2 with a retrying transport.
type Provider struct {
	name     string
	config   oauth2.Config
	authOpts []oauth2.AuthCodeOption
	client   *http.Client
	identity identityFetcher
}

var _ port.OAuthProvider = (*Provider)(nil)

// Endpoints overrides the provider URLs, mostly for tests.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// NewHTTPClient builds the retrying HTTP client shared by every provider.
func NewHTTPClient(cfg config.OAuthSettings, logger *zap.Logger) *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil
	if logger != nil {
		client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				logger.Warn("retrying oauth provider request",
					zap.String("host", req.URL.Host),
					zap.Int("attempt", attempt),
				)
			}
		}
	}
	return client.StandardClient()
}

// NewProviders builds every provider that has credentials configured.
func NewProviders(cfg config.OAuthSettings, client *http.Client) []port.OAuthProvider {
	var providers []port.OAuthProvider
	if cfg.Yandex.Enabled() {
		providers = append(providers, NewYandex(cfg.Yandex, callbackURL(cfg.RedirectURL, ProviderYandex), client, Endpoints{}))
	}
	if cfg.VK.Enabled() {
		providers = append(providers, NewVK(cfg.VK, callbackURL(cfg.RedirectURL, ProviderVK), client, Endpoints{}))
	}
	return providers
}

func callbackURL(base, provider string) string {
	return strings.TrimRight(base, "/") + "/" + provider + "/callback"
}

func (p *Provider) Name() string { return p.name }

// AuthCodeURL returns the consent page URL carrying state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, p.authOpts...)
}

// Exchange trades the authorization code for a provider token and resolves the account behind it.
func (p *Provider) Exchange(ctx context.Context, code string) (port.OAuthToken, port.OAuthIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return port.OAuthToken{}, port.OAuthIdentity{}, fmt.Errorf("oauth %s: exchange code: %w", p.name, err)
	}

	identity, err := p.identity(ctx, p.client, token)
	if err != nil {
		return port.OAuthToken{}, port.OAuthIdentity{}, fmt.Errorf("oauth %s: %w", p.name, err)
	}
	if identity.SocialID == "" {
		return port.OAuthToken{}, port.OAuthIdentity{}, fmt.Errorf("oauth %s: %w", p.name, ErrIdentityUnavailable)
	}

	return port.OAuthToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, identity, nil
}

// extraString reads a string or numeric field from the raw token response.
func extraString(token *oauth2.Token, key string) string {
	switch value := token.Extra(key).(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(value, 10)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

func getJSON(ctx context.Context, client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: unexpected status %d: %s", req.URL.Host, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Host, err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
