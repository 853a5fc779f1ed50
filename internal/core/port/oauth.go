package port

import (
	"context"
	"time"
)

// OAuthToken is the provider credential obtained from a code exchange.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// OAuthIdentity is the provider's view of the signed-in account.
type OAuthIdentity struct {
	SocialID string
	Email    string
}

// OAuthProvider performs the authorization code flow against one external provider.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (OAuthToken, OAuthIdentity, error)
}

// OAuthStateStore keeps one-time state values and cached provider credentials.
type OAuthStateStore interface {
	SaveState(ctx context.Context, state, provider string, ttl time.Duration) error
	// ConsumeState returns the provider bound to state and removes it.
	ConsumeState(ctx context.Context, state string) (string, bool, error)
	SaveProviderToken(ctx context.Context, provider, userID string, token OAuthToken) error
}
