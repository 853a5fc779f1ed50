package keyvalue

import (
	"context"
	"fmt"
	"time"

	"github.com/arklim/auth-session-service/internal/core/port"
)

const statePrefix = "state:"

// OAuthStateStore keeps one-time OAuth state values and provider credentials in the OAuth keyspace.
type OAuthStateStore struct {
	store port.KeyValueStore
	now   func() time.Time
}

var _ port.OAuthStateStore = (*OAuthStateStore)(nil)

// NewOAuthStateStore wraps the OAuth keyspace.
func NewOAuthStateStore(store port.KeyValueStore) *OAuthStateStore {
	return &OAuthStateStore{store: store, now: time.Now}
}

// SaveState binds state to provider until ttl elapses.
func (s *OAuthStateStore) SaveState(ctx context.Context, state, provider string, ttl time.Duration) error {
	if err := s.store.Put(ctx, statePrefix+state, provider, ttl); err != nil {
		return fmt.Errorf("store oauth state: %w", err)
	}
	return nil
}

// ConsumeState returns the provider bound to state and deletes it so it cannot be replayed.
func (s *OAuthStateStore) ConsumeState(ctx context.Context, state string) (string, bool, error) {
	provider, found, err := s.store.Get(ctx, statePrefix+state)
	if err != nil {
		return "", false, fmt.Errorf("load oauth state: %w", err)
	}
	if !found {
		return "", false, nil
	}
	if err := s.store.Delete(ctx, statePrefix+state); err != nil {
		return "", false, fmt.Errorf("delete oauth state: %w", err)
	}
	return provider, true, nil
}

// SaveProviderToken caches the provider credentials as {provider}_{user_id}_access and _refresh.
// Both keys expire together with the provider access token; a zero expiry keeps them without TTL.
func (s *OAuthStateStore) SaveProviderToken(ctx context.Context, provider, userID string, token port.OAuthToken) error {
	var ttl time.Duration
	if !token.Expiry.IsZero() {
		ttl = token.Expiry.Sub(s.now())
		if ttl <= 0 {
			return nil
		}
	}

	base := fmt.Sprintf("%s_%s", provider, userID)
	if err := s.store.Put(ctx, base+"_access", token.AccessToken, ttl); err != nil {
		return fmt.Errorf("store provider access token: %w", err)
	}
	if token.RefreshToken == "" {
		return nil
	}
	if err := s.store.Put(ctx, base+"_refresh", token.RefreshToken, ttl); err != nil {
		return fmt.Errorf("store provider refresh token: %w", err)
	}
	return nil
}
