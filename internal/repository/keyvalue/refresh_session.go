package keyvalue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
)

// RefreshSessionRegistry keeps the current refresh token per (principal, device).
type RefreshSessionRegistry struct {
	store port.KeyValueStore
	ttl   time.Duration
}

var _ port.RefreshSessionRegistry = (*RefreshSessionRegistry)(nil)

// NewRefreshSessionRegistry wraps the refresh keyspace; ttl is the refresh token lifetime.
func NewRefreshSessionRegistry(store port.KeyValueStore, ttl time.Duration) *RefreshSessionRegistry {
	return &RefreshSessionRegistry{store: store, ttl: ttl}
}

// SessionKey derives the registry key for a device. The user agent is hashed so arbitrary
// header contents never reach the key namespace.
func SessionKey(userID, userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return userID + ":" + hex.EncodeToString(sum[:])
}

// Put stores token for the device, replacing any previous session of the same device.
func (r *RefreshSessionRegistry) Put(ctx context.Context, userID, userAgent, token string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id must not be empty")
	}
	if err := r.store.Put(ctx, SessionKey(userID, userAgent), token, r.ttl); err != nil {
		return fmt.Errorf("store refresh session: %w", err)
	}
	return nil
}

// Get returns the device session or domain.ErrMissingEntity.
func (r *RefreshSessionRegistry) Get(ctx context.Context, userID, userAgent string) (*domain.RefreshSession, error) {
	key := SessionKey(userID, userAgent)
	token, found, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load refresh session: %w", err)
	}
	if !found {
		return nil, domain.ErrMissingEntity
	}
	return &domain.RefreshSession{Key: key, Token: token}, nil
}

// FindAll lazily yields every live session of the principal.
func (r *RefreshSessionRegistry) FindAll(ctx context.Context, userID string) iter.Seq2[domain.RefreshSession, error] {
	return func(yield func(domain.RefreshSession, error) bool) {
		for entry, err := range r.store.GetByTemplate(ctx, escapePattern(userID)+":*") {
			if err != nil {
				yield(domain.RefreshSession{}, fmt.Errorf("scan refresh sessions: %w", err))
				return
			}
			if !yield(domain.RefreshSession{Key: entry.Key, Token: entry.Value}, nil) {
				return
			}
		}
	}
}

// Delete removes a session by its registry key.
func (r *RefreshSessionRegistry) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete refresh session: %w", err)
	}
	return nil
}

func escapePattern(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(value)
}
