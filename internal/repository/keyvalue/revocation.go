package keyvalue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/arklim/auth-session-service/internal/core/port"
)

const revokedMarker = "1"

// RevocationRegistry stores tombstones for revoked token identifiers.
type RevocationRegistry struct {
	store port.KeyValueStore
	cache *expirable.LRU[string, struct{}]
}

var _ port.RevocationRegistry = (*RevocationRegistry)(nil)

// RevocationOption customises the registry.
type RevocationOption func(*RevocationRegistry)

// WithLocalCache enables an in-process cache of positive lookups. Negative answers are never cached,
// so a revocation issued by another replica is observed on the next lookup.
func WithLocalCache(size int, ttl time.Duration) RevocationOption {
	return func(r *RevocationRegistry) {
		if size <= 0 || ttl <= 0 {
			return
		}
		r.cache = expirable.NewLRU[string, struct{}](size, nil, ttl)
	}
}

// NewRevocationRegistry wraps the revocation keyspace.
func NewRevocationRegistry(store port.KeyValueStore, opts ...RevocationOption) *RevocationRegistry {
	registry := &RevocationRegistry{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	return registry
}

// Revoke records the jti as revoked for ttl. A non-positive ttl keeps the tombstone forever.
// Revoking an already revoked jti refreshes its TTL and is otherwise a no-op.
func (r *RevocationRegistry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return errors.New("jti must not be empty")
	}

	if err := r.store.Put(ctx, jti, revokedMarker, ttl); err != nil {
		return fmt.Errorf("store revoked jti: %w", err)
	}
	if r.cache != nil {
		r.cache.Add(jti, struct{}{})
	}
	return nil
}

// IsRevoked reports whether a tombstone exists for jti.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, errors.New("jti must not be empty")
	}

	if r.cache != nil {
		if _, ok := r.cache.Get(jti); ok {
			return true, nil
		}
	}

	_, found, err := r.store.Get(ctx, jti)
	if err != nil {
		return false, fmt.Errorf("lookup revoked jti: %w", err)
	}
	if found && r.cache != nil {
		r.cache.Add(jti, struct{}{})
	}
	return found, nil
}
