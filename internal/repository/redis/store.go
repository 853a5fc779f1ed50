package redis

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
)

const defaultScanCount = 100

// Store is a Redis backed port.KeyValueStore scoped to a single keyspace prefix.
type Store struct {
	client    *red.Client
	prefix    string
	scanCount int64
}

var _ port.KeyValueStore = (*Store)(nil)

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithScanCount overrides the COUNT hint passed to SCAN.
func WithScanCount(count int64) StoreOption {
	return func(s *Store) {
		if count > 0 {
			s.scanCount = count
		}
	}
}

// NewStore wires a Redis client into a keyspace. An empty prefix addresses the whole database.
func NewStore(client *red.Client, keyPrefix string, opts ...StoreOption) *Store {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	store := &Store{client: client, prefix: prefix, scanCount: defaultScanCount}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Get returns the stored value and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: redis get: %w", domain.ErrStoreUnavailable, err)
	}
	return value, true, nil
}

// GetByTemplate lazily scans keys matching pattern and yields their values.
// Keys that expire between SCAN and GET are skipped.
func (s *Store) GetByTemplate(ctx context.Context, pattern string) iter.Seq2[port.Entry, error] {
	return func(yield func(port.Entry, error) bool) {
		it := s.client.Scan(ctx, 0, escapePattern(s.prefix)+pattern, s.scanCount).Iterator()
		for it.Next(ctx) {
			fullKey := it.Val()
			value, err := s.client.Get(ctx, fullKey).Result()
			if err != nil {
				if errors.Is(err, red.Nil) {
					continue
				}
				yield(port.Entry{}, fmt.Errorf("%w: redis get: %w", domain.ErrStoreUnavailable, err))
				return
			}
			if !yield(port.Entry{Key: strings.TrimPrefix(fullKey, s.prefix), Value: value}, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(port.Entry{}, fmt.Errorf("%w: redis scan: %w", domain.ErrStoreUnavailable, err))
		}
	}
}

// Put overwrites the value. A non-positive expire persists the key without a TTL.
func (s *Store) Put(ctx context.Context, key, value string, expire time.Duration) error {
	if expire < 0 {
		expire = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, value, expire).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the key. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// escapePattern quotes glob metacharacters so the prefix is matched literally.
func escapePattern(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
