package port

import (
	"context"
	"time"
)

// RevocationRegistry records revoked token identifiers until the revoked token class would have expired.
type RevocationRegistry interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
