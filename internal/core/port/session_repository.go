package port

import (
	"context"
	"iter"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// RefreshSessionRegistry stores the current refresh token of each (principal, device) pair.
type RefreshSessionRegistry interface {
	Put(ctx context.Context, userID, userAgent, token string) error
	Get(ctx context.Context, userID, userAgent string) (*domain.RefreshSession, error)
	FindAll(ctx context.Context, userID string) iter.Seq2[domain.RefreshSession, error]
	Delete(ctx context.Context, key string) error
}
