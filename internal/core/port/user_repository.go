package port

import (
	"context"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Exists reports whether the e-mail and login are already taken.
	Exists(ctx context.Context, email, login string) (emailTaken bool, loginTaken bool, err error)
	UpdateAuthData(ctx context.Context, id string, login *string, passwordHash *string) error
}

// AuthHistoryRepository persists successful logins.
type AuthHistoryRepository interface {
	Create(ctx context.Context, entry domain.AuthHistoryEntry) error
	// ListByUser returns up to limit entries older than searchAfter (exclusive), newest first.
	ListByUser(ctx context.Context, userID string, limit int, searchAfter string) ([]domain.AuthHistoryEntry, error)
}

// SocialAccountRepository links principals with external OAuth identities.
type SocialAccountRepository interface {
	Create(ctx context.Context, account domain.SocialAccount) error
	GetByProviderID(ctx context.Context, provider, socialID string) (*domain.SocialAccount, error)
}
