package postgres

import (
	"context"
	"database/sql"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
)

const socialAccountsTable = "auth.social_accounts"

// SocialAccountRepository links users with OAuth provider identities.
type SocialAccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.SocialAccountRepository = (*SocialAccountRepository)(nil)

// NewSocialAccountRepository constructs a PostgreSQL-backed social account repository.
func NewSocialAccountRepository(exec pgExecutor) *SocialAccountRepository {
	return &SocialAccountRepository{exec: exec, builder: newBuilder()}
}

// Create stores a new link. (provider, social_id) is unique.
func (r *SocialAccountRepository) Create(ctx context.Context, account domain.SocialAccount) error {
	var email any
	if account.Email != "" {
		email = account.Email
	}

	stmt, args, err := r.builder.Insert(socialAccountsTable).
		Columns("id", "user_id", "provider", "social_id", "email", "created_at").
		Values(account.ID, account.UserID, account.Provider, account.SocialID, email, account.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert social account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert social account: %w", mapError(err))
	}
	return nil
}

// GetByProviderID finds the link for an external identity.
func (r *SocialAccountRepository) GetByProviderID(ctx context.Context, provider, socialID string) (*domain.SocialAccount, error) {
	stmt, args, err := r.builder.Select("id", "user_id", "provider", "social_id", "email", "created_at").
		From(socialAccountsTable).
		Where(squirrel.Eq{"provider": provider, "social_id": socialID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select social account sql: %w", err)
	}

	var (
		account domain.SocialAccount
		email   sql.NullString
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.SocialID,
		&email,
		&account.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan social account: %w", mapError(err))
	}
	account.Email = email.String
	return &account, nil
}
