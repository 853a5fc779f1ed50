package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/repository"
)

const usersTable = "auth.users"

var userColumns = []string{
	"id",
	"login",
	"email",
	"password_hash",
	"first_name",
	"last_name",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

var _ port.UserRepository = (*UserRepository)(nil)

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: newBuilder(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{exec: tx, builder: r.builder, now: r.now}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Login,
			user.Email,
			user.PasswordHash,
			user.FirstName,
			user.LastName,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", mapError(err))
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByLogin retrieves a user by login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"login": login})
}

// GetByEmail retrieves a user by e-mail address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user      domain.User
		firstName sql.NullString
		lastName  sql.NullString
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.ID,
		&user.Login,
		&user.Email,
		&user.PasswordHash,
		&firstName,
		&lastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan user: %w", mapError(err))
	}

	if firstName.Valid {
		user.FirstName = &firstName.String
	}
	if lastName.Valid {
		user.LastName = &lastName.String
	}
	return &user, nil
}

// Exists reports which of email and login are already registered.
func (r *UserRepository) Exists(ctx context.Context, email, login string) (bool, bool, error) {
	stmt, args, err := r.builder.Select().
		Column(squirrel.Expr("COALESCE(bool_or(email = ?), false)", email)).
		Column(squirrel.Expr("COALESCE(bool_or(login = ?), false)", login)).
		From(usersTable).
		Where(squirrel.Or{squirrel.Eq{"email": email}, squirrel.Eq{"login": login}}).
		ToSql()
	if err != nil {
		return false, false, fmt.Errorf("build user exists sql: %w", err)
	}

	var emailTaken, loginTaken bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&emailTaken, &loginTaken); err != nil {
		return false, false, fmt.Errorf("check user exists: %w", mapError(err))
	}
	return emailTaken, loginTaken, nil
}

// UpdateAuthData changes the login and/or password hash of a user.
func (r *UserRepository) UpdateAuthData(ctx context.Context, id string, login *string, passwordHash *string) error {
	query := r.builder.Update(usersTable).
		Set("updated_at", r.now()).
		Where(squirrel.Eq{"id": id})
	if login != nil {
		query = query.Set("login", *login)
	}
	if passwordHash != nil {
		query = query.Set("password_hash", *passwordHash)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update auth data sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update auth data: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
