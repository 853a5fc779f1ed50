package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/idgen"
	"github.com/arklim/auth-session-service/internal/repository"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxLoginLength      = 50
)

// AccountService manages principals: sign-up, credential changes and login history.
type AccountService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	history     port.AuthHistoryRepository
	hasher      port.PasswordHasher
	policy      port.PasswordPolicyValidator
	events      port.EventPublisher
	defaultRole string
	logger      *zap.Logger
	now         func() time.Time
}

// NewAccountService constructs an AccountService. defaultRole is attached to every new principal.
func NewAccountService(
	users port.UserRepository,
	roles port.RoleRepository,
	history port.AuthHistoryRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	events port.EventPublisher,
	defaultRole string,
	logger *zap.Logger,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		users:       users,
		roles:       roles,
		history:     history,
		hasher:      hasher,
		policy:      policy,
		events:      events,
		defaultRole: strings.TrimSpace(defaultRole),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SignUp registers a principal with a hashed password and the default role.
func (s *AccountService) SignUp(ctx context.Context, input domain.NewUser) (domain.User, error) {
	login := strings.TrimSpace(input.Login)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateLogin(login); err != nil {
		return domain.User{}, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if input.Password == "" {
		return domain.User{}, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}

	emailTaken, loginTaken, err := s.users.Exists(ctx, email, login)
	if err != nil {
		return domain.User{}, fmt.Errorf("check user uniqueness: %w", err)
	}
	switch {
	case emailTaken && loginTaken:
		return domain.User{}, fmt.Errorf("%w: login and email are taken", domain.ErrConflict)
	case emailTaken:
		return domain.User{}, fmt.Errorf("%w: email is taken", domain.ErrConflict)
	case loginTaken:
		return domain.User{}, fmt.Errorf("%w: login is taken", domain.ErrConflict)
	}

	if s.policy != nil {
		inputs := []string{login, email}
		if input.FirstName != nil {
			inputs = append(inputs, *input.FirstName)
		}
		if input.LastName != nil {
			inputs = append(inputs, *input.LastName)
		}
		if err := s.policy.Validate(input.Password, inputs...); err != nil {
			return domain.User{}, err
		}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Login:        login,
		Email:        email,
		PasswordHash: hash,
		FirstName:    trimOptional(input.FirstName),
		LastName:     trimOptional(input.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	roles, err := s.createWithDefaultRole(ctx, user)
	if err != nil {
		return domain.User{}, err
	}

	s.publishSignedUp(ctx, user, "password", roles)
	s.logger.Info("user signed up", zap.String("user_id", user.ID))

	user.PasswordHash = ""
	return user, nil
}

// ProvisionExternalUser creates a principal for a first-time OAuth login. The account gets a random
// password so it can only sign in through the provider until the owner sets one.
func (s *AccountService) ProvisionExternalUser(ctx context.Context, login, email, provider string) (domain.User, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return domain.User{}, fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.hasher.Hash(base64.RawURLEncoding.EncodeToString(secret))
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Login:        truncate(login, maxLoginLength),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	roles, err := s.createWithDefaultRole(ctx, user)
	if err != nil {
		return domain.User{}, err
	}

	s.publishSignedUp(ctx, user, provider, roles)
	return user, nil
}

func (s *AccountService) createWithDefaultRole(ctx context.Context, user domain.User) ([]string, error) {
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: login or email is taken", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.defaultRole == "" {
		return nil, nil
	}
	role, err := s.roles.GetByName(ctx, s.defaultRole)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("default role is not provisioned", zap.String("role", s.defaultRole))
			return nil, nil
		}
		return nil, fmt.Errorf("lookup default role: %w", err)
	}
	if err := s.roles.AssignToUser(ctx, user.ID, []string{role.ID}); err != nil {
		return nil, fmt.Errorf("assign default role: %w", err)
	}
	return []string{role.Name}, nil
}

// ListHistory returns a page of logins ordered newest first. searchAfter is the opaque cursor
// returned with the previous page.
func (s *AccountService) ListHistory(ctx context.Context, userID string, limit int, searchAfter string) (domain.AuthHistoryPage, error) {
	if s.history == nil {
		return domain.AuthHistoryPage{}, fmt.Errorf("history repository not configured")
	}

	switch {
	case limit < 0:
		return domain.AuthHistoryPage{}, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput)
	case limit == 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	cursor := ""
	if strings.TrimSpace(searchAfter) != "" {
		parsed, err := idgen.Parse(searchAfter)
		if err != nil {
			return domain.AuthHistoryPage{}, fmt.Errorf("%w: search_after is not a valid cursor", domain.ErrInvalidInput)
		}
		cursor = parsed
	}

	entries, err := s.history.ListByUser(ctx, userID, limit, cursor)
	if err != nil {
		return domain.AuthHistoryPage{}, fmt.Errorf("list auth history: %w", err)
	}

	page := domain.AuthHistoryPage{Entries: entries}
	if len(entries) == limit {
		page.SearchAfter = entries[len(entries)-1].ID
	}
	return page, nil
}

// UpdateAuthData changes the login and/or password of a principal.
func (s *AccountService) UpdateAuthData(ctx context.Context, userID string, update domain.AuthDataUpdate) error {
	if update.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	var login, hash *string
	if update.Login != nil {
		trimmed := strings.TrimSpace(*update.Login)
		if err := validateLogin(trimmed); err != nil {
			return err
		}
		login = &trimmed
	}

	if update.Password != nil {
		if *update.Password == "" {
			return fmt.Errorf("%w: password must not be empty", domain.ErrInvalidInput)
		}
		if s.policy != nil {
			inputs := []string{}
			if login != nil {
				inputs = append(inputs, *login)
			}
			if err := s.policy.Validate(*update.Password, inputs...); err != nil {
				return err
			}
		}
		encoded, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		hash = &encoded
	}

	if err := s.users.UpdateAuthData(ctx, userID, login, hash); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return fmt.Errorf("%w: login is taken", domain.ErrConflict)
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("user %s: %w", userID, domain.ErrMissingEntity)
		default:
			return fmt.Errorf("update auth data: %w", err)
		}
	}

	s.logger.Info("auth data updated",
		zap.String("user_id", userID),
		zap.Bool("login_changed", login != nil),
		zap.Bool("password_changed", hash != nil),
	)
	return nil
}

func (s *AccountService) publishSignedUp(ctx context.Context, user domain.User, method string, roles []string) {
	if s.events == nil {
		return
	}
	event := domain.UserSignedUpEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Login:        user.Login,
		Email:        user.Email,
		Method:       method,
		SignedUpAt:   user.CreatedAt,
		DefaultRoles: roles,
	}
	if err := s.events.PublishUserSignedUp(ctx, event); err != nil {
		s.logger.Warn("publish user signed up event failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func validateLogin(login string) error {
	if login == "" {
		return fmt.Errorf("%w: login is required", domain.ErrInvalidInput)
	}
	if len(login) > maxLoginLength {
		return fmt.Errorf("%w: login must be at most %d characters", domain.ErrInvalidInput, maxLoginLength)
	}
	if strings.ContainsAny(login, " \t\r\n") {
		return fmt.Errorf("%w: login must not contain whitespace", domain.ErrInvalidInput)
	}
	return nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
