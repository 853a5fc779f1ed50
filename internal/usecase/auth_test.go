package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/infra/idgen"
	"github.com/arklim/auth-session-service/internal/infra/security"
)

const strongPassword = "Correct-Horse-Battery-42"

type accountEnv struct {
	service *AccountService
	users   *userRepoStub
	roles   *roleRepoStub
	history *historyRepoStub
	events  *eventRecorder
}

func newAccountEnv(t *testing.T, existing ...domain.User) *accountEnv {
	t.Helper()

	users := newUserRepoStub(existing...)
	roles := newRoleRepoStub(domain.Role{ID: "role-user", Name: "user"})
	history := &historyRepoStub{}
	events := &eventRecorder{}

	service := NewAccountService(users, roles, history, plainHasher{}, security.DefaultPasswordPolicy(0), events, "user", zaptest.NewLogger(t))
	return &accountEnv{service: service, users: users, roles: roles, history: history, events: events}
}

func TestAccountService_SignUp(t *testing.T) {
	env := newAccountEnv(t)
	ctx := context.Background()
	first := "  Alice "

	user, err := env.service.SignUp(ctx, domain.NewUser{
		Login:     "alice",
		Email:     "Alice@Example.com",
		Password:  strongPassword,
		FirstName: &first,
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "alice@example.com", user.Email)
	require.Empty(t, user.PasswordHash, "hash must not leave the service")
	require.NotNil(t, user.FirstName)
	require.Equal(t, "Alice", *user.FirstName)

	stored, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "plain:"+strongPassword, stored.PasswordHash)

	roles, err := env.roles.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"user"}, domain.RoleNames(roles))

	require.Len(t, env.events.signedUp, 1)
	require.Equal(t, "password", env.events.signedUp[0].Method)
	require.Equal(t, []string{"user"}, env.events.signedUp[0].DefaultRoles)
}

func TestAccountService_SignUpConflicts(t *testing.T) {
	env := newAccountEnv(t, domain.User{ID: "u1", Login: "alice", Email: "alice@example.com"})
	ctx := context.Background()

	cases := []struct {
		name  string
		login string
		email string
		want  string
	}{
		{name: "both", login: "alice", email: "alice@example.com", want: "login and email are taken"},
		{name: "email", login: "bob", email: "alice@example.com", want: "email is taken"},
		{name: "login", login: "alice", email: "bob@example.com", want: "login is taken"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.service.SignUp(ctx, domain.NewUser{Login: tc.login, Email: tc.email, Password: strongPassword})
			require.ErrorIs(t, err, domain.ErrConflict)
			require.Contains(t, err.Error(), tc.want)
		})
	}
	require.Empty(t, env.events.signedUp)
}

func TestAccountService_SignUpValidation(t *testing.T) {
	env := newAccountEnv(t)
	ctx := context.Background()

	_, err := env.service.SignUp(ctx, domain.NewUser{Login: "", Email: "a@example.com", Password: strongPassword})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.service.SignUp(ctx, domain.NewUser{Login: "with space", Email: "a@example.com", Password: strongPassword})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.service.SignUp(ctx, domain.NewUser{Login: "alice", Email: "not-an-email", Password: strongPassword})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.service.SignUp(ctx, domain.NewUser{Login: "alice", Email: "a@example.com", Password: "short"})
	require.ErrorIs(t, err, domain.ErrWeakPassword)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.service.SignUp(ctx, domain.NewUser{Login: "alice", Email: "a@example.com", Password: "alice"})
	require.ErrorIs(t, err, domain.ErrWeakPassword)
}

func TestAccountService_SignUpWithoutProvisionedDefaultRole(t *testing.T) {
	users := newUserRepoStub()
	roles := newRoleRepoStub()
	service := NewAccountService(users, roles, nil, plainHasher{}, nil, nil, "user", zaptest.NewLogger(t))

	user, err := service.SignUp(context.Background(), domain.NewUser{Login: "alice", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	assigned, err := roles.ListByUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Empty(t, assigned)
}

func TestAccountService_UpdateAuthData(t *testing.T) {
	env := newAccountEnv(t,
		domain.User{ID: "u1", Login: "alice", Email: "alice@example.com", PasswordHash: "plain:old"},
		domain.User{ID: "u2", Login: "bob", Email: "bob@example.com"},
	)
	ctx := context.Background()

	login := "alice2"
	password := strongPassword
	require.NoError(t, env.service.UpdateAuthData(ctx, "u1", domain.AuthDataUpdate{Login: &login, Password: &password}))

	stored, err := env.users.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "alice2", stored.Login)
	require.Equal(t, "plain:"+strongPassword, stored.PasswordHash)

	taken := "bob"
	err = env.service.UpdateAuthData(ctx, "u1", domain.AuthDataUpdate{Login: &taken})
	require.ErrorIs(t, err, domain.ErrConflict)

	err = env.service.UpdateAuthData(ctx, "ghost", domain.AuthDataUpdate{Login: &login})
	require.ErrorIs(t, err, domain.ErrMissingEntity)

	err = env.service.UpdateAuthData(ctx, "u1", domain.AuthDataUpdate{})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	weak := "123"
	err = env.service.UpdateAuthData(ctx, "u1", domain.AuthDataUpdate{Password: &weak})
	require.ErrorIs(t, err, domain.ErrWeakPassword)
}

func TestAccountService_UpdateAuthDataStoreFailure(t *testing.T) {
	env := newAccountEnv(t, domain.User{ID: "u1", Login: "alice", Email: "alice@example.com"})
	env.users.updateErr = errors.New("connection reset")

	login := "alice2"
	err := env.service.UpdateAuthData(context.Background(), "u1", domain.AuthDataUpdate{Login: &login})
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrConflict)
	require.Contains(t, err.Error(), "connection reset")
}

func TestAccountService_ListHistoryPaginates(t *testing.T) {
	env := newAccountEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, env.history.Create(ctx, domain.AuthHistoryEntry{
			ID:         idgen.NewAt(at),
			UserID:     "u1",
			DeviceType: domain.DeviceTypePC,
			CreatedAt:  at,
		}))
	}
	require.NoError(t, env.history.Create(ctx, domain.AuthHistoryEntry{ID: idgen.NewAt(base), UserID: "u2"}))

	first, err := env.service.ListHistory(ctx, "u1", 2, "")
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.Equal(t, base.Add(4*time.Minute), first.Entries[0].CreatedAt)
	require.NotEmpty(t, first.SearchAfter)

	second, err := env.service.ListHistory(ctx, "u1", 2, first.SearchAfter)
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	require.Equal(t, base.Add(2*time.Minute), second.Entries[0].CreatedAt)

	last, err := env.service.ListHistory(ctx, "u1", 2, second.SearchAfter)
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)
	require.Empty(t, last.SearchAfter, "the final page carries no cursor")
}

func TestAccountService_ListHistoryValidation(t *testing.T) {
	env := newAccountEnv(t)

	_, err := env.service.ListHistory(context.Background(), "u1", -1, "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.service.ListHistory(context.Background(), "u1", 10, "not-a-cursor")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	page, err := env.service.ListHistory(context.Background(), "u1", 0, "")
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}

func TestAccountService_ProvisionExternalUser(t *testing.T) {
	env := newAccountEnv(t)

	user, err := env.service.ProvisionExternalUser(context.Background(), "yandex_12345", "Ext@Example.com", "yandex")
	require.NoError(t, err)
	require.Equal(t, "yandex_12345", user.Login)
	require.Equal(t, "ext@example.com", user.Email)
	require.NotEmpty(t, user.PasswordHash)

	require.Len(t, env.events.signedUp, 1)
	require.Equal(t, "yandex", env.events.signedUp[0].Method)
}
