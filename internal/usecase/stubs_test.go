package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/security"
	"github.com/arklim/auth-session-service/internal/repository"
	redisrepo "github.com/arklim/auth-session-service/internal/repository/redis"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := red.NewClient(&red.Options{Addr: server.Addr(), MaxRetries: -1})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return client, server
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(at time.Time) *fixedClock { return &fixedClock{now: at} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type userRepoStub struct {
	mu        sync.Mutex
	byID      map[string]domain.User
	createErr error
	updateErr error
}

func newUserRepoStub(users ...domain.User) *userRepoStub {
	repo := &userRepoStub{byID: make(map[string]domain.User)}
	for _, user := range users {
		repo.byID[user.ID] = user
	}
	return repo
}

func (r *userRepoStub) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if existing.Login == user.Login || existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	r.byID[user.ID] = user
	return nil
}

func (r *userRepoStub) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.byID[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (r *userRepoStub) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Login == login })
}

func (r *userRepoStub) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *userRepoStub) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byID {
		if match(user) {
			found := user
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepoStub) Exists(_ context.Context, email, login string) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var emailTaken, loginTaken bool
	for _, user := range r.byID {
		emailTaken = emailTaken || user.Email == email
		loginTaken = loginTaken || user.Login == login
	}
	return emailTaken, loginTaken, nil
}

func (r *userRepoStub) UpdateAuthData(_ context.Context, id string, login *string, passwordHash *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	user, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if login != nil {
		for otherID, other := range r.byID {
			if otherID != id && other.Login == *login {
				return repository.ErrDuplicate
			}
		}
		user.Login = *login
	}
	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}
	r.byID[id] = user
	return nil
}

type roleRepoStub struct {
	mu        sync.Mutex
	roles     map[string]domain.Role
	userRoles map[string]map[string]struct{}
	listErr   error
}

func newRoleRepoStub(roles ...domain.Role) *roleRepoStub {
	repo := &roleRepoStub{roles: make(map[string]domain.Role), userRoles: make(map[string]map[string]struct{})}
	for _, role := range roles {
		repo.roles[role.ID] = role
	}
	return repo
}

func (r *roleRepoStub) Create(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return repository.ErrDuplicate
		}
	}
	r.roles[role.ID] = role
	return nil
}

func (r *roleRepoStub) GetByID(_ context.Context, id string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[id]; ok {
		return &role, nil
	}
	return nil, repository.ErrNotFound
}

func (r *roleRepoStub) GetByName(_ context.Context, name string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			found := role
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *roleRepoStub) List(_ context.Context) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roles := make([]domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r *roleRepoStub) Update(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	r.roles[role.ID] = role
	return nil
}

func (r *roleRepoStub) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.roles, id)
	for _, assigned := range r.userRoles {
		delete(assigned, id)
	}
	return nil
}

func (r *roleRepoStub) ListByUser(_ context.Context, userID string) ([]domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	roles := make([]domain.Role, 0)
	for id := range r.userRoles[userID] {
		roles = append(roles, r.roles[id])
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (r *roleRepoStub) AssignToUser(_ context.Context, userID string, roleIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userRoles[userID] == nil {
		r.userRoles[userID] = make(map[string]struct{})
	}
	for _, id := range roleIDs {
		r.userRoles[userID][id] = struct{}{}
	}
	return nil
}

func (r *roleRepoStub) RemoveFromUser(_ context.Context, userID string, roleIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range roleIDs {
		delete(r.userRoles[userID], id)
	}
	return nil
}

type historyRepoStub struct {
	mu      sync.Mutex
	entries []domain.AuthHistoryEntry
}

func (r *historyRepoStub) Create(_ context.Context, entry domain.AuthHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *historyRepoStub) ListByUser(_ context.Context, userID string, limit int, searchAfter string) ([]domain.AuthHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := make([]domain.AuthHistoryEntry, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		entry := r.entries[i]
		if entry.UserID != userID {
			continue
		}
		if searchAfter != "" && entry.ID >= searchAfter {
			continue
		}
		matched = append(matched, entry)
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

type socialRepoStub struct {
	accounts []domain.SocialAccount
}

func (r *socialRepoStub) Create(_ context.Context, account domain.SocialAccount) error {
	for _, existing := range r.accounts {
		if existing.Provider == account.Provider && existing.SocialID == account.SocialID {
			return repository.ErrDuplicate
		}
	}
	r.accounts = append(r.accounts, account)
	return nil
}

func (r *socialRepoStub) GetByProviderID(_ context.Context, provider, socialID string) (*domain.SocialAccount, error) {
	for _, account := range r.accounts {
		if account.Provider == provider && account.SocialID == socialID {
			found := account
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

type eventRecorder struct {
	mu       sync.Mutex
	signedUp []domain.UserSignedUpEvent
	assigned []domain.RolesAssignedEvent
	revoked  []domain.RolesRevokedEvent
	sessions []domain.SessionRevokedEvent
}

func (e *eventRecorder) PublishUserSignedUp(_ context.Context, event domain.UserSignedUpEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signedUp = append(e.signedUp, event)
	return nil
}

func (e *eventRecorder) PublishRolesAssigned(_ context.Context, event domain.RolesAssignedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assigned = append(e.assigned, event)
	return nil
}

func (e *eventRecorder) PublishRolesRevoked(_ context.Context, event domain.RolesRevokedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revoked = append(e.revoked, event)
	return nil
}

func (e *eventRecorder) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions = append(e.sessions, event)
	return nil
}

// plainHasher keeps tests fast; it is never used outside tests.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "plain:"+password, nil
}

type flakyRevocations struct {
	port.RevocationRegistry
	failRevoke map[string]bool
	failLookup bool
}

func (f *flakyRevocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if f.failRevoke[jti] {
		return domain.ErrStoreUnavailable
	}
	return f.RevocationRegistry.Revoke(ctx, jti, ttl)
}

func (f *flakyRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if f.failLookup {
		return false, errors.New("dial tcp: connection refused")
	}
	return f.RevocationRegistry.IsRevoked(ctx, jti)
}

type metricsRecorder struct {
	mu         sync.Mutex
	logins     map[string]int
	revoked    map[string]int
	admissions map[bool]int
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{logins: map[string]int{}, revoked: map[string]int{}, admissions: map[bool]int{}}
}

func (m *metricsRecorder) ObserveLogin(method, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[method+":"+outcome]++
}

func (m *metricsRecorder) ObserveRefresh(string) {}

func (m *metricsRecorder) ObserveRevocations(reason string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[reason] += count
}

func (m *metricsRecorder) ObserveAdmission(_ string, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admissions[allowed]++
}

func newTestCodec(t *testing.T, clock *fixedClock, refreshTTL time.Duration) *security.TokenCodec {
	t.Helper()
	codec, err := security.NewTokenCodec("usecase-test-secret", refreshTTL, security.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}
	return codec
}

func newTestKeyspace(client *red.Client, prefix string) *redisrepo.Store {
	return redisrepo.NewStore(client, prefix)
}
