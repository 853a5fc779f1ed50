package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

func newTestAdmission(t *testing.T, cfg AdmissionConfig) (*AdmissionController, *fixedClock, *metricsRecorder, func() time.Duration) {
	t.Helper()

	client, server := newTestRedis(t)
	clock := newFixedClock(time.Unix(1_700_000_000, 0))
	metrics := newMetricsRecorder()

	controller, err := NewAdmissionController(newTestKeyspace(client, "ratelimit"), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	controller.WithClock(clock.Now)
	controller.WithMetrics(metrics)

	ttlOf := func() time.Duration { return server.TTL("ratelimit:" + AdmissionKey("auth", "login", "")) }
	return controller, clock, metrics, ttlOf
}

func TestAdmissionController_Burst(t *testing.T) {
	controller, _, metrics, _ := newTestAdmission(t, AdmissionConfig{Limit: 5, Period: time.Minute})
	ctx := context.Background()
	key := AdmissionKey("auth", "login", "")

	for i := 0; i < 5; i++ {
		decision, err := controller.Admit(ctx, key)
		require.NoError(t, err, "request %d", i+1)
		require.True(t, decision.Allowed)
		require.Equal(t, 5, decision.Limit)
		require.Equal(t, 4-i, decision.Remaining)
	}

	decision, err := controller.Admit(ctx, key)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	require.False(t, decision.Allowed)
	require.Equal(t, 12*time.Second, decision.RetryAfter)
	require.Equal(t, time.Minute, decision.ResetAfter)

	require.Equal(t, 5, metrics.admissions[true])
	require.Equal(t, 1, metrics.admissions[false])
}

func TestAdmissionController_SpreadBurstWithinSeparation(t *testing.T) {
	controller, clock, _, _ := newTestAdmission(t, AdmissionConfig{Limit: 10, Period: 60 * time.Second})
	ctx := context.Background()
	key := AdmissionKey("auth", "login", "")

	for i := 0; i < 10; i++ {
		decision, err := controller.Admit(ctx, key)
		require.NoError(t, err, "request %d at %s", i+1, time.Duration(i)*500*time.Millisecond)
		require.True(t, decision.Allowed)
		clock.Advance(500 * time.Millisecond)
	}

	// 5.9s after the first request, still inside the first separation interval of 6s.
	clock.Advance(900 * time.Millisecond)
	decision, err := controller.Admit(ctx, key)
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.False(t, decision.Allowed)
	require.Equal(t, 100*time.Millisecond, decision.RetryAfter)
}

func TestAdmissionController_SteadyState(t *testing.T) {
	controller, clock, _, _ := newTestAdmission(t, AdmissionConfig{Limit: 5, Period: time.Minute})
	ctx := context.Background()
	key := AdmissionKey("auth", "login", "")

	for i := 0; i < 5; i++ {
		_, err := controller.Admit(ctx, key)
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(12*time.Second - time.Millisecond)
		decision, err := controller.Admit(ctx, key)
		require.ErrorIs(t, err, domain.ErrRateLimited, "one millisecond short of the separation interval")
		require.Equal(t, time.Millisecond, decision.RetryAfter)

		clock.Advance(time.Millisecond)
		decision, err = controller.Admit(ctx, key)
		require.NoError(t, err, "a request per separation interval is always admitted")
		require.Zero(t, decision.Remaining)

		_, err = controller.Admit(ctx, key)
		require.ErrorIs(t, err, domain.ErrRateLimited)
	}

	clock.Advance(time.Hour)
	decision, err := controller.Admit(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 4, decision.Remaining, "an idle key regains its full burst")
}

func TestAdmissionController_RejectionsDoNotMoveState(t *testing.T) {
	controller, clock, _, _ := newTestAdmission(t, AdmissionConfig{Limit: 2, Period: 10 * time.Second})
	ctx := context.Background()
	key := AdmissionKey("auth", "refresh", "user-1")

	for i := 0; i < 2; i++ {
		_, err := controller.Admit(ctx, key)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		_, err := controller.Admit(ctx, key)
		require.ErrorIs(t, err, domain.ErrRateLimited)
	}

	clock.Advance(5 * time.Second)
	_, err := controller.Admit(ctx, key)
	require.NoError(t, err)
}

func TestAdmissionController_KeysAreIndependent(t *testing.T) {
	controller, _, _, _ := newTestAdmission(t, AdmissionConfig{Limit: 1, Period: time.Minute})
	ctx := context.Background()

	_, err := controller.Admit(ctx, AdmissionKey("auth", "login", "alice"))
	require.NoError(t, err)
	_, err = controller.Admit(ctx, AdmissionKey("auth", "login", "alice"))
	require.ErrorIs(t, err, domain.ErrRateLimited)

	_, err = controller.Admit(ctx, AdmissionKey("auth", "login", "bob"))
	require.NoError(t, err)
	_, err = controller.Admit(ctx, AdmissionKey("auth", "logout", "alice"))
	require.NoError(t, err)
}

func TestAdmissionKey(t *testing.T) {
	require.Equal(t, "auth:login", AdmissionKey("auth", "login", ""))
	require.Equal(t, "auth:login", AdmissionKey("auth", "login", "   "))
	require.Equal(t, "auth:refresh:user-1", AdmissionKey("auth", "refresh", "user-1"))
}

func TestAdmissionController_StateTTL(t *testing.T) {
	controller, _, _, ttlOf := newTestAdmission(t, AdmissionConfig{Limit: 5, Period: time.Minute, StateTTL: 2 * time.Minute})

	_, err := controller.Admit(context.Background(), AdmissionKey("auth", "login", ""))
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, ttlOf())
}

func TestAdmissionController_WithoutStateTTLKeepsState(t *testing.T) {
	controller, _, _, ttlOf := newTestAdmission(t, AdmissionConfig{Limit: 5, Period: time.Minute})

	_, err := controller.Admit(context.Background(), AdmissionKey("auth", "login", ""))
	require.NoError(t, err)
	require.Zero(t, ttlOf())
}

func TestAdmissionController_CorruptStateIsReset(t *testing.T) {
	client, _ := newTestRedis(t)
	store := newTestKeyspace(client, "ratelimit")
	controller, err := NewAdmissionController(store, AdmissionConfig{Limit: 1, Period: time.Minute}, zaptest.NewLogger(t))
	require.NoError(t, err)

	key := AdmissionKey("auth", "login", "")
	require.NoError(t, store.Put(context.Background(), key, "not-a-number", 0))

	decision, err := controller.Admit(context.Background(), key)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestAdmissionController_FailsClosed(t *testing.T) {
	client, server := newTestRedis(t)
	controller, err := NewAdmissionController(newTestKeyspace(client, "ratelimit"), AdmissionConfig{Limit: 5, Period: time.Minute}, zaptest.NewLogger(t))
	require.NoError(t, err)
	server.Close()

	decision, err := controller.Admit(context.Background(), AdmissionKey("auth", "login", ""))
	require.ErrorIs(t, err, domain.ErrRateLimited)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.False(t, decision.Allowed)
	require.Equal(t, 12*time.Second, decision.RetryAfter)
}

func TestNewAdmissionController_Validation(t *testing.T) {
	client, _ := newTestRedis(t)
	store := newTestKeyspace(client, "ratelimit")

	_, err := NewAdmissionController(nil, AdmissionConfig{Limit: 1, Period: time.Second}, nil)
	require.Error(t, err)
	_, err = NewAdmissionController(store, AdmissionConfig{Limit: 0, Period: time.Second}, nil)
	require.Error(t, err)
	_, err = NewAdmissionController(store, AdmissionConfig{Limit: 1, Period: time.Microsecond}, nil)
	require.Error(t, err)

	controller, err := NewAdmissionController(store, AdmissionConfig{Limit: 10_000, Period: time.Second}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), controller.separationMs)
}
