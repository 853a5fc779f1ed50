package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/auth-session-service/internal/core/domain"
)

type fakeValidator struct {
	access     *domain.AccessToken
	refresh    *domain.RefreshToken
	err        error
	lastToken  string
	validateFn string
}

func (f *fakeValidator) ValidateAccess(_ context.Context, token string) (*domain.AccessToken, error) {
	f.lastToken, f.validateFn = token, "access"
	return f.access, f.err
}

func (f *fakeValidator) ValidateRefresh(_ context.Context, token string) (*domain.RefreshToken, error) {
	f.lastToken, f.validateFn = token, "refresh"
	return f.refresh, f.err
}

func serve(router *gin.Engine, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRequireAuthStoresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := &fakeValidator{access: &domain.AccessToken{
		JTI:     "jti-1",
		Subject: domain.AccessSubject{UserID: "user-1", UserRoles: []string{"user"}},
		Fresh:   true,
	}}

	var seenUser string
	var seenJTI string
	router := gin.New()
	router.GET("/me", RequireAuth(validator), func(c *gin.Context) {
		seenUser, _ = GetAuthenticatedUserID(c)
		if token, ok := GetAccessToken(c); ok {
			seenJTI = token.JTI
		}
		c.Status(http.StatusNoContent)
	})

	rr := serve(router, http.MethodGet, "/me", "bearer token-abc")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if validator.lastToken != "token-abc" || validator.validateFn != "access" {
		t.Fatalf("unexpected validation call: %s(%s)", validator.validateFn, validator.lastToken)
	}
	if seenUser != "user-1" || seenJTI != "jti-1" {
		t.Fatalf("claims not propagated: user=%q jti=%q", seenUser, seenJTI)
	}
}

func TestRequireAuthRejectsMalformedHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", RequireAuth(&fakeValidator{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, header := range []string{"", "token-only", "Basic abc", "Bearer   "} {
		if rr := serve(router, http.MethodGet, "/me", header); rr.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rr.Code)
		}
	}
}

func TestRequireAuthMapsValidationErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "expired", err: domain.ErrTokenExpired, status: http.StatusUnauthorized},
		{name: "revoked", err: domain.ErrTokenRevoked, status: http.StatusUnauthorized},
		{name: "malformed", err: fmt.Errorf("%w: bad signature", domain.ErrMalformedToken), status: http.StatusUnauthorized},
		{name: "store down", err: fmt.Errorf("%w: timeout", domain.ErrRevocationStoreUnavailable), status: http.StatusUnauthorized},
		{name: "unexpected", err: fmt.Errorf("boom"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/me", RequireAuth(&fakeValidator{err: tc.err}), func(c *gin.Context) { c.Status(http.StatusOK) })

			if rr := serve(router, http.MethodGet, "/me", "Bearer t"); rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestRequireRefreshStoresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := &fakeValidator{refresh: &domain.RefreshToken{
		JTI:     "refresh-1",
		Subject: domain.RefreshSubject{UserID: "user-1", UserAgent: "curl/8.0"},
	}}

	var seen *domain.RefreshToken
	router := gin.New()
	router.POST("/refresh", RequireRefresh(validator), func(c *gin.Context) {
		seen, _ = GetRefreshToken(c)
		c.Status(http.StatusOK)
	})

	rr := serve(router, http.MethodPost, "/refresh", "Bearer refresh-token")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if validator.validateFn != "refresh" || seen == nil || seen.JTI != "refresh-1" {
		t.Fatalf("refresh claims not propagated: %+v", seen)
	}
}

func TestRequireFresh(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, fresh := range []bool{true, false} {
		validator := &fakeValidator{access: &domain.AccessToken{
			JTI:     "jti",
			Subject: domain.AccessSubject{UserID: "user-1"},
			Fresh:   fresh,
		}}
		router := gin.New()
		router.POST("/logout", RequireAuth(validator), RequireFresh(), func(c *gin.Context) { c.Status(http.StatusOK) })

		rr := serve(router, http.MethodPost, "/logout", "Bearer t")
		want := http.StatusOK
		if !fresh {
			want = http.StatusUnauthorized
		}
		if rr.Code != want {
			t.Fatalf("fresh=%v: expected %d, got %d", fresh, want, rr.Code)
		}
	}
}

func TestRequireFreshWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/logout", RequireFresh(), func(c *gin.Context) { c.Status(http.StatusOK) })

	if rr := serve(router, http.MethodPost, "/logout", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		roles  []string
		status int
	}{
		{roles: []string{"user", "admin"}, status: http.StatusOK},
		{roles: []string{"user"}, status: http.StatusForbidden},
		{roles: nil, status: http.StatusForbidden},
	}

	for _, tc := range cases {
		validator := &fakeValidator{access: &domain.AccessToken{
			JTI:     "jti",
			Subject: domain.AccessSubject{UserID: "user-1", UserRoles: tc.roles},
			Fresh:   true,
		}}
		router := gin.New()
		router.GET("/roles", RequireAuth(validator), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

		if rr := serve(router, http.MethodGet, "/roles", "Bearer t"); rr.Code != tc.status {
			t.Fatalf("roles %v: expected %d, got %d", tc.roles, tc.status, rr.Code)
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name          string
		authorization string
		validator     *fakeValidator
		status        int
		principal     string
	}{
		{name: "anonymous", validator: &fakeValidator{}, status: http.StatusOK},
		{
			name:          "fresh token",
			authorization: "Bearer t",
			validator:     &fakeValidator{access: &domain.AccessToken{JTI: "a1", Fresh: true, Subject: domain.AccessSubject{UserID: "u1"}}},
			status:        http.StatusOK,
			principal:     "u1",
		},
		{
			name:          "stale token",
			authorization: "Bearer t",
			validator:     &fakeValidator{access: &domain.AccessToken{JTI: "a2", Subject: domain.AccessSubject{UserID: "u1"}}},
			status:        http.StatusUnauthorized,
		},
		{name: "revoked token", authorization: "Bearer t", validator: &fakeValidator{err: domain.ErrTokenRevoked}, status: http.StatusUnauthorized},
		{name: "bad scheme", authorization: "Basic abc", validator: &fakeValidator{}, status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var principal string
			router := gin.New()
			router.GET("/permissions", OptionalAuth(tc.validator), func(c *gin.Context) {
				principal, _ = GetAuthenticatedUserID(c)
				c.Status(http.StatusOK)
			})

			if rr := serve(router, http.MethodGet, "/permissions", tc.authorization); rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if principal != tc.principal {
				t.Fatalf("expected principal %q, got %q", tc.principal, principal)
			}
		})
	}
}
