package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadReadsPrefixedEnvironment(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET_KEY", "test-secret")
	t.Setenv("AUTH_JWT_ACCESS_TOKEN_TTL", "5m")
	t.Setenv("AUTH_RATE_LIMIT_LIMIT", "7")
	t.Setenv("AUTH_RATE_LIMIT_STATE_TTL", "2m")
	t.Setenv("AUTH_OAUTH_YANDEX_CLIENT_ID", "ya-client")
	t.Setenv("AUTH_OAUTH_YANDEX_CLIENT_SECRET", "ya-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.JWT.SecretKey != "test-secret" {
		t.Fatalf("expected secret from env, got %q", cfg.JWT.SecretKey)
	}
	if cfg.JWT.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("expected access ttl 5m, got %s", cfg.JWT.AccessTokenTTL)
	}
	if cfg.RateLimit.Limit != 7 || cfg.RateLimit.StateTTL != 2*time.Minute {
		t.Fatalf("unexpected rate limit settings: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Period != time.Minute {
		t.Fatalf("expected default period 1m, got %s", cfg.RateLimit.Period)
	}
	if !cfg.OAuth.Yandex.Enabled() || cfg.OAuth.VK.Enabled() {
		t.Fatalf("expected only yandex to be enabled")
	}
	if cfg.JWT.AdminRole != "admin" || cfg.JWT.DefaultRole != "user" || cfg.JWT.AnonymousRole != "incognito" {
		t.Fatalf("unexpected role defaults: %+v", cfg.JWT)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET_KEY", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "jwt.secret_key is required") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := AppConfig{
		JWT:       JWTSettings{SecretKey: "s", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour},
		RateLimit: RateLimitSettings{Limit: 5, Period: time.Minute},
		Redis: RedisSettings{
			RevocationPrefix: "a",
			RefreshPrefix:    "b",
			RateLimitPrefix:  "c",
			OAuthPrefix:      "d",
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(*AppConfig){
		"non-positive access ttl": func(c *AppConfig) { c.JWT.AccessTokenTTL = 0 },
		"negative refresh ttl":    func(c *AppConfig) { c.JWT.RefreshTokenTTL = -time.Second },
		"zero limit":              func(c *AppConfig) { c.RateLimit.Limit = 0 },
		"sub-millisecond period":  func(c *AppConfig) { c.RateLimit.Period = time.Microsecond },
		"shared prefix":           func(c *AppConfig) { c.Redis.OAuthPrefix = "a" },
		"empty prefix":            func(c *AppConfig) { c.Redis.RefreshPrefix = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
