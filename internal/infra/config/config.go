package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "AUTH"

type AppConfig struct {
	App        AppSettings        `mapstructure:"app"`
	GRPC       GRPCSettings       `mapstructure:"grpc"`
	Postgres   PostgresSettings   `mapstructure:"postgres"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Kafka      KafkaSettings      `mapstructure:"kafka"`
	JWT        JWTSettings        `mapstructure:"jwt"`
	Telemetry  TelemetrySettings  `mapstructure:"telemetry"`
	RateLimit  RateLimitSettings  `mapstructure:"rate_limit"`
	Argon2     Argon2Settings     `mapstructure:"argon2"`
	Password   PasswordSettings   `mapstructure:"password"`
	Revocation RevocationSettings `mapstructure:"revocation"`
	OAuth      OAuthSettings      `mapstructure:"oauth"`
	CORS       CORSSettings       `mapstructure:"cors"`
}

type AppSettings struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
}

type GRPCSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection and the prefixes of the keyspaces sharing it.
type RedisSettings struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	DB               int           `mapstructure:"db"`
	Password         string        `mapstructure:"password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	RevocationPrefix string        `mapstructure:"revocation_prefix"`
	RefreshPrefix    string        `mapstructure:"refresh_prefix"`
	RateLimitPrefix  string        `mapstructure:"rate_limit_prefix"`
	OAuthPrefix      string        `mapstructure:"oauth_prefix"`
}

// KafkaSettings configures the event producer. An empty broker list selects the logging publisher.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type JWTSettings struct {
	SecretKey       string        `mapstructure:"secret_key"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	AdminRole       string        `mapstructure:"admin_role"`
	DefaultRole     string        `mapstructure:"default_role"`
	AnonymousRole   string        `mapstructure:"anonymous_role"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures the GCRA admission controller shared by every rate-limited route.
type RateLimitSettings struct {
	Limit    int           `mapstructure:"limit"`
	Period   time.Duration `mapstructure:"period"`
	StateTTL time.Duration `mapstructure:"state_ttl"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type PasswordSettings struct {
	MinStrengthScore int `mapstructure:"min_strength_score"`
}

// RevocationSettings tunes the in-process cache of positive revocation lookups. A zero size disables it.
type RevocationSettings struct {
	LocalCacheSize int           `mapstructure:"local_cache_size"`
	LocalCacheTTL  time.Duration `mapstructure:"local_cache_ttl"`
}

type OAuthSettings struct {
	RedirectURL string                `mapstructure:"redirect_url"`
	StateTTL    time.Duration         `mapstructure:"state_ttl"`
	RetryMax    int                   `mapstructure:"retry_max"`
	Timeout     time.Duration         `mapstructure:"timeout"`
	Yandex      OAuthProviderSettings `mapstructure:"yandex"`
	VK          OAuthProviderSettings `mapstructure:"vk"`
}

// OAuthProviderSettings holds client credentials; a provider without a client id is disabled.
type OAuthProviderSettings struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether the provider has credentials.
func (p OAuthProviderSettings) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.shutdown_timeout",
		"app.run_migrations",
		"grpc.host",
		"grpc.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.dial_timeout",
		"redis.read_timeout",
		"redis.write_timeout",
		"redis.revocation_prefix",
		"redis.refresh_prefix",
		"redis.rate_limit_prefix",
		"redis.oauth_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret_key",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"jwt.admin_role",
		"jwt.default_role",
		"jwt.anonymous_role",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.limit",
		"rate_limit.period",
		"rate_limit.state_ttl",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"password.min_strength_score",
		"revocation.local_cache_size",
		"revocation.local_cache_ttl",
		"oauth.redirect_url",
		"oauth.state_ttl",
		"oauth.retry_max",
		"oauth.timeout",
		"oauth.yandex.client_id",
		"oauth.yandex.client_secret",
		"oauth.vk.client_id",
		"oauth.vk.client_secret",
		"cors.allowed_origins",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.SecretKey) == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("jwt.access_token_ttl must be positive, got %s", c.JWT.AccessTokenTTL))
	}
	if c.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("jwt.refresh_token_ttl must be positive, got %s", c.JWT.RefreshTokenTTL))
	}
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.limit must be positive, got %d", c.RateLimit.Limit))
	}
	if c.RateLimit.Period < time.Millisecond {
		errs = append(errs, fmt.Errorf("rate_limit.period must be at least 1ms, got %s", c.RateLimit.Period))
	}
	if c.RateLimit.StateTTL < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.state_ttl must not be negative, got %s", c.RateLimit.StateTTL))
	}

	prefixes := map[string]string{}
	for name, prefix := range map[string]string{
		"redis.revocation_prefix": c.Redis.RevocationPrefix,
		"redis.refresh_prefix":    c.Redis.RefreshPrefix,
		"redis.rate_limit_prefix": c.Redis.RateLimitPrefix,
		"redis.oauth_prefix":      c.Redis.OAuthPrefix,
	} {
		if strings.TrimSpace(prefix) == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			continue
		}
		if other, dup := prefixes[prefix]; dup {
			errs = append(errs, fmt.Errorf("%s and %s share prefix %q", name, other, prefix))
		}
		prefixes[prefix] = name
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auth-session-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_timeout", "15s")
	v.SetDefault("app.run_migrations", true)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "500ms")
	v.SetDefault("redis.revocation_prefix", "auth:revoked")
	v.SetDefault("redis.refresh_prefix", "auth:refresh")
	v.SetDefault("redis.rate_limit_prefix", "auth:ratelimit")
	v.SetDefault("redis.oauth_prefix", "auth:oauth")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.secret_key", "")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "720h")
	v.SetDefault("jwt.admin_role", "admin")
	v.SetDefault("jwt.default_role", "user")
	v.SetDefault("jwt.anonymous_role", "incognito")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "auth-session-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.limit", 20)
	v.SetDefault("rate_limit.period", "1m")
	v.SetDefault("rate_limit.state_ttl", "0s")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_strength_score", 2)

	v.SetDefault("revocation.local_cache_size", 10000)
	v.SetDefault("revocation.local_cache_ttl", "1m")

	v.SetDefault("oauth.redirect_url", "http://localhost:8080/api/v1/oauth")
	v.SetDefault("oauth.state_ttl", "10m")
	v.SetDefault("oauth.retry_max", 3)
	v.SetDefault("oauth.timeout", "5s")

	v.SetDefault("cors.allowed_origins", []string{"*"})
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
