package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/auth-session-service/internal/core/port"
	"github.com/arklim/auth-session-service/internal/infra/config"
	"github.com/arklim/auth-session-service/internal/infra/database"
	kafkainfra "github.com/arklim/auth-session-service/internal/infra/kafka"
	"github.com/arklim/auth-session-service/internal/infra/logger"
	oauthinfra "github.com/arklim/auth-session-service/internal/infra/oauth"
	redisinfra "github.com/arklim/auth-session-service/internal/infra/redis"
	"github.com/arklim/auth-session-service/internal/infra/security"
	"github.com/arklim/auth-session-service/internal/infra/telemetry"
	"github.com/arklim/auth-session-service/internal/repository/keyvalue"
	postgresrepo "github.com/arklim/auth-session-service/internal/repository/postgres"
	redisrepo "github.com/arklim/auth-session-service/internal/repository/redis"
	transportgrpc "github.com/arklim/auth-session-service/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/auth-session-service/internal/transport/grpc/interceptors"
	"github.com/arklim/auth-session-service/internal/transport/http/middleware"
	"github.com/arklim/auth-session-service/internal/transport/http/routes"
	"github.com/arklim/auth-session-service/internal/usecase"
)

const defaultShutdownTimeout = 10 * time.Second

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

// New builds every store handle once and injects it into the services and transports.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log, grpcAddr: fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.App.RunMigrations {
		if err := database.ApplyMigrations(a.pool, log); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics, err := telemetry.NewAuthMetrics(registry, "auth")
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init grpc metrics: %w", err)
	}

	// Four independent keyspaces share one connection.
	client := a.redis.Client()
	revocations := keyvalue.NewRevocationRegistry(
		redisrepo.NewStore(client, cfg.Redis.RevocationPrefix),
		keyvalue.WithLocalCache(cfg.Revocation.LocalCacheSize, cfg.Revocation.LocalCacheTTL),
	)
	refreshSessions := keyvalue.NewRefreshSessionRegistry(redisrepo.NewStore(client, cfg.Redis.RefreshPrefix), cfg.JWT.RefreshTokenTTL)
	rateLimitStore := redisrepo.NewStore(client, cfg.Redis.RateLimitPrefix)
	oauthStates := keyvalue.NewOAuthStateStore(redisrepo.NewStore(client, cfg.Redis.OAuthPrefix))

	repos := postgresrepo.NewRepositories(a.pool)
	events := a.eventPublisher()

	codec, err := security.NewTokenCodec(cfg.JWT.SecretKey, cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}
	hasher, err := security.NewPasswordHasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	sessions, err := usecase.NewSessionManager(usecase.SessionConfig{
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
		AdminRole:  cfg.JWT.AdminRole,
	}, usecase.SessionDependencies{
		Users:       repos.Users,
		Roles:       repos.Roles,
		History:     repos.History,
		Sessions:    refreshSessions,
		Revocations: revocations,
		Codec:       codec,
		Hasher:      hasher,
		Devices:     security.DeviceClassifier{},
		Events:      events,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init session manager: %w", err)
	}
	sessions.WithMetrics(authMetrics)

	accounts := usecase.NewAccountService(repos.Users, repos.Roles, repos.History, hasher,
		security.DefaultPasswordPolicy(cfg.Password.MinStrengthScore), events, cfg.JWT.DefaultRole, log)
	roles := usecase.NewRoleService(repos.Roles, repos.Users, events, log)
	permissions := usecase.NewPermissionService(repos.Permissions, repos.Roles, cfg.JWT.AnonymousRole, log)

	oauthClient := oauthinfra.NewHTTPClient(cfg.OAuth, log)
	oauthService := usecase.NewOAuthService(oauthinfra.NewProviders(cfg.OAuth, oauthClient), oauthStates,
		repos.Socials, repos.Users, accounts, sessions, cfg.OAuth.StateTTL, log).WithMetrics(authMetrics)

	admission, err := usecase.NewAdmissionController(rateLimitStore, usecase.AdmissionConfig{
		Limit:    cfg.RateLimit.Limit,
		Period:   cfg.RateLimit.Period,
		StateTTL: cfg.RateLimit.StateTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init admission controller: %w", err)
	}
	admission.WithMetrics(authMetrics)

	a.grpcServer, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Validator: sessions,
		Metrics:   grpcMetrics,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("init grpc server: %w", err)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(admission, log),
		Metrics:     httpMetrics,
		Gatherer:    registry,
		Validator:   sessions,
		Database:    a.pool,
		Cache:       a.redis,
		Services: routes.ServiceSet{
			Sessions:    sessions,
			Registrar:   accounts,
			Accounts:    accounts,
			Roles:       roles,
			Permissions: permissions,
			OAuth:       oauthService,
		},
	})

	return a, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// release closes resources in reverse order of acquisition.
func (a *Application) release(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to shut down tracer provider", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *Application) shutdownTimeout() time.Duration {
	if a.cfg.App.ShutdownTimeout > 0 {
		return a.cfg.App.ShutdownTimeout
	}
	return defaultShutdownTimeout
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		a.release(releaseCtx)
	}()

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil && a.grpcAddr != "" {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("gRPC server panicked", zap.Any("panic", r))
					grpcErrCh <- fmt.Errorf("grpc server panicked: %v", r)
				}
			}()
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth session API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-serverErrCh:
	case runErr = <-grpcErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if a.grpcServer != nil {
		a.grpcServer.Drain()
		a.grpcServer.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}
	return runErr
}
