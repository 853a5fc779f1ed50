package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/auth-session-service/internal/infra/config"
	"github.com/arklim/auth-session-service/internal/transport/http/handlers"
	"github.com/arklim/auth-session-service/internal/transport/http/middleware"
)

// Rate limit scopes. Every limited route is keyed scope:operation[:user_id].
const (
	scopeAuth    = "auth"
	scopeAccount = "account"
	scopeRoles   = "roles"
	scopeOAuth   = "oauth"

	scopePermissions = "permissions"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Sessions    handlers.SessionService
	Registrar   handlers.Registrar
	Accounts    handlers.AccountManager
	Roles       handlers.RoleManager
	Permissions handlers.PermissionResolver
	OAuth       handlers.OAuthFlow
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Validator   middleware.TokenValidator
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config == nil {
		deps.Config = &config.AppConfig{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	if len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api/v1")
	{
		limit := deps.RateLimiter.RateLimit
		requireAuth := middleware.RequireAuth(deps.Validator)
		requireFresh := middleware.RequireFresh()
		requireAdmin := middleware.RequireRole(adminRole(deps.Config))

		// Every route lists its chain explicitly: authentication, freshness, role, admission, handler.
		if deps.Services.Sessions != nil {
			authHandler := handlers.NewAuthHandler(deps.Services.Sessions, deps.Services.Registrar)
			authGroup := api.Group("/auth")
			if deps.Services.Registrar != nil {
				authGroup.POST("/signup", limit(scopeAuth, "signup"), authHandler.SignUp)
			}
			authGroup.POST("/login", limit(scopeAuth, "login"), authHandler.Login)
			authGroup.POST("/refresh", middleware.RequireRefresh(deps.Validator), limit(scopeAuth, "refresh"), authHandler.Refresh)
			authGroup.POST("/logout", requireAuth, requireFresh, limit(scopeAuth, "logout"), authHandler.Logout)
			authGroup.POST("/logout-devices", requireAuth, requireFresh, limit(scopeAuth, "logout_devices"), authHandler.LogoutDevices)
		}

		if deps.Services.Accounts != nil {
			accountHandler := handlers.NewAccountHandler(deps.Services.Accounts)
			accountGroup := api.Group("/account")
			accountGroup.GET("/history", requireAuth, requireFresh, limit(scopeAccount, "history"), accountHandler.History)
			accountGroup.PATCH("/auth-data", requireAuth, requireFresh, limit(scopeAccount, "auth_data"), accountHandler.UpdateAuthData)
		}

		if deps.Services.Roles != nil {
			roleHandler := handlers.NewRoleHandler(deps.Services.Roles, adminRole(deps.Config))

			rolesGroup := api.Group("/roles")
			rolesGroup.GET("", requireAuth, requireFresh, requireAdmin, limit(scopeRoles, "list"), roleHandler.ListRoles)
			rolesGroup.POST("", requireAuth, requireFresh, requireAdmin, limit(scopeRoles, "create"), roleHandler.CreateRole)
			rolesGroup.GET("/:id", requireAuth, requireFresh, requireAdmin, limit(scopeRoles, "get"), roleHandler.GetRole)
			rolesGroup.PATCH("/:id", requireAuth, requireFresh, requireAdmin, limit(scopeRoles, "update"), roleHandler.UpdateRole)
			rolesGroup.DELETE("/:id", requireAuth, requireFresh, requireAdmin, limit(scopeRoles, "delete"), roleHandler.DeleteRole)

			userRoles := api.Group("/users/:id/roles")
			userRoles.GET("", requireAuth, requireFresh, limit(scopeRoles, "user_list"), roleHandler.ListUserRoles)
			userRoles.POST("", requireAuth, requireFresh, requireAdmin, limit(scopeRoles, "assign"), roleHandler.AssignRoles)
			userRoles.DELETE("", requireAuth, requireFresh, requireAdmin, limit(scopeRoles, "remove"), roleHandler.RemoveRoles)
		}

		if deps.Services.Permissions != nil {
			permissionHandler := handlers.NewPermissionHandler(deps.Services.Permissions)

			// An access token is optional; anonymous callers resolve to the anonymous role.
			api.GET("/permissions", middleware.OptionalAuth(deps.Validator), limit(scopePermissions, "get"), permissionHandler.UserPermissions)
			api.GET("/permissions/scopes", limit(scopePermissions, "scopes"), permissionHandler.ListScopes)

			rolePermissions := api.Group("/roles/:id/permissions")
			rolePermissions.GET("", requireAuth, requireFresh, requireAdmin, limit(scopePermissions, "role_list"), permissionHandler.RolePermissions)
			rolePermissions.PUT("/:scope", requireAuth, requireFresh, requireAdmin, limit(scopePermissions, "grant"), permissionHandler.GrantPermission)
		}

		if deps.Services.OAuth != nil {
			oauthHandler := handlers.NewOAuthHandler(deps.Services.OAuth)
			oauthGroup := api.Group("/oauth")
			oauthGroup.GET("/providers", oauthHandler.Providers)
			oauthGroup.GET("/:provider/login", limit(scopeOAuth, "login"), oauthHandler.Login)
			oauthGroup.GET("/:provider/callback", limit(scopeOAuth, "callback"), oauthHandler.Callback)
		}
	}

	handlers.RegisterSwagger(r)

	return r
}

func adminRole(cfg *config.AppConfig) string {
	if cfg.JWT.AdminRole != "" {
		return cfg.JWT.AdminRole
	}
	return "admin"
}
