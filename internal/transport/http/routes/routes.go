package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
	"github.com/ahmedMgouda/avancira-auth/internal/provider"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/handlers"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/middleware"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	Sessions *usecase.SessionService
	OIDC     *usecase.OIDCService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	JWTManager  *security.JWTManager
	Providers   *provider.Registry
	Revocations port.SessionRevocationStore
	Metrics     *middleware.HTTPMetrics
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
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	r.Use(middleware.ResolveClientInfo(deps.Config))

	requireSession := middleware.RequireSession(deps.Services.Auth, deps.Services.Sessions, deps.Revocations, deps.Logger)
	optionalSession := middleware.OptionalSession(deps.Services.Auth, deps.Services.Sessions, deps.Revocations)

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

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwksHandler := handlers.NewJWKSHandler(deps.JWTManager)
	r.GET("/.well-known/jwks.json", jwksHandler.Keys)

	authHandler := handlers.NewAuthHandler(deps.Config, deps.Services.Auth, deps.Services.OIDC)

	authGroup := r.Group("/api/auth")
	if mw := loginRateLimit(deps); mw != nil {
		authHandler.RegisterRoutes(authGroup, mw)
	} else {
		authHandler.RegisterRoutes(authGroup)
	}

	sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions)
	sessionGroup := r.Group("/api/auth/sessions")
	sessionGroup.Use(requireSession)
	sessionHandler.RegisterRoutes(sessionGroup)

	externalHandler := handlers.NewExternalHandler(deps.Config, authHandler, deps.Services.Auth, deps.Providers)
	accountGroup := r.Group("/account")
	externalHandler.RegisterRoutes(accountGroup, middleware.RequireRequestedWith())

	connectHandler := handlers.NewConnectHandler(deps.Config, deps.Services.Auth, deps.Services.OIDC)
	connectGroup := r.Group("/connect")
	if mw := tokenRateLimit(deps); mw != nil {
		connectGroup.Use(mwForTokenOnly(mw))
	}
	connectHandler.RegisterRoutes(connectGroup, optionalSession, requireSession)

	return r
}

func loginRateLimit(deps Dependencies) gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
}

func tokenRateLimit(deps Dependencies) gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.TokenMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       "connect_token_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
}

// mwForTokenOnly narrows a group middleware to the token endpoint so the
// authorize redirect and userinfo reads are not charged against the limit.
func mwForTokenOnly(mw gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "/connect/token" {
			mw(c)
			return
		}
		c.Next()
	}
}
