package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ahmedMgouda/avancira-auth/internal/core/port"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/config"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/database"
	kafkainfra "github.com/ahmedMgouda/avancira-auth/internal/infra/kafka"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/logger"
	redisinfra "github.com/ahmedMgouda/avancira-auth/internal/infra/redis"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/security"
	"github.com/ahmedMgouda/avancira-auth/internal/infra/telemetry"
	"github.com/ahmedMgouda/avancira-auth/internal/oauth"
	"github.com/ahmedMgouda/avancira-auth/internal/provider"
	postgresrepo "github.com/ahmedMgouda/avancira-auth/internal/repository/postgres"
	redisrepo "github.com/ahmedMgouda/avancira-auth/internal/repository/redis"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/middleware"
	"github.com/ahmedMgouda/avancira-auth/internal/transport/http/routes"
	"github.com/ahmedMgouda/avancira-auth/internal/usecase"
)

// Application bundles the wired server and the resources it must release.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
	tracer *telemetry.TracerProvider
}

// New constructs a fully wired Application from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider)

	hasher, err := security.NewRefreshTokenHasher(cfg.OAuth.RefreshHMACSecret)
	if err != nil {
		return nil, fmt.Errorf("init refresh token hasher: %w", err)
	}

	passwords := security.NewPasswordHasher(security.Argon2Params{
		Time:       cfg.Argon2.Iterations,
		MemoryKiB:  cfg.Argon2.Memory,
		Threads:    cfg.Argon2.Parallelism,
		SaltLength: cfg.Argon2.SaltLength,
		KeyLength:  cfg.Argon2.KeyLength,
	})

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	revocationStore := redisrepo.NewSessionRevocationStore(redisClient.Client())
	codeStore := redisrepo.NewAuthorizationCodeStore(redisClient.Client())

	var eventPublisher port.EventPublisher
	var kafkaProducer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	// Revocation marks only need to outlive the longest access token.
	revocationTTL := cfg.JWT.AccessTokenTTL
	if revocationTTL <= 0 {
		revocationTTL = 15 * time.Minute
	}

	policy := oauth.DefaultDestinationPolicy()
	providers := providerRegistry(cfg)

	sessionService := usecase.NewSessionService(repos.Sessions, repos.Tokens, revocationStore, eventPublisher, metrics, log, revocationTTL)
	authService := usecase.NewAuthService(cfg, repos.Users, repos.Tokens, sessionService, providers, passwords, hasher, jwtManager, keyProvider.SigningKID(), policy, eventPublisher, metrics, log)
	oidcService := usecase.NewOIDCService(cfg, repos.Users, codeStore, authService, policy, log)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "auth:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		JWTManager:  jwtManager,
		Providers:   providers,
		Revocations: revocationStore,
		Metrics:     httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:     authService,
			Sessions: sessionService,
			OIDC:     oidcService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
		tracer: tracer,
	}, nil
}

// providerRegistry builds the validator registry from configuration. A
// provider with empty credentials is simply absent from the registry.
func providerRegistry(cfg *config.AppConfig) *provider.Registry {
	validators := make([]provider.Validator, 0, 2)
	if cfg.Providers.Google.ClientID != "" {
		validators = append(validators, provider.NewGoogleValidator(cfg.Providers.Google.ClientID))
	}
	if cfg.Providers.Facebook.AppID != "" && cfg.Providers.Facebook.AppSecret != "" {
		validators = append(validators, provider.NewFacebookValidator(cfg.Providers.Facebook.AppID, cfg.Providers.Facebook.AppSecret))
	}
	return provider.NewRegistry(validators...)
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth server",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
