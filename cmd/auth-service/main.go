package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Varun5711/talentlens/internal/audit"
	"github.com/Varun5711/talentlens/internal/auth"
	"github.com/Varun5711/talentlens/internal/config"
	"github.com/Varun5711/talentlens/internal/database"
	"github.com/Varun5711/talentlens/internal/handlers"
	"github.com/Varun5711/talentlens/internal/lock"
	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	"github.com/Varun5711/talentlens/internal/middleware"
	"github.com/Varun5711/talentlens/internal/redis"
	"github.com/Varun5711/talentlens/internal/service"
	"github.com/Varun5711/talentlens/internal/storage"
)

const migrationLockKey = "lock:auth-service:migrations"

func main() {
	log := logger.New("auth-service")
	log.SetStdLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}

	if cfg.UsesDefaultSecrets() {
		if cfg.App.IsProduction() {
			log.Fatal("JWT_SECRET and JWT_REFRESH_SECRET must be set in production")
		}
		log.Warn("JWT_SECRET/JWT_REFRESH_SECRET not set, using development defaults")
	}

	m := metrics.New()
	health := handlers.NewHealthHandler()

	// Redis is optional: without it audit events are dropped and rate limits
	// are enforced per instance.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, falling back to local rate limiting: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			health.Register("redis", redisClient.Ping)
		}
	}

	store, closeStore := openStore(ctx, cfg, redisClient, health, log)
	defer closeStore()

	issuer := auth.NewTokenIssuer(
		auth.NewJWTManager(cfg.JWT.AccessSecret, cfg.JWT.AccessTTL),
		auth.NewJWTManager(cfg.JWT.RefreshSecret, cfg.JWT.RefreshTTL),
	)

	var (
		publisher     audit.Publisher = audit.NopPublisher{}
		authLimiter   middleware.Limiter
		globalLimiter middleware.Limiter
	)
	if redisClient != nil {
		publisher = audit.NewStreamPublisher(redisClient.Raw(), cfg.Audit.StreamName)
		authLimiter = middleware.NewRateLimiter(redisClient.Raw(), "auth", cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow, m)
		globalLimiter = middleware.NewRateLimiter(redisClient.Raw(), "global", cfg.RateLimit.Requests, cfg.RateLimit.Window, m)
	} else {
		localAuth := middleware.NewLocalRateLimiter("auth", cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow, m)
		localGlobal := middleware.NewLocalRateLimiter("global", cfg.RateLimit.Requests, cfg.RateLimit.Window, m)
		go localAuth.Cleanup(ctx)
		go localGlobal.Cleanup(ctx)
		authLimiter, globalLimiter = localAuth, localGlobal
	}

	sessions := service.NewSessionService(store, issuer, publisher, m)
	authHandler := handlers.NewAuthHandler(sessions, handlers.CookieConfig{
		Secure: cfg.App.IsProduction(),
		MaxAge: cfg.JWT.RefreshTTL,
	})

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:          authHandler,
		Guard:         middleware.NewAuthMiddleware(issuer),
		Health:        health,
		Metrics:       m,
		AuthLimiter:   authLimiter,
		GlobalLimiter: globalLimiter,
		CORSOrigins:   cfg.CORS.AllowedOrigins,
		TrustProxy:    cfg.App.TrustProxy,
		MaxBodyBytes:  cfg.App.MaxBodyBytes,
		Log:           logger.New("http"),
	})

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          log.StdLogger(),
	}

	go func() {
		log.Info("Auth service listening on port %s (env=%s, storage=%s)", cfg.App.Port, cfg.App.Env, cfg.App.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down auth service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownPeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed: %v", err)
	}
	if redisClient != nil {
		log.Debug("Redis pool at shutdown: %+v", redisClient.Stats())
	}
	log.Info("Auth service stopped")
}

// openStore builds the credential store for the configured driver and
// returns its cleanup function.
func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, health *handlers.HealthHandler, log *logger.Logger) (storage.UserStore, func()) {
	switch cfg.App.StorageDriver {
	case config.StorageDriverMemory:
		if cfg.App.IsProduction() {
			log.Fatal("STORAGE_DRIVER=memory is not allowed in production")
		}
		log.Warn("Using in-memory user store; all accounts are lost on restart")
		return storage.NewMemoryUserStore(), func() {}

	case config.StorageDriverPostgres:
		db, err := database.NewDBManager(ctx, database.Config{
			PrimaryDSN:      cfg.Database.PrimaryDSN,
			ReplicaDSNs:     cfg.Database.ReplicaDSNs,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			log.Fatal("Failed to connect to database: %v", err)
		}

		if err := migrate(ctx, db, redisClient); err != nil {
			db.Close()
			log.Fatal("Failed to migrate database: %v", err)
		}

		health.Register("postgres", db.Ping)
		return storage.NewPostgresUserStore(db), func() {
			log.Debug("Database pools at shutdown: %v", db.Stats())
			db.Close()
		}

	default:
		log.Fatal("Unknown STORAGE_DRIVER %q", cfg.App.StorageDriver)
		return nil, nil
	}
}

// migrate runs migrations, serialised across replicas when Redis is present.
func migrate(ctx context.Context, db *database.DBManager, redisClient *redis.Client) error {
	if redisClient == nil {
		return db.Migrate(ctx)
	}

	l := lock.NewDistributedLock(redisClient.Raw(), migrationLockKey, 2*time.Minute)
	return l.WithLock(ctx, time.Minute, db.Migrate)
}
