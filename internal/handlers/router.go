package handlers

import (
	"net/http"

	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	"github.com/Varun5711/talentlens/internal/middleware"
)

type RouterConfig struct {
	Auth          *AuthHandler
	Guard         *middleware.AuthMiddleware
	Health        *HealthHandler
	Metrics       *metrics.Metrics
	AuthLimiter   middleware.Limiter
	GlobalLimiter middleware.Limiter
	CORSOrigins   []string
	TrustProxy    bool
	MaxBodyBytes  int64
	Log           *logger.Logger
}

func limit(l middleware.Limiter) middleware.Middleware {
	if l == nil {
		return nil
	}
	return l.Middleware
}

// NewRouter wires every route with its ordered list of checks. Register and
// login use the strict auth limiter in place of the global one.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authLimit := limit(cfg.AuthLimiter)
	globalLimit := limit(cfg.GlobalLimiter)
	access := cfg.Guard.RequireAccess
	refresh := cfg.Guard.RequireRefresh

	mux.Handle("POST /auth/register", middleware.Chain(http.HandlerFunc(cfg.Auth.Register), authLimit))
	mux.Handle("POST /auth/login", middleware.Chain(http.HandlerFunc(cfg.Auth.Login), authLimit))
	mux.Handle("POST /auth/logout", middleware.Chain(http.HandlerFunc(cfg.Auth.Logout), globalLimit, access))
	mux.Handle("POST /auth/refresh", middleware.Chain(http.HandlerFunc(cfg.Auth.Refresh), globalLimit, refresh))
	mux.Handle("GET /auth/me", middleware.Chain(http.HandlerFunc(cfg.Auth.Me), globalLimit, access))
	mux.Handle("POST /auth/profile", middleware.Chain(http.HandlerFunc(cfg.Auth.UpdateProfile), globalLimit, access))

	if cfg.Health != nil {
		mux.Handle("GET /health", middleware.Chain(http.HandlerFunc(cfg.Health.Health), globalLimit))
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "Route not found")
	})

	log := cfg.Log
	if log == nil {
		log = logger.New("http")
	}

	return middleware.Chain(mux,
		middleware.ResolveClientIP(cfg.TrustProxy),
		middleware.Recovery(log),
		middleware.RequestLogger(log, cfg.Metrics),
		middleware.CORS(cfg.CORSOrigins),
		middleware.MaxBodyBytes(cfg.MaxBodyBytes),
	)
}
