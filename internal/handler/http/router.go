package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/health"
	"github.com/AGtheOG/ikarus3d-advisorBot/pkg/middleware"
)

// RouterConfig holds the settings of the HTTP surface. AdminAllowedCIDRs
// guards pprof and the recent query log.
type RouterConfig struct {
	ServiceName       string
	AllowedOrigins    []string
	AdminAllowedCIDRs []string
	RequestTimeout    time.Duration
	RecommendLimit    middleware.RateLimitConfig
}

// NewRouter creates a chi router with all advisor routes registered.
func NewRouter(
	cfg RouterConfig,
	advisor *AdvisorHandler,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.AllowedOrigins
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cors))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.AdminAllowedCIDRs, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", advisor.Status)
		r.With(middleware.CacheControl("no-store")).Get("/analytics", advisor.Analytics)
		r.With(middleware.RateLimit("/api/recommend", cfg.RecommendLimit, logger)).Post("/recommend", advisor.Recommend)
		r.With(middleware.IPAllowlist(cfg.AdminAllowedCIDRs, logger)).Get("/recommendations/recent", advisor.Recent)
	})

	return r
}
