package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"sitemap-backend/application/commands/bus"
	"sitemap-backend/application/ports"
	querybus "sitemap-backend/application/queries/bus"
	"sitemap-backend/interfaces/http/rest/handlers"
	"sitemap-backend/interfaces/http/rest/middleware"
	"sitemap-backend/pkg/auth"
	"sitemap-backend/pkg/common"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/pkg/observability"
)

// RouterConfig switches the optional parts of the HTTP surface
type RouterConfig struct {
	EnableCORS      bool
	AllowedOrigins  []string
	RateLimit       int
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus   *bus.CommandBus
	queryBus     *querybus.QueryBus
	errorHandler *pkgerrors.ErrorHandler
	metrics      *observability.Collector
	jwt          *auth.JWTValidator
	limiter      auth.RateLimiter
	checks       map[string]ports.HealthChecker
	config       RouterConfig
	logger       *zap.Logger
}

// NewRouter creates a new router instance. jwt and limiter may be nil to
// turn authentication and rate limiting off.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	metrics *observability.Collector,
	jwt *auth.JWTValidator,
	limiter auth.RateLimiter,
	checks map[string]ports.HealthChecker,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus:   commandBus,
		queryBus:     queryBus,
		errorHandler: errorHandler,
		metrics:      metrics,
		jwt:          jwt,
		limiter:      limiter,
		checks:       checks,
		config:       config,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))
	if rt.config.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(rt.config.RequestTimeout))
	}

	if rt.config.EnableCORS {
		origins := rt.config.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler.HandleStatus(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if rt.jwt != nil {
			r.Use(middleware.Authenticate(rt.jwt, rt.errorHandler))
		}
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, rt.config.RateLimit, rt.config.RateLimitWindow.String(), rt.errorHandler, rt.logger))
		}

		handlers.NewSessionHandler(rt.commandBus, rt.queryBus, rt.errorHandler, rt.logger).Routes(r)
	})

	return router
}

// healthCheck handles liveness requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck pings every registered dependency
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(rt.checks))
	for name, check := range rt.checks {
		if err := check.Ping(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	common.RespondJSON(w, status, map[string]interface{}{"status": state, "checks": results})
}
