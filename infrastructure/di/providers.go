package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sitemap-backend/application/commands/bus"
	"sitemap-backend/application/commands/handlers"
	"sitemap-backend/application/ports"
	querybus "sitemap-backend/application/queries/bus"
	queryhandlers "sitemap-backend/application/queries/handlers"
	"sitemap-backend/application/services"
	domainconfig "sitemap-backend/domain/config"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/infrastructure/config"
	"sitemap-backend/infrastructure/locking"
	"sitemap-backend/infrastructure/messaging"
	"sitemap-backend/infrastructure/persistence/decorators"
	"sitemap-backend/infrastructure/persistence/dynamodb"
	"sitemap-backend/infrastructure/persistence/memory"
	redisstore "sitemap-backend/infrastructure/persistence/redis"
	"sitemap-backend/infrastructure/persistence/sqlite"
	"sitemap-backend/interfaces/http/rest"
	"sitemap-backend/pkg/auth"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/pkg/observability"
)

// HealthChecks names the dependencies probed by the readiness endpoint
type HealthChecks map[string]ports.HealthChecker

// ProvideLogLevel parses the configured level into an adjustable one
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zcfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build(zap.Fields(zap.String("environment", cfg.Environment)))
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = logger.Sync()
	}
	return logger, cleanup, nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("sitemap_editor")
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideRedisClient connects lazily to Redis. It returns nil when no
// component is configured to use it.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func()) {
	if cfg.SessionStore != "redis" && cfg.SaveGuard != "redis" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	return client, func() {
		_ = client.Close()
	}
}

// ProvideNodeStore opens the configured page store and wraps it with
// tracing, metrics and a circuit breaker
func ProvideNodeStore(
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics *observability.Collector,
	logger *zap.Logger,
) (ports.NodeStore, func(), error) {
	var (
		inner   ports.NodeStore
		cleanup = func() {}
	)

	switch cfg.NodeStore {
	case "sqlite":
		store, err := sqlite.NewNodeStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		inner = store
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close sqlite store", zap.Error(err))
			}
		}
	case "dynamodb":
		inner = dynamodb.NewNodeStore(client, cfg.DynamoDBTable, logger)
	default:
		inner = memory.NewNodeStore()
	}

	breaker := decorators.DefaultBreakerConfig("node-store-" + cfg.NodeStore)
	if cfg.BreakerMaxFailures > 0 {
		breaker.MaxFailures = cfg.BreakerMaxFailures
	}
	if cfg.BreakerTimeout > 0 {
		breaker.Timeout = cfg.BreakerTimeout
	}

	store := decorators.NewCircuitBreakerNodeStore(
		decorators.NewInstrumentedNodeStore(inner, cfg.NodeStore, metrics),
		breaker,
		metrics,
		logger,
	)
	logger.Info("Node store ready", zap.String("backend", cfg.NodeStore))
	return store, cleanup, nil
}

// ProvideSessionStore creates the session store
func ProvideSessionStore(cfg *config.Config, client *redis.Client) ports.SessionStore {
	if cfg.SessionStore == "redis" {
		return redisstore.NewSessionStore(client, cfg.SessionTTL)
	}
	return memory.NewSessionStore(cfg.SessionTTL)
}

// ProvideSaveGuard creates the guard that serialises saves of one session
func ProvideSaveGuard(
	cfg *config.Config,
	rdb *redis.Client,
	ddb *awsdynamodb.Client,
	logger *zap.Logger,
) ports.SaveGuard {
	switch cfg.SaveGuard {
	case "redis":
		return locking.NewRedisGuard(rdb, cfg.SaveLeaseTTL, logger)
	case "dynamodb":
		return dynamodb.NewLeaseGuard(ddb, cfg.DynamoDBTable, cfg.SaveLeaseTTL, logger)
	default:
		return locking.NewLocalGuard()
	}
}

// ProvideEventPublisher sends domain events to EventBridge when a bus is
// configured and to the log otherwise
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return messaging.NewLogPublisher(logger)
	}
	return messaging.NewEventBridgePublisher(client, cfg.EventBusName, logger)
}

// ProvideDomainConfig derives the editor policy from the configuration
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return cfg.Domain()
}

// ProvideLayoutEngine creates the layout engine
func ProvideLayoutEngine(dcfg *domainconfig.DomainConfig) *layout.Engine {
	return layout.NewEngine(layout.OptionsFromConfig(dcfg))
}

// ProvideCommandBus creates a command bus with the editor handlers registered
func ProvideCommandBus(editor *services.EditorService, metrics *observability.Collector, logger *zap.Logger) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger.Sugar()),
		bus.MetricsMiddleware(metrics),
	)
	if err := handlers.NewEditorHandlers(editor, logger).Register(commandBus); err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with the editor handlers registered
func ProvideQueryBus(editor *services.EditorService, metrics *observability.Collector) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.MetricsMiddleware(metrics))
	if err := queryhandlers.NewEditorQueryHandlers(editor).Register(queryBus); err != nil {
		return nil, fmt.Errorf("failed to register query handlers: %w", err)
	}
	return queryBus, nil
}

// ProvideErrorHandler creates the HTTP error handler. Debug details are
// only exposed in development.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideJWTValidator returns nil when authentication is disabled
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if !cfg.EnableAuth {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideRateLimiter shares limits through DynamoDB when the pages live
// there and keeps them in process otherwise. A non-positive limit turns
// limiting off.
func ProvideRateLimiter(cfg *config.Config, client *awsdynamodb.Client) auth.RateLimiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	if cfg.NodeStore == "dynamodb" {
		return auth.NewDistributedRateLimiter(client, cfg.DynamoDBTable, cfg.RateLimit, cfg.RateLimitWindow)
	}
	return auth.NewSlidingWindowLimiter(cfg.RateLimit, cfg.RateLimitWindow)
}

// ProvideHealthChecks collects the stores that can be pinged
func ProvideHealthChecks(nodes ports.NodeStore, sessions ports.SessionStore) HealthChecks {
	checks := HealthChecks{}
	if hc, ok := nodes.(ports.HealthChecker); ok {
		checks["node_store"] = hc
	}
	if hc, ok := sessions.(ports.HealthChecker); ok {
		checks["session_store"] = hc
	}
	return checks
}

// ProvideRouterConfig maps the HTTP switches out of the configuration
func ProvideRouterConfig(cfg *config.Config) rest.RouterConfig {
	return rest.RouterConfig{
		EnableCORS:      cfg.EnableCORS,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
		RequestTimeout:  cfg.RequestTimeout,
	}
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	metrics *observability.Collector,
	jwt *auth.JWTValidator,
	limiter auth.RateLimiter,
	checks HealthChecks,
	routerCfg rest.RouterConfig,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(commandBus, queryBus, errorHandler, metrics, jwt, limiter, checks, routerCfg, logger)
}
