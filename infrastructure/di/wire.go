//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"sitemap-backend/application/services"
	"sitemap-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideMetrics,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideRedisClient,
	ProvideNodeStore,
	ProvideSessionStore,
	ProvideSaveGuard,
	ProvideEventPublisher,
	ProvideDomainConfig,
	ProvideLayoutEngine,
	services.NewEditorService,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideErrorHandler,
	ProvideJWTValidator,
	ProvideRateLimiter,
	ProvideHealthChecks,
	ProvideRouterConfig,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
