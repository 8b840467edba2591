package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"sitemap-backend/infrastructure/config"
	"sitemap-backend/pkg/auth"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("NODE_STORE", "memory")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("SAVE_GUARD", "local")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("AWS_REGION", "us-west-2")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestInitializeContainer_InMemory(t *testing.T) {
	cfg := loadTestConfig(t)

	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	assert.NotNil(t, container.Editor)
	assert.NotNil(t, container.Router)
	require.NoError(t, container.NodeStore.(interface {
		Ping(context.Context) error
	}).Ping(context.Background()))
}

func TestApplyConfig_HotReloadsLevelAndGeometry(t *testing.T) {
	cfg := loadTestConfig(t)
	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	next := *cfg
	next.LogLevel = "debug"
	next.Layout.NodeWidth = 240
	container.ApplyConfig(&next)

	assert.Equal(t, zapcore.DebugLevel, container.LogLevel.Level())
	assert.Equal(t, 240.0, container.Engine.Options().NodeWidth)
	assert.Same(t, &next, container.Config)
}

func TestProvideRateLimiter(t *testing.T) {
	cfg := loadTestConfig(t)

	limiter := ProvideRateLimiter(cfg, nil)
	assert.IsType(t, &auth.SlidingWindowLimiter{}, limiter)

	cfg.RateLimit = 0
	assert.Nil(t, ProvideRateLimiter(cfg, nil))
}
