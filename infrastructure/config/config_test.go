package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.NodeStore)
	assert.Equal(t, "local", cfg.SaveGuard)
	d := cfg.Domain()
	assert.Equal(t, 200.0, d.NodeWidth)
	assert.Equal(t, 60.0, d.NodeHeight)
	assert.Equal(t, 100.0, d.RankSpacing)
	assert.Equal(t, 40.0, d.NodeSpacing)
	assert.Equal(t, "LR", d.LayoutDirection)
	assert.Equal(t, 1.0, d.DirtyTolerance)
	assert.True(t, d.OriginIsUnset)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "editor.yaml")
	writeFile(t, path, `
node_store: sqlite
sqlite_path: /tmp/sitemaps.db
session_ttl: 30m
layout:
  rank_spacing: 150
  direction: TB
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LAYOUT_RANK_SEP", "120")

	// Act
	cfg, err := LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.NodeStore)
	assert.Equal(t, "/tmp/sitemaps.db", cfg.SQLitePath)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "TB", cfg.Layout.Direction)
	assert.Equal(t, 120.0, cfg.Layout.RankSpacing, "environment wins over the file")
	assert.Equal(t, 200.0, cfg.Layout.NodeWidth, "unset file keys keep defaults")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown node store", map[string]string{"NODE_STORE": "postgres"}},
		{"unknown session store", map[string]string{"SESSION_STORE": "memcached"}},
		{"bad direction", map[string]string{"LAYOUT_DIRECTION": "RL"}},
		{"negative tolerance", map[string]string{"DIRTY_TOLERANCE": "-1"}},
		{"production without secret", map[string]string{"ENVIRONMENT": "production", "NODE_STORE": "sqlite"}},
		{"auth without secret", map[string]string{"ENABLE_AUTH": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "editor.yaml")
	writeFile(t, path, "log_level: info\n")
	t.Setenv("CONFIG_FILE", path)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, cfg, zap.NewNop(), func(c *Config) { changes <- c }) }()

	// Act: give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "log_level: debug\nlayout:\n  node_spacing: 60\n")

	// Assert
	select {
	case next := <-changes:
		assert.Equal(t, "debug", next.LogLevel)
		assert.Equal(t, 60.0, next.Layout.NodeSpacing)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestWatch_NoFile(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.NoError(t, Watch(context.Background(), cfg, zap.NewNop(), func(*Config) {}))
}
