package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce collapses the burst of events editors emit on save
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the overlay file whenever it changes and hands every valid
// result to onChange. It returns when ctx is done. A config without an
// overlay file returns immediately.
func Watch(ctx context.Context, cfg *Config, logger *zap.Logger, onChange func(*Config)) error {
	if cfg.ConfigFile == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// watch the directory so atomic rename-on-save is seen
	target := filepath.Clean(cfg.ConfigFile)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	current := cfg
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}

		case <-pending:
			pending = nil
			next, err := current.Reload()
			if err != nil {
				logger.Warn("Ignoring invalid config change", zap.String("file", target), zap.Error(err))
				continue
			}
			current = next
			logger.Info("Configuration reloaded", zap.String("file", target))
			onChange(next)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}
