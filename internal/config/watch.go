package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/codefionn/greenhouse/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file whenever it is written or replaced and
// hands the new configuration to onChange. It blocks until ctx is done.
// The parent directory is watched so editors that save by rename are
// picked up too.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absPath), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(absPath)
			if err != nil {
				logger.Warn("Ignoring config change: %v", err)
				continue
			}
			logger.Debug("Config reloaded from %s", absPath)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher error: %v", err)
		}
	}
}
