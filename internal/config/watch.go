package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch reloads path whenever it changes and hands every config that
// validates to onChange. Invalid files are logged and skipped. The parent
// directory is watched so editors replacing the file are seen too. Watch
// blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, logger logr.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new fsnotify watcher failed: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Error(err, "failed to close config watcher")
		}
	}()

	dir, file := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.V(4).Info("watching config", "path", path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != file || event.Op&watchedOps == 0 {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				logger.Error(err, "ignoring config change")
				continue
			}
			logger.Info("config reloaded", "event", event.Op.String())
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(err, "config watcher error")
		case <-ctx.Done():
			logger.V(4).Info("stopping config watcher")
			return nil
		}
	}
}
