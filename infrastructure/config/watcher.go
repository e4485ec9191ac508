package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	pkgerrors "catalog/pkg/errors"
)

// debounceWindow coalesces the burst of fsnotify events an editor save
// produces into one reload
const debounceWindow = 200 * time.Millisecond

// Watcher reloads the config file on change and hands the result to a
// callback. A file that fails to load keeps the previous configuration.
type Watcher struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher watches the directory containing path. Watching the directory
// rather than the file survives rename-based atomic writes.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, pkgerrors.NewInternal("creating config watcher", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, pkgerrors.NewInvalidf("watching config directory: %v", err)
	}
	return &Watcher{path: path, logger: logger, watcher: fsw}, nil
}

// Start runs the watch loop until the context is cancelled. onChange is
// called with each successfully reloaded configuration.
func (w *Watcher) Start(ctx context.Context, onChange func(*Config)) {
	go func() {
		defer w.watcher.Close()

		var timer *time.Timer
		reload := func() {
			cfg, err := Load(w.path, w.logger)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous configuration",
					zap.String("file", w.path),
					zap.Error(err),
				)
				return
			}
			w.logger.Info("configuration reloaded", zap.String("file", w.path))
			onChange(cfg)
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceWindow, reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
}
