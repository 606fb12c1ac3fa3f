package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// CatalogWatcher reloads the registry when the catalog file changes on
// disk. Editors replace files rather than writing in place, so the
// watch is on the parent directory and events are filtered by name.
type CatalogWatcher struct {
	watcher  *fsnotify.Watcher
	registry *Registry
	path     string
	logger   zerolog.Logger
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewCatalogWatcher starts watching the registry's catalog file.
func NewCatalogWatcher(registry *Registry, path string, logger zerolog.Logger) (*CatalogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	cw := &CatalogWatcher{
		watcher:  watcher,
		registry: registry,
		path:     path,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go cw.run()

	logger.Info().Str("catalog", path).Msg("Catalog watcher started")
	return cw, nil
}

// Stop stops the watcher.
func (cw *CatalogWatcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}

func (cw *CatalogWatcher) run() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				cw.logger.Debug().
					Str("op", event.Op.String()).
					Msg("Catalog change detected")
				cw.scheduleReload()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error().Err(err).Msg("Catalog watcher error")

		case <-cw.stopCh:
			return
		}
	}
}

func (cw *CatalogWatcher) scheduleReload() {
	if cw.timer != nil {
		cw.timer.Stop()
	}

	cw.timer = time.AfterFunc(cw.debounce, func() {
		if err := cw.registry.Load(context.Background()); err != nil {
			cw.logger.Error().Err(err).Msg("Catalog reload failed, keeping previous cache")
		}
	})
}
