package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/playwatch/playwatch/internal/logging"
)

// Watcher reloads the config file into a Store whenever it changes on disk.
// Editors replace files rather than writing in place, so the watch is on the
// containing directory with events filtered down to the config file itself.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	store    *Store
	debounce time.Duration
	logger   *logrus.Entry

	mu         sync.Mutex
	lastChange time.Time
}

// NewWatcher watches the directory containing path. A failed reload keeps
// the previous snapshot in place.
func NewWatcher(path string, store *Store) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	return &Watcher{
		watcher:  watcher,
		path:     path,
		store:    store,
		debounce: 100 * time.Millisecond,
		logger:   logging.NewLogger("config-watcher"),
	}, nil
}

// Start blocks until the context is cancelled or the underlying watcher
// shuts down.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			w.handleChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Error monitoring configuration file: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// handleChange reloads the config with debouncing, since a single save can
// surface as several filesystem events.
func (w *Watcher) handleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastChange) < w.debounce {
		return
	}
	w.lastChange = time.Now()

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warnf("Config changed but could not be reloaded: %v", err)
		return
	}
	w.store.Replace(cfg)
	w.logger.Infof("Reloaded config from %s", w.path)
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
