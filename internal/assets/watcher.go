package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mantonx/cutline/internal/events"
)

// Watcher keeps asset online/offline state in sync with the
// filesystem. It watches the parent directories of registered assets
// and flips state on remove, rename, and re-create.
type Watcher struct {
	library *Library
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher bound to the library.
func NewWatcher(library *Library) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		library: library,
		watcher: fw,
		watched: make(map[string]bool),
	}, nil
}

// Start launches the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop halts the event loop and closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// Watch adds the asset's parent directory to the watch set.
func (w *Watcher) Watch(asset *Asset) error {
	dir := filepath.Dir(asset.Path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watched[dir] = true
	w.library.logger.Debug("watching directory", "dir", dir)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.library.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		if asset := w.library.setOnline(event.Name, false); asset != nil {
			w.library.logger.Warn("asset went offline", "asset_id", asset.ID, "path", asset.Path)
			w.library.publish(events.EventAssetOffline, asset)
		}
	case event.Op&fsnotify.Create == fsnotify.Create,
		event.Op&fsnotify.Write == fsnotify.Write:
		if asset := w.library.setOnline(event.Name, true); asset != nil {
			w.library.logger.Info("asset back online", "asset_id", asset.ID, "path", asset.Path)
			w.library.publish(events.EventAssetOnline, asset)
		}
	}
}
