package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sentilytics/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file for changes and triggers a reload.
// Editors write config files with rapid save bursts, so events are
// debounced before the reload callback fires.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onReload    func(*Config)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a Watcher for the config file at path. onReload is
// called with the freshly loaded config after each settled change.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fw,
		path:        path,
		onReload:    onReload,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the config file's directory for changes.
// Non-blocking; the watcher runs in a goroutine until Stop or ctx end.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the file: editors replace files on save
	// and a direct file watch would go stale after the first write.
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryConfig).Warn("Watcher: failed to create config dir %s: %v (continuing anyway)", dir, err)
	}
	if err := w.watcher.Add(dir); err != nil {
		logging.Get(logging.CategoryConfig).Warn("Watcher: initial watch failed (dir may not exist): %v", err)
	} else {
		logging.Config("Watcher: watching directory: %s", dir)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("Watcher: error closing watcher: %v", err)
	}
	logging.Config("Watcher: stopped")
}

// run is the main event loop for the watcher.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Config("Watcher: context cancelled")
			return

		case <-w.stopCh:
			logging.Config("Watcher: stop signal received")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				logging.Config("Watcher: event channel closed")
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				logging.Config("Watcher: error channel closed")
				return
			}
			logging.Get(logging.CategoryConfig).Error("Watcher error: %v", err)

		case <-debounceTicker.C:
			w.processDebouncedEvents()
		}
	}
}

// handleEvent records a filesystem event for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return // Ignore chmod, remove, etc.
	}

	logging.ConfigDebug("Watcher: change event for %s", event.Name)

	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebouncedEvents reloads once events have settled past the window.
func (w *Watcher) processDebouncedEvents() {
	w.mu.Lock()
	now := time.Now()
	settled := false
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			settled = true
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	if !settled {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		logging.Get(logging.CategoryConfig).Error("Watcher: reload failed: %v", err)
		return
	}
	logging.Config("Watcher: config reloaded from %s", w.path)
	if err := logging.ReloadConfig(); err != nil {
		logging.Get(logging.CategoryConfig).Error("Watcher: logging reload failed: %v", err)
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
