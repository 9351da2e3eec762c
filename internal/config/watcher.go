package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ticktick-mcp/pkg/logging"
)

// defaultDebounceInterval coalesces editor write bursts (rename + chmod +
// write) into a single reload.
const defaultDebounceInterval = 500 * time.Millisecond

// Watcher watches the configuration file and invokes a callback with the
// freshly loaded configuration after changes settle. The serve command
// uses it to pick up credential changes without a restart.
type Watcher struct {
	path     string
	onChange func(*Config)

	watcher       *fsnotify.Watcher
	debounce      time.Duration
	debounceTimer *time.Timer
	debounceMu    sync.Mutex

	stopCh  chan struct{}
	stopped sync.Once
}

// NewWatcher creates a watcher for the given config file path. onChange
// runs on the watcher's goroutine; keep it quick or dispatch.
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: defaultDebounceInterval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched rather than the
// file itself: editors replace files via rename, which would otherwise
// drop the watch.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	w.watcher = watcher

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logging.Info("ConfigWatcher", "watching %s for configuration changes", w.path)
	go w.processEvents()
	return nil
}

// Stop ends watching. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopped.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.debounceMu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			logging.Debug("ConfigWatcher", "filesystem event: %s %s", event.Op, event.Name)
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("ConfigWatcher", "filesystem watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	cfg, err := LoadFrom(w.path)
	if err != nil {
		logging.Warn("ConfigWatcher", "failed to reload configuration: %v", err)
		return
	}

	logging.Info("ConfigWatcher", "configuration reloaded")
	w.onChange(cfg)
}
