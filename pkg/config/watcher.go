package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the bursts of write events editors and atomic
// renames produce for a single save.
const watchDebounce = 100 * time.Millisecond

// Watcher reloads the configuration file on change and hands the dynamic
// subset to a callback. Static fields (listen address, data directory)
// require a restart; a change to them is logged and ignored.
type Watcher struct {
	path     string
	current  *Config
	onReload func(*Config)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewWatcher starts watching the directory containing path. onReload is
// called with the freshly loaded configuration after every valid change.
func NewWatcher(path string, current *Config, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files by rename,
	// which would silently detach a file-level watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &Watcher{
		path:     path,
		current:  current,
		onReload: onReload,
		watcher:  fw,
		logger:   slog.Default().With("component", "config.watcher"),
	}
	go w.run()

	w.logger.Info("config watcher started", "path", path)
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}

func (w *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// reload re-reads the file and applies the dynamic subset. Invalid files are
// rejected; the running configuration stays in effect.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload rejected", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if cfg.ListenAddress() != w.current.ListenAddress() {
		w.logger.Warn("listen address changed on disk; restart required",
			"running", w.current.ListenAddress(),
			"on_disk", cfg.ListenAddress(),
		)
	}
	if cfg.DataDir != w.current.DataDir {
		w.logger.Warn("data directory changed on disk; restart required",
			"running", w.current.DataDir,
			"on_disk", cfg.DataDir,
		)
	}

	if cfg.LogLevel != w.current.LogLevel {
		w.logger.Info("applying reloaded config", "log_level", cfg.LogLevel)
	}
	w.current = cfg
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
