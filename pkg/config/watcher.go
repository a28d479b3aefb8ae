package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounceDelay = 300 * time.Millisecond

// ReloadFunc is called with the freshly loaded configuration after the
// config file changes on disk.
type ReloadFunc func(*Config)

// Watcher watches the config file and reloads it on change
type Watcher struct {
	configPath string
	loader     *Loader
	onReload   ReloadFunc
	logger     zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	started bool
}

// NewWatcher creates a watcher for the given config file path
func NewWatcher(configPath string, onReload ReloadFunc, logger zerolog.Logger) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if onReload == nil {
		return nil, fmt.Errorf("reload callback is required")
	}

	return &Watcher{
		configPath: configPath,
		loader:     NewLoader(configPath),
		onReload:   onReload,
		logger:     logger.With().Str("component", "config_watcher").Logger(),
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching for changes. Editors often replace the file
// rather than write in place, so the parent directory is watched and
// events are filtered by name.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("watcher already started")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(w.configPath)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.watcher = fw
	w.started = true

	go w.loop()

	w.logger.Debug().Str("path", w.configPath).Msg("Config watcher started")
	return nil
}

// Stop stops watching
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	close(w.done)
	w.watcher.Close()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.started = false
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

// scheduleReload debounces bursts of file events into a single reload
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to reload config, keeping previous")
		return
	}

	w.logger.Info().Msg("Config reloaded")
	w.onReload(cfg)
}
