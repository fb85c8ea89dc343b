package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"openmoose/internal/logging"
)

// Watcher watches config.json and invokes callbacks on change.
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	mu        sync.Mutex
	callbacks []func(*Config)
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching the config file at path. The containing
// directory is watched rather than the file itself so atomic
// rename-replace writes are still observed.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		path:    path,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// OnChange registers a callback invoked with the freshly loaded config
// whenever the file changes. Callbacks run on the watcher goroutine.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
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
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Boot("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logging.Boot("config reload failed: %v", err)
		return
	}
	if err := logging.ReloadConfig(); err != nil {
		logging.Boot("logging reload failed: %v", err)
	}
	logging.Boot("config reloaded from %s", w.path)

	w.mu.Lock()
	cbs := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()
	for _, fn := range cbs {
		fn(cfg)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
