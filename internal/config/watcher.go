package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file whenever it changes on disk and
// hands the freshly loaded value to every registered handler.
type Watcher[T any] struct {
	path     string
	debounce time.Duration
	loader   func(path string) (T, error)
	logger   *slog.Logger

	mu       sync.Mutex
	handlers []func(T)
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWatcher creates a watcher for path. Changes are coalesced over
// debounce before loader runs.
func NewWatcher[T any](path string, loader func(path string) (T, error), debounce time.Duration, logger *slog.Logger) *Watcher[T] {
	return &Watcher[T]{
		path:     path,
		debounce: debounce,
		loader:   loader,
		logger:   logger,
	}
}

// OnReload registers handler for reloaded values.
func (w *Watcher[T]) OnReload(handler func(T)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching. The parent directory is watched so editors that
// replace the file by rename are still picked up.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	w.mu.Lock()
	w.watcher = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("Config watcher started", "path", w.path, "debounce", w.debounce)
	go w.watch(ctx, fsw)
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (w *Watcher[T]) Stop() error {
	w.mu.Lock()
	fsw, cancel, done := w.watcher, w.cancel, w.done
	w.watcher = nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	cancel()
	err := fsw.Close()
	<-done
	return err
}

func (w *Watcher[T]) watch(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher[T]) reload() {
	value, err := w.loader(w.path)
	if err != nil {
		w.logger.Warn("Failed to reload config", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	handlers := slices.Clone(w.handlers)
	w.mu.Unlock()

	w.logger.Info("Config reloaded", "path", w.path)
	for _, handler := range handlers {
		handler(value)
	}
}
