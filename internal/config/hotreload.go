package config

import (
	"bytes"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives each successfully reloaded config.
type ChangeHandler func(cfg *Config)

// Watcher reloads a config file when it changes on disk. It watches the
// parent directory so rename-on-save editors are seen, debounces bursts of
// events, skips reloads when the content hash is unchanged, and keeps the
// last good config when the new file fails to load.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	lastSum  []byte

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher prepares a watcher for path. Call Start to begin watching.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		fsw:      fsw,
		debounce: 300 * time.Millisecond,
		done:     make(chan struct{}),
	}
	if sum, err := fileSum(w.path); err == nil {
		w.lastSum = sum
	}
	return w, nil
}

// OnChange registers h. Handlers run in registration order on the reload goroutine.
func (w *Watcher) OnChange(h ChangeHandler) {
	w.mu.Lock()
	w.handlers = append(w.handlers, h)
	w.mu.Unlock()
}

// Start watches the file's directory in the background.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.loop()
	slog.Info("config.watcher_started", "path", w.path)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	close(w.done)
	w.fsw.Close()
	w.wg.Wait()
	slog.Info("config.watcher_stopped")
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, w.reload)
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("config.watcher_error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	sum, err := fileSum(w.path)
	if err != nil {
		slog.Warn("config.reload_skipped", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	unchanged := bytes.Equal(sum, w.lastSum)
	w.mu.Unlock()
	if unchanged {
		slog.Debug("config.unchanged", "path", w.path)
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("config.reload_failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.lastSum = sum
	handlers := append([]ChangeHandler(nil), w.handlers...)
	w.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}
	slog.Info("config.reloaded", "path", w.path)
}

func fileSum(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}
