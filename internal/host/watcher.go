package host

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"ascbridge/internal/logging"
)

// ChangeFunc handles one changed path.
type ChangeFunc func(ctx context.Context, path string)

// Watcher watches directory trees and dispatches every create, write,
// remove or rename to a ChangeFunc in its own goroutine. Changes are not
// debounced; two saves produce two dispatches.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	roots    []string
	onChange ChangeFunc
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	inflight sync.WaitGroup
}

// NewWatcher creates a watcher for roots. Nothing is watched until Start.
func NewWatcher(roots []string, onChange ChangeFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		roots:    roots,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds every root recursively and begins dispatching. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			logging.WatchWarn("Watcher: failed to watch %s: %v", root, err)
			continue
		}
		logging.Watch("Watcher: watching %s", root)
	}

	go w.run(ctx)
	return nil
}

// Stop ends the event loop, waits for in-flight dispatches and releases
// the underlying watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.inflight.Wait()

	if err := w.watcher.Close(); err != nil {
		logging.WatchError("Watcher: error closing watcher: %v", err)
	}
	logging.WatchDebug("Watcher: stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("Watcher: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return // chmod
	}

	logging.WatchDebug("Watcher: %s event for %s", eventType, event.Name)

	if eventType == "create" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logging.WatchWarn("Watcher: failed to watch new directory %s: %v", event.Name, err)
			}
		}
	}

	w.inflight.Add(1)
	go func(path string) {
		defer w.inflight.Done()
		w.onChange(ctx, path)
	}(event.Name)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
