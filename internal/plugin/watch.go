package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrAlreadyWatching is returned by Watch when a watcher is running.
var ErrAlreadyWatching = errors.New("plugin paths are already being watched")

// Watch invalidates the discovery cache whenever a file under a registered
// plug-in path changes. Paths registered later are watched too. The
// returned function stops the watcher and waits for it to exit; cancelling
// ctx stops it as well.
func (r *Registry) Watch(ctx context.Context) (func(), error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create plugin watcher: %w", err)
	}

	r.mu.Lock()
	if r.watcher != nil {
		r.mu.Unlock()
		_ = fsw.Close()
		return nil, ErrAlreadyWatching
	}
	r.watcher = fsw
	for _, paths := range r.paths {
		for _, path := range paths {
			r.watchLocked(path)
		}
	}
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go r.processEvents(ctx, fsw, done)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

func (r *Registry) processEvents(ctx context.Context, fsw *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)
	defer func() {
		r.mu.Lock()
		r.watcher = nil
		r.mu.Unlock()
		_ = fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			r.logger.WithFields(map[string]any{"path": event.Name, "op": event.Op.String()}).Debug("plugin path changed")
			r.Invalidate()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			r.logger.WarnErr(err, "plugin watcher error")
		}
	}
}

// watchLocked adds path to the running watcher, if any. r.mu must be held.
func (r *Registry) watchLocked(path string) {
	if r.watcher == nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.With("path", path).Debug("plugin path not watched: it does not exist")
		return
	}
	if err := r.watcher.Add(path); err != nil {
		r.logger.With("path", path).WarnErr(err, "failed to watch plugin path")
	}
}

// unwatchLocked stops watching path unless another kind still registers it.
// r.mu must be held.
func (r *Registry) unwatchLocked(path string) {
	if r.watcher == nil {
		return
	}
	for _, paths := range r.paths {
		if slices.Contains(paths, path) {
			return
		}
	}
	if err := r.watcher.Remove(path); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		r.logger.With("path", path).WarnErr(err, "failed to unwatch plugin path")
	}
}
