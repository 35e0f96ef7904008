// Package watcher turns file system events under a project root into
// debounced batches of changed project-relative paths.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
)

var log = logger.ForComponent("watcher")

type Handler interface {
	HandleBatch(ctx context.Context, b Batch) error
}

type HandlerFunc func(ctx context.Context, b Batch) error

func (f HandlerFunc) HandleBatch(ctx context.Context, b Batch) error {
	return f(ctx, b)
}

type Watcher struct {
	config      Config
	root        string
	configDir   string
	fsWatcher   *fsnotify.Watcher
	fsWatcherMu sync.Mutex
	batcher     *batcher
	handler     Handler
	batches     chan Batch
	done        chan struct{}
	stopOnce    sync.Once
}

// New watches every directory under root that is not ignored. configDir is
// project-relative; changes below it are reported as ConfigChanged and it
// is watched even when hidden.
func New(config Config, root, configDir string, h Handler) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		config:    config,
		root:      root,
		configDir: filepath.ToSlash(filepath.Clean(configDir)),
		fsWatcher: fsWatcher,
		handler:   h,
		batches:   make(chan Batch, 16),
		done:      make(chan struct{}),
	}
	w.batcher = newBatcher(config.DebounceWindow, config.MaxBatchSize, w.configDir, w.enqueue)

	if err := w.addToWatcher(root); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	w.walkAndAdd(root)
	return w, nil
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsWatcherMu.Lock()
	defer w.fsWatcherMu.Unlock()
	return w.fsWatcher.Add(path)
}

func (w *Watcher) walkAndAdd(path string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		log.Debug("failed to read directory", "path", path, "error", err)
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fullPath := filepath.Join(path, entry.Name())
		if w.shouldIgnore(w.rel(fullPath)) {
			continue
		}
		if err := w.addToWatcher(fullPath); err != nil {
			log.Debug("failed to watch directory", "path", fullPath, "error", err)
			continue
		}
		log.Debug("watching directory", "path", fullPath)
		w.walkAndAdd(fullPath)
	}
}

// Run delivers batches to the handler until ctx is cancelled. Batches are
// handled one at a time; a handler error is logged and watching goes on.
func (w *Watcher) Run(ctx context.Context) error {
	log.Info("watching for changes", "root", w.root)
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			log.Debug("file event", "path", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !w.shouldIgnore(w.rel(event.Name)) {
						if err := w.addToWatcher(event.Name); err == nil {
							w.walkAndAdd(event.Name)
						}
					}
					continue
				}
			}
			if fe := w.convertEvent(event); fe != nil {
				w.batcher.Add(*fe)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)

		case b := <-w.batches:
			log.Info("change batch", "changed", len(b.Changed), "removed", len(b.Removed), "config", b.ConfigChanged)
			if err := w.handler.HandleBatch(ctx, b); err != nil {
				log.Error("handling change batch failed", "error", err)
			}
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	rel := w.rel(event.Name)
	if rel == "" || w.shouldIgnore(rel) {
		return nil
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	case event.Has(fsnotify.Remove):
		eventType = EventDelete
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return nil
	}

	return &FileEvent{
		Path:      rel,
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

func (w *Watcher) enqueue(b Batch) {
	select {
	case w.batches <- b:
	case <-w.done:
	}
}

// rel maps an absolute event path to a project-relative slash path, or ""
// when it lies outside the root.
func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) inConfigDir(rel string) bool {
	return w.configDir != "." && (rel == w.configDir || strings.HasPrefix(rel, w.configDir+"/"))
}

func (w *Watcher) shouldIgnore(rel string) bool {
	if w.inConfigDir(rel) {
		return false
	}
	if !w.config.WatchHidden && strings.HasPrefix(filepath.Base(rel), ".") {
		return true
	}
	for _, pattern := range w.config.IgnorePatterns {
		if match, _ := doublestar.Match(pattern, rel); match {
			return true
		}
	}
	return false
}

func (w *Watcher) stop() {
	w.stopOnce.Do(func() {
		log.Info("stopping file watcher")
		close(w.done)
		w.batcher.Close()

		w.fsWatcherMu.Lock()
		defer w.fsWatcherMu.Unlock()
		w.fsWatcher.Close()
	})
}
