// This file implements a file system watcher for the image library.
// It uses OS-level file system events to tell connected clients that a
// directory changed so they can reload it. Nothing is cached server side.

package library

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/vrsandeep/sd-gallery/internal/models"
	"github.com/vrsandeep/sd-gallery/internal/util"
)

// EventLibraryChanged is the type of the event sent after files change.
const EventLibraryChanged = "library.changed"

// Broadcaster delivers events to listeners, typically websocket clients.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// WatcherService watches the base directory for file system changes and
// broadcasts the changed paths once events settle down.
type WatcherService struct {
	root          string
	matcher       *FileMatcher
	broadcaster   Broadcaster
	watcher       *fsnotify.Watcher
	changedPaths  map[string]bool
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	logger        *log.Logger
}

// NewWatcherService creates a new file system watcher service.
func NewWatcherService(root string, matcher *FileMatcher, broadcaster Broadcaster, debounce time.Duration) *WatcherService {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &WatcherService{
		root:          root,
		matcher:       matcher,
		broadcaster:   broadcaster,
		changedPaths:  make(map[string]bool),
		debounceDelay: debounce,
		stopChan:      make(chan struct{}),
		logger:        log.With("component", "watcher"),
	}
}

// Start begins watching the base directory tree.
func (w *WatcherService) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	// fsnotify is not recursive, so every directory is added on its own.
	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	w.logger.Info("file watcher started", "root", w.root)
	go w.processEvents()
	return nil
}

// Stop stops the file watcher service. It is safe to call more than once.
func (w *WatcherService) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *WatcherService) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "err", err)

		case <-w.stopChan:
			return
		}
	}
}

// handleEvent processes a single file system event.
func (w *WatcherService) handleEvent(event fsnotify.Event) {
	// Chmod fires when files are merely opened or browsed.
	if event.Op == fsnotify.Chmod {
		return
	}
	relevant := event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !relevant {
		return
	}

	info, err := os.Stat(event.Name)
	isDir := err == nil && info.IsDir()

	if isDir && event.Has(fsnotify.Create) {
		if err := w.watcher.Add(event.Name); err != nil {
			w.logger.Warn("cannot watch new directory", "path", event.Name, "err", err)
		}
		w.markChanged(event.Name)
		return
	}

	if isDir {
		return
	}
	name := filepath.Base(event.Name)
	// A removed directory no longer stats, so extensionless removals are
	// treated as directories.
	removed := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !w.matcher.IsSupported(name) && !(removed && filepath.Ext(name) == "") {
		return
	}
	w.markChanged(event.Name)
}

// markChanged records path and its parent, then restarts the debounce timer.
func (w *WatcherService) markChanged(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changedPaths[path] = true
	w.changedPaths[filepath.Dir(path)] = true

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.flush)
}

// flush broadcasts the collected paths relative to the root.
func (w *WatcherService) flush() {
	w.mu.Lock()
	if len(w.changedPaths) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.changedPaths))
	for path := range w.changedPaths {
		paths = append(paths, util.RelativeTo(w.root, path))
	}
	w.changedPaths = make(map[string]bool)
	w.mu.Unlock()

	sort.Strings(paths)
	w.logger.Info("library changed", "paths", len(paths))
	w.broadcaster.BroadcastJSON(models.LibraryEvent{Type: EventLibraryChanged, Paths: paths})
}
