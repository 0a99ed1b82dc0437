package library

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-catalog/internal/importer"
)

// Refresher brings the catalog in line with the files below the media root.
type Refresher interface {
	ImportAll(ctx context.Context) (importer.Result, error)
	Prune(ctx context.Context) (int, error)
}

// Status describes the outcome of the most recent refresh.
type Status struct {
	Refreshes   int
	LastRefresh time.Time
	LastResult  importer.Result
	LastPruned  int
	LastError   error
}

// Library watches a media directory and re-imports it into the catalog
// whenever audio files change.
type Library struct {
	root      string
	allowed   map[string]struct{}
	watcher   *fsnotify.Watcher
	refresher Refresher
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu serialises refreshes and guards status and closed.
	mu     sync.Mutex
	status Status
	closed bool

	refreshMu    sync.Mutex
	refreshTimer *time.Timer
	refreshDelay time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewLibrary creates a new Library, runs an initial refresh and starts
// watching the provided root path.
func NewLibrary(root string, allowed []string, debounce time.Duration, refresher Refresher, logger *log.Logger) (*Library, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	lib := &Library{
		root:         root,
		allowed:      make(map[string]struct{}, len(allowed)),
		watcher:      watcher,
		refresher:    refresher,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		refreshDelay: debounce,
		done:         make(chan struct{}),
	}

	for _, ext := range allowed {
		lib.allowed[strings.ToLower(ext)] = struct{}{}
	}

	lib.addWatchRecursive(root)

	if err := lib.refresh(); err != nil {
		cancel()
		watcher.Close()
		return nil, err
	}

	lib.wg.Add(1)
	go lib.run()

	return lib, nil
}

// Close stops the watcher, cancels a running refresh and waits for it.
func (l *Library) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.cancel()

		l.refreshMu.Lock()
		if l.refreshTimer != nil {
			l.refreshTimer.Stop()
			l.refreshTimer = nil
		}
		l.refreshMu.Unlock()

		l.closeErr = l.watcher.Close()
		l.wg.Wait()

		// Blocks until a refresh already in progress has returned.
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
	})
	return l.closeErr
}

// Root returns the watched media directory.
func (l *Library) Root() string {
	return l.root
}

// Status returns a snapshot of the refresh bookkeeping.
func (l *Library) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Library) run() {
	defer l.wg.Done()

	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(event)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Printf("watcher error: %v", err)
		case <-l.done:
			return
		}
	}
}

func (l *Library) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			l.addWatchRecursive(event.Name)
			l.scheduleRefresh()
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		if l.isAllowed(event.Name) || event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			l.scheduleRefresh()
		}
	}
}

func (l *Library) refresh() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	result, err := l.refresher.ImportAll(l.ctx)
	pruned := 0
	if err == nil {
		pruned, err = l.refresher.Prune(l.ctx)
	}

	l.status.Refreshes++
	l.status.LastRefresh = time.Now()
	l.status.LastResult = result
	l.status.LastPruned = pruned
	l.status.LastError = err
	if err != nil {
		return err
	}

	l.logger.Printf("library refreshed: %d imported, %d skipped, %d pruned", result.Imported, result.Skipped, pruned)
	return nil
}

func (l *Library) scheduleRefresh() {
	select {
	case <-l.done:
		return
	default:
	}

	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	if l.refreshTimer != nil {
		l.refreshTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(l.refreshDelay, func() {
		if err := l.refresh(); err != nil {
			l.logger.Printf("refresh error: %v", err)
		}

		l.refreshMu.Lock()
		if l.refreshTimer == timer {
			l.refreshTimer = nil
		}
		l.refreshMu.Unlock()
	})

	l.refreshTimer = timer
}

func (l *Library) addWatchRecursive(path string) {
	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			l.logger.Printf("walk error for %s: %v", p, err)
			return nil
		}

		if d.IsDir() {
			if err := l.watcher.Add(p); err != nil {
				l.logger.Printf("watcher add failure for %s: %v", p, err)
			}
		}
		return nil
	})
}

func (l *Library) isAllowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := l.allowed[ext]
	return ok
}
