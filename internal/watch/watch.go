// Package watch implements the live re-index loop: debounced filesystem
// events trigger an incremental index_directory call, and an optional
// delayed embedding refresh keeps the dense vector index from falling too
// far behind.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cartogr/cartog/internal/graph"
	"github.com/cartogr/cartog/internal/indexer"
	"github.com/cartogr/cartog/internal/languages"
	"github.com/cartogr/cartog/internal/retrieval"
)

// Config holds the watch parameters: the root to watch, the debounce
// window, and whether (and how long after the last index) to refresh
// embeddings for newly-indexed symbols.
type Config struct {
	Root     string
	Debounce time.Duration
	RAG      bool
	RAGDelay time.Duration
}

// pendingTimeout is the poll interval used while a RAG refresh is armed;
// idleTimeout is used otherwise.
const (
	pendingTimeout = 500 * time.Millisecond
	idleTimeout    = 1 * time.Second
)

// Loop owns the fsnotify watcher, the debounce timer, and the shutdown
// flag shared with callers via Signal/Stop.
type Loop struct {
	cfg      Config
	store    *graph.Store
	registry *languages.Registry
	engine   *retrieval.Engine // nil if RAG is disabled or unconfigured

	watcher  *fsnotify.Watcher
	shutdown atomic.Bool
	wg       sync.WaitGroup
}

// New opens a watcher on cfg.Root, runs one catch-up incremental index, and
// returns a Loop ready for Run. store is expected to be a second handle to
// the same `.cartog.db` file the indexer writes to; WAL journaling is what
// makes that concurrent reader/writer split safe.
func New(cfg Config, store *graph.Store, registry *languages.Registry, engine *retrieval.Engine) (*Loop, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	cfg.Root = root
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.RAGDelay <= 0 {
		cfg.RAGDelay = 30 * time.Second
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(watcher, cfg.Root); err != nil {
		watcher.Close()
		return nil, err
	}

	l := &Loop{cfg: cfg, store: store, registry: registry, engine: engine, watcher: watcher}

	if _, err := indexer.IndexDirectory(store, registry, cfg.Root, false); err != nil {
		slog.Warn("watch: catch-up index failed", "error", err)
	}
	return l, nil
}

// addRecursive registers every non-ignored directory under root with the
// watcher, since fsnotify (unlike some platforms' native APIs) only watches
// the directories it is explicitly told about.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isIgnoredComponent(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// Signal sets the shutdown flag without waiting for the loop goroutine to
// exit.
func (l *Loop) Signal() {
	l.shutdown.Store(true)
}

// Stop sets the shutdown flag and blocks until Run has returned.
func (l *Loop) Stop() {
	l.shutdown.Store(true)
	l.wg.Wait()
}

// InstallSIGINT arms an os/signal handler that calls Signal on interrupt.
func (l *Loop) InstallSIGINT() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		l.Signal()
	}()
}

// Run executes the main debounced poll loop until Signal/Stop is called or
// the context is canceled. It always returns after flushing a pending RAG
// refresh, if one was armed.
func (l *Loop) Run(ctx context.Context) error {
	l.wg.Add(1)
	defer l.wg.Done()
	defer l.watcher.Close()

	var ragPending bool
	var lastIndexTime time.Time
	var pendingPaths []string

	debounceTimer := time.NewTimer(l.cfg.Debounce)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	debounceArmed := false

	for {
		if l.shutdown.Load() {
			if ragPending {
				l.flushEmbeddings()
			}
			return nil
		}

		timeout := idleTimeout
		if ragPending {
			timeout = pendingTimeout
		}
		poll := time.NewTimer(timeout)

		select {
		case <-ctx.Done():
			poll.Stop()
			if ragPending {
				l.flushEmbeddings()
			}
			return ctx.Err()

		case event, ok := <-l.watcher.Events:
			poll.Stop()
			if !ok {
				return nil
			}
			if isRelevantPath(event.Name, l.cfg.Root) {
				pendingPaths = append(pendingPaths, event.Name)
				if !debounceArmed {
					debounceTimer.Reset(l.cfg.Debounce)
					debounceArmed = true
				}
			}

		case <-debounceTimer.C:
			poll.Stop()
			debounceArmed = false
			if len(pendingPaths) > 0 {
				pendingPaths = nil
				l.handleChangeBatch(&ragPending, &lastIndexTime)
			}

		case err, ok := <-l.watcher.Errors:
			poll.Stop()
			if !ok {
				return nil
			}
			slog.Warn("watch: fsnotify error", "error", err)

		case <-poll.C:
			if ragPending && time.Since(lastIndexTime) >= l.cfg.RAGDelay {
				l.flushEmbeddings()
				ragPending = false
			}
		}
	}
}

// handleChangeBatch re-indexes the directory once per debounced batch of
// events and arms ragPending if the refreshed index reports symbols still
// lacking embeddings.
func (l *Loop) handleChangeBatch(ragPending *bool, lastIndexTime *time.Time) {
	result, err := indexer.IndexDirectory(l.store, l.registry, l.cfg.Root, false)
	if err != nil {
		slog.Warn("watch: incremental index failed", "error", err)
		return
	}
	slog.Info("watch: incremental index complete",
		"files_indexed", result.FilesIndexed,
		"files_removed", result.FilesRemoved,
		"edges_resolved", result.EdgesResolved)

	if l.cfg.RAG && l.engine != nil {
		ids, err := l.store.SymbolIDsWithoutEmbedding()
		if err == nil && len(ids) > 0 {
			*ragPending = true
			*lastIndexTime = time.Now()
		}
	}
}

func (l *Loop) flushEmbeddings() {
	if l.engine == nil {
		return
	}
	result, err := l.engine.IndexEmbeddings(context.Background(), false)
	if err != nil {
		slog.Warn("watch: embedding refresh failed", "error", err)
		return
	}
	slog.Info("watch: embedding refresh complete", "embedded", result.Embedded, "failed", result.Failed)
}

// isRelevantPath reports whether a changed path should trigger a re-index:
// it must be under root, have a supported extension, and contain no
// ignored-dirname component in its path relative to root.
func isRelevantPath(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	if _, ok := languages.LanguageForPath(rel); !ok {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if isIgnoredComponent(part) {
			return false
		}
	}
	return true
}

var ignoredComponents = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "__pycache__": true,
	".mypy_cache": true, ".pytest_cache": true, ".tox": true,
	".venv": true, "venv": true, ".env": true, "env": true,
	"target": true, "dist": true, "build": true,
	".next": true, ".nuxt": true, "vendor": true,
}

func isIgnoredComponent(name string) bool {
	if ignoredComponents[name] {
		return true
	}
	return strings.HasPrefix(name, ".")
}
