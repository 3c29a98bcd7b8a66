// Package reload implements booster's hot-reload pipeline: a filesystem
// watcher that debounces and coalesces bursts of change events, then
// recompiles the newest-by-mtime .wasm candidate and publishes it to the
// execution pool.
//
// # Design rationale
//
// Build tooling (cargo/cc/etc.) touches a build directory many times in
// quick succession while producing a fresh artifact, and editors often
// write a file more than once per save. Reacting to every individual
// fsnotify event would recompile (and fail to compile, mid-write) far more
// often than necessary. A short debounce window coalesces a burst of events
// into a single reload attempt.
//
// # Candidate selection
//
// BOOSTER_PATH may point at a single .wasm file or a directory containing
// several. When it's a directory, every reload attempt re-scans for .wasm
// files, sorts candidates newest-mtime-first, and tries to compile each in
// order, skipping (and logging) any that fail, publishing the first that
// compiles successfully. This matches original_source/booster/src/main.rs's
// load_best_module/start_wasm_watcher exactly.
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/oriys/booster/internal/logging"
	"github.com/oriys/booster/internal/metrics"
)

// DebounceWindow is how long the watcher waits after the first change event
// before attempting a reload, coalescing any further events that arrive in
// the meantime.
const DebounceWindow = 200 * time.Millisecond

// candidate is a .wasm file considered for compilation, paired with its
// modification time for newest-first ordering.
type candidate struct {
	path    string
	modTime time.Time
}

// ListCandidates resolves path (a file or a directory) into an ordered list
// of .wasm files to try compiling, newest mtime first. A single-file path
// yields exactly one candidate regardless of its extension.
func ListCandidates(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}

	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wasm") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(path, entry.Name()),
			modTime: fi.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	return paths, nil
}

// watchRoot resolves the directory fsnotify should watch: path itself if
// it's a directory, or its parent if it's a single file.
func watchRoot(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}

// Pool is the subset of *pool.Pool the reload loop depends on.
type Pool interface {
	UpdateModule(module *wasmtime.Module)
}

// CompileFunc compiles a single candidate path into a module, returning an
// error (and leaving the current module untouched) if compilation fails.
type CompileFunc func(path string) (*wasmtime.Module, error)

// Watcher drives the debounce+coalesce reload loop for a single watch root.
type Watcher struct {
	path    string
	compile CompileFunc
	pool    Pool

	group singleflight.Group
}

// New builds a Watcher that recompiles and republishes the best candidate
// under path whenever the filesystem changes.
func New(path string, compile CompileFunc, pool Pool) *Watcher {
	return &Watcher{path: path, compile: compile, pool: pool}
}

// LoadBest scans path for candidates and compiles the newest one that
// succeeds, returning an error only if every candidate failed to compile
// (or no candidates exist).
func (w *Watcher) LoadBest() (*wasmtime.Module, error) {
	paths, err := ListCandidates(w.path)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .wasm candidates found under %s", w.path)
	}

	for _, p := range paths {
		mod, err := w.compile(p)
		if err != nil {
			logging.Op().Warn("skipping candidate that failed to compile", "path", p, "error", err)
			continue
		}
		return mod, nil
	}
	return nil, fmt.Errorf("no candidate under %s compiled successfully", w.path)
}

// Run starts the fsnotify watcher and blocks until ctx is cancelled,
// debouncing bursts of filesystem events and republishing the best
// compilable candidate after each settled burst. Duplicate pending signals
// are dropped with a non-blocking send so a slow reload never stalls the
// watcher goroutine itself.
func (w *Watcher) Run(ctx context.Context) error {
	root, err := watchRoot(w.path)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	signals := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Op().Warn("watcher error", "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-signals:
			w.debounceAndDrain(ctx, signals)
			w.reload()
		}
	}
}

func (w *Watcher) debounceAndDrain(ctx context.Context, signals <-chan struct{}) {
	timer := time.NewTimer(DebounceWindow)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			// Drain any signals that arrived during the window without
			// extending it further.
			for {
				select {
				case <-signals:
				default:
					return
				}
			}
		case <-signals:
			// Another event arrived inside the window; nothing to do, the
			// timer keeps running toward the same deadline (coalesce, not
			// restart-on-every-event).
		}
	}
}

func (w *Watcher) reload() {
	_, err, _ := w.group.Do("reload", func() (any, error) {
		mod, err := w.LoadBest()
		if err != nil {
			return nil, err
		}
		w.pool.UpdateModule(mod)
		return mod, nil
	})
	if err != nil {
		if m := metrics.Active(); m != nil {
			m.ReloadsTotal.WithLabelValues("failure").Inc()
		}
		logging.Op().Error("hot reload failed", "error", err)
		return
	}
	if m := metrics.Active(); m != nil {
		m.ReloadsTotal.WithLabelValues("success").Inc()
	}
	logging.Op().Info("hot reload applied")
}
