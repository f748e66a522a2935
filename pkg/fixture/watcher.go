package fixture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mockforge/mockforge/pkg/logging"
)

// debounceWindow coalesces editor write bursts into one reload.
const debounceWindow = 200 * time.Millisecond

// Watcher loads every fixture file in a directory and republishes an
// immutable Set whenever a file changes. Readers call Current and never
// block.
type Watcher struct {
	dir     string
	current atomic.Pointer[Set]
	log     *slog.Logger

	fsw       *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a watcher over dir and performs the initial load.
// A missing directory yields an empty set; files appearing later are
// picked up once the directory exists at start time.
func NewWatcher(dir string, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Nop()
	}
	w := &Watcher{dir: dir, log: log, done: make(chan struct{})}
	w.current.Store(EmptySet())

	if dir == "" {
		return w, nil
	}

	set, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	w.current.Store(set)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fixture watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch fixture directory %s: %w", dir, err)
	}
	w.fsw = fsw

	go w.run()
	return w, nil
}

// Current returns the active fixture set.
func (w *Watcher) Current() *Set {
	return w.current.Load()
}

// Close stops watching. The last published set stays readable. Close is
// idempotent.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) run() {
	var pending <-chan time.Time
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isFixtureFile(event.Name) {
				continue
			}
			pending = time.After(debounceWindow)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fixture watcher error", "error", err)
		case <-pending:
			pending = nil
			set, err := LoadDir(w.dir)
			if err != nil {
				// Keep serving the previous snapshot on a broken edit.
				w.log.Warn("fixture reload failed, keeping previous set", "error", err)
				continue
			}
			w.current.Store(set)
			w.log.Info("fixtures reloaded", "count", set.Len())
		}
	}
}

// LoadDir loads every .yaml/.yml/.json fixture file under dir into one Set.
func LoadDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return EmptySet(), nil
		}
		return nil, fmt.Errorf("failed to read fixture directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isFixtureFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	sets := make([]*Set, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture file %s: %w", name, err)
		}
		set, err := Load(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		sets = append(sets, set)
	}
	return Merge(sets...), nil
}

func isFixtureFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	default:
		return false
	}
}
