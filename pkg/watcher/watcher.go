// Package watcher reports changes to a fixture database on disk so the
// TUI can reload the tree. It uses fsnotify on the containing directory and
// falls back to polling the file's mtime and size.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/refnet/pkg/debug"
)

// DefaultPollInterval is used when fsnotify is unavailable or disabled.
const DefaultPollInterval = 2 * time.Second

// Watch errors.
var (
	ErrFileRemoved    = errors.New("fixture file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets how long events must stop before a change is
// reported.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the stat interval of polling mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithOnChange registers a callback run on every reported change, before
// Changed is signalled.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError registers a callback for watch errors and removals.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) { w.forcePoll = force }
}

// fileState is what polling compares between ticks.
type fileState struct {
	mtime time.Time
	size  int64
	ok    bool
}

func statFile(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}, err
	}
	return fileState{mtime: info.ModTime(), size: info.Size(), ok: true}, nil
}

func (s fileState) differs(o fileState) bool {
	return s.ok != o.ok || s.size != o.size || !s.mtime.Equal(o.mtime)
}

// Watcher watches one fixture file.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool
	onChange     func()
	onError      func(error)

	mu        sync.RWMutex
	started   bool
	polling   bool
	last      fileState
	cancel    context.CancelFunc
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	changed   chan struct{}
}

// NewWatcher creates a watcher for path. Nothing happens until Start.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		onChange:     func() {},
		onError:      func(error) {},
		changed:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Start begins watching. A missing file is fine; its creation is reported
// as a change.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	st, err := statFile(w.path)
	if err != nil && os.IsPermission(err) {
		return ErrPermission
	}
	w.last = st

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.polling = w.forcePoll || envBool("RN_FORCE_POLL")
	if !w.polling {
		fsw, err := w.watchDir()
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
			w.polling = true
		} else {
			w.fsw = fsw
			go w.runEvents(ctx, fsw)
		}
	}
	if w.polling {
		go w.runPoll(ctx)
	}
	w.started = true
	return nil
}

// watchDir watches the parent directory, since a rewrite replaces the
// file and a watch on the old inode would go quiet.
func (w *Watcher) watchDir() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Stop stops watching. Changed stays open so a command blocked on it does
// not spin.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling reports whether the watcher fell back to (or was forced into)
// polling.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

// IsStarted reports whether Start has run without a matching Stop.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives once per reported change. Changes that arrive while
// nobody is reading are coalesced.
func (w *Watcher) Changed() <-chan struct{} { return w.changed }

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// PollInterval returns the stat interval of polling mode.
func (w *Watcher) PollInterval() time.Duration { return w.pollInterval }

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func (w *Watcher) runEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	name := filepath.Base(w.path)
	const interesting = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			// Journal and WAL files share the directory.
			if filepath.Base(ev.Name) != name || ev.Op&interesting == 0 {
				continue
			}
			// A rewrite shows up as remove then create; settle decides
			// once the burst is over.
			w.debouncer.Trigger(w.settle)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) runPoll(ctx context.Context) {
	t := time.NewTicker(w.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	st, err := statFile(w.path)
	if err != nil && !os.IsNotExist(err) {
		if os.IsPermission(err) {
			err = ErrPermission
		}
		w.onError(err)
		return
	}

	w.mu.Lock()
	prev := w.last
	w.last = st
	w.mu.Unlock()

	switch {
	case !st.differs(prev):
	case !st.ok:
		w.onError(ErrFileRemoved)
	default:
		w.debouncer.Trigger(w.notify)
	}
}

// settle reports a change if the file is back, or its removal.
func (w *Watcher) settle() {
	st, err := statFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			err = ErrFileRemoved
		}
		w.onError(err)
		return
	}
	w.mu.Lock()
	w.last = st
	w.mu.Unlock()
	w.notify()
}

func (w *Watcher) notify() {
	if !w.IsStarted() {
		return
	}
	w.onChange()
	select {
	case w.changed <- struct{}{}:
	default:
	}
}
