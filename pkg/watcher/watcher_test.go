package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.db")
	if err := os.WriteFile(path, []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption) *Watcher {
	t.Helper()
	w, err := NewWatcher(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func waitChanged(t *testing.T, w *Watcher, within time.Duration) {
	t.Helper()
	select {
	case <-w.Changed():
	case <-time.After(within):
		t.Fatal("timeout waiting for change notification")
	}
}

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })
	d.Cancel()
	time.Sleep(100 * time.Millisecond)
	if called.Load() {
		t.Error("callback ran after Cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	if d := NewDebouncer(0); d.Duration() != DefaultDebounceDuration {
		t.Errorf("duration = %v, want %v", d.Duration(), DefaultDebounceDuration)
	}
}

func TestWatcher_DetectsWrite(t *testing.T) {
	path := newTestFixture(t)
	var changed atomic.Bool
	w := startWatcher(t, path,
		WithDebounceDuration(50*time.Millisecond),
		WithOnChange(func() { changed.Store(true) }),
	)
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("more members"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, w, time.Second)
	if !changed.Load() {
		t.Error("OnChange was not called")
	}
}

func TestWatcher_RewriteIsAChangeNotARemoval(t *testing.T) {
	path := newTestFixture(t)
	var (
		mu     sync.Mutex
		gotErr error
	)
	w := startWatcher(t, path,
		WithDebounceDuration(100*time.Millisecond),
		WithOnError(func(err error) {
			mu.Lock()
			gotErr = err
			mu.Unlock()
		}),
	)
	if w.IsPolling() {
		t.Skip("fsnotify unavailable")
	}
	time.Sleep(50 * time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("regenerated"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, w, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if gotErr != nil {
		t.Errorf("rewrite reported %v", gotErr)
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	path := newTestFixture(t)
	w := startWatcher(t, path,
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
	)
	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}
	time.Sleep(60 * time.Millisecond)

	if err := os.WriteFile(path, []byte("changed while polling"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitChanged(t, w, time.Second)
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv("RN_FORCE_POLL", "yes")
	w := startWatcher(t, newTestFixture(t), WithPollInterval(25*time.Millisecond))
	if !w.IsPolling() {
		t.Fatal("expected polling mode with RN_FORCE_POLL set")
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	path := newTestFixture(t)
	errs := make(chan error, 4)
	startWatcher(t, path,
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) {
			select {
			case errs <- err:
			default:
			}
		}),
	)
	time.Sleep(60 * time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, ErrFileRemoved) {
			t.Errorf("err = %v, want ErrFileRemoved", err)
		}
	case <-time.After(time.Second):
		t.Fatal("removal not reported")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, err := NewWatcher(newTestFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	if w.IsStarted() {
		t.Error("started before Start")
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	w.Stop()
	if w.IsStarted() {
		t.Error("still started after Stop")
	}
	w.Stop()
}

func TestWatcher_PathIsAbsolute(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.WriteFile("demo.db", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher("demo.db")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(w.Path()) || filepath.Base(w.Path()) != "demo.db" {
		t.Errorf("path = %q", w.Path())
	}
	if w.PollInterval() != DefaultPollInterval {
		t.Errorf("poll interval = %v", w.PollInterval())
	}
}

func TestEnvBool(t *testing.T) {
	tests := map[string]bool{
		"1": true, "true": true, "YES": true, " on ": true, "y": true,
		"0": false, "false": false, "nope": false, "": false,
	}
	for v, want := range tests {
		t.Setenv("RN_TEST_BOOL", v)
		if got := envBool("RN_TEST_BOOL"); got != want {
			t.Errorf("envBool(%q) = %v, want %v", v, got, want)
		}
	}
}
