// SPDX-License-Identifier: MPL-2.0

package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kpmd/kpmd/internal/issue"
	"github.com/kpmd/kpmd/internal/kpmmgr"
	"github.com/kpmd/kpmd/internal/lifecycle"
	"github.com/kpmd/kpmd/internal/metrics"
	"github.com/kpmd/kpmd/internal/moddir"
	"github.com/kpmd/kpmd/internal/safemode"
	"github.com/kpmd/kpmd/internal/watch"
	"github.com/kpmd/kpmd/internal/testutil"
)

type (
	fakeProber struct{ err error }

	// fakeHelper records helper calls and always succeeds.
	fakeHelper struct {
		mu      sync.Mutex
		loads   []string
		unloads []string
	}

	failingDetector struct{}
)

func (p fakeProber) Probe(context.Context) (kpmmgr.Availability, error) {
	if p.err != nil {
		return kpmmgr.Availability{}, p.err
	}
	return kpmmgr.Availability{Path: "/bin/kpmmgr", Version: "1.0"}, nil
}

func (f *fakeHelper) Load(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, path)
	return nil
}

func (f *fakeHelper) Unload(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads = append(f.unloads, name)
	return nil
}

func (f *fakeHelper) calls() (loads, unloads []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.loads), slices.Clone(f.unloads)
}

func (failingDetector) InSafeMode(context.Context) (bool, error) {
	return false, errors.New("property service down")
}

func writeModules(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("kpm"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func noWatcher(t *testing.T) func(watch.Config) (Runner, error) {
	return func(watch.Config) (Runner, error) {
		t.Error("watcher must not be created")
		return nil, errors.New("unexpected watcher")
	}
}

func TestRun_HelperUnavailable(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "kpm")
	helper := &fakeHelper{}
	store := moddir.New(dir, moddir.DefaultExt, nil)
	probeErr := &kpmmgr.UnavailableError{Path: "/missing/kpmmgr", Err: os.ErrNotExist}

	seq := New(Config{
		Helper:     fakeProber{err: probeErr},
		Store:      store,
		Lifecycle:  lifecycle.New(helper, store),
		SafeMode:   safemode.Static(true),
		NewWatcher: noWatcher(t),
	})

	err := seq.Run(context.Background())
	if !errors.Is(err, kpmmgr.ErrHelperUnavailable) {
		t.Fatalf("Run() = %v, want ErrHelperUnavailable", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.HelperUnavailableId {
		t.Errorf("error should carry the helper-unavailable issue, got %#v", err)
	}
	if ae != nil && ae.Resource != "/missing/kpmmgr" {
		t.Errorf("Resource = %q, want helper path", ae.Resource)
	}
	if _, statErr := os.Stat(dir); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("module directory must not be created, stat = %v", statErr)
	}
	if loads, unloads := helper.calls(); len(loads)+len(unloads) != 0 {
		t.Errorf("no lifecycle calls expected, got loads=%v unloads=%v", loads, unloads)
	}
}

func TestRun_DirectoryFailure(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "kpm")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := moddir.New(blocker, moddir.DefaultExt, nil)

	err := New(Config{
		Helper:     fakeProber{},
		Store:      store,
		Lifecycle:  lifecycle.New(&fakeHelper{}, store),
		NewWatcher: noWatcher(t),
	}).Run(context.Background())

	if !errors.Is(err, moddir.ErrDirectoryAccess) {
		t.Fatalf("Run() = %v, want ErrDirectoryAccess", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.DirectoryAccessId {
		t.Errorf("error should carry the directory-access issue, got %v", err)
	}
}

func TestRun_SafeModePurges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeModules(t, dir, "a.kpm", "b.kpm")
	helper := &fakeHelper{}
	store := moddir.New(dir, moddir.DefaultExt, nil)
	mt := metrics.New()

	err := New(Config{
		Helper:     fakeProber{},
		Store:      store,
		Lifecycle:  lifecycle.New(helper, store, lifecycle.WithMetrics(mt)),
		SafeMode:   safemode.Static(true),
		Metrics:    mt,
		NewWatcher: noWatcher(t),
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	loads, unloads := helper.calls()
	slices.Sort(unloads)
	if !slices.Equal(unloads, []string{"a", "b"}) {
		t.Errorf("unloads = %v, want [a b]", unloads)
	}
	if len(loads) != 0 {
		t.Errorf("loads = %v, want none in safe mode", loads)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("directory should be empty after purge, has %d entries", len(entries))
	}
}

// startSequencer runs seq in the background and waits for its watcher to
// subscribe. The returned stop cancels the run and returns its error.
func startSequencer(t *testing.T, cfg Config) (stop func() error) {
	t.Helper()

	subscribed := make(chan *watch.Watcher, 1)
	cfg.NewWatcher = func(wc watch.Config) (Runner, error) {
		w, err := watch.New(wc)
		if err == nil {
			subscribed <- w
		}
		return w, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- New(cfg).Run(ctx) }()

	var w *watch.Watcher
	select {
	case w = <-subscribed:
	case err := <-errCh:
		cancel()
		t.Fatalf("Run returned before watching: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("watcher never created")
	}
	deadline := time.Now().Add(5 * time.Second)
	for w.State() != watch.StateWatching {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("watcher never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var once sync.Once
	var runErr error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-errCh:
			case <-time.After(5 * time.Second):
				runErr = errors.New("Run did not return after cancellation")
			}
		})
		return runErr
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func TestRun_WatchLoadsCreatedModule(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	helper := &fakeHelper{}
	store := moddir.New(dir, moddir.DefaultExt, nil)

	stop := startSequencer(t, Config{
		Helper:    fakeProber{},
		Store:     store,
		Lifecycle: lifecycle.New(helper, store),
		SafeMode:  failingDetector{},
	})

	path := filepath.Join(dir, "a.kpm")
	writeModules(t, dir, "a.kpm")

	deadline := time.Now().Add(5 * time.Second)
	for {
		if loads, _ := helper.calls(); len(loads) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("module was never loaded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := stop(); err != nil {
		t.Fatalf("Run() after cancel = %v, want nil", err)
	}

	loads, unloads := helper.calls()
	if !slices.Equal(loads, []string{path}) {
		t.Errorf("loads = %v, want exactly [%s]", loads, path)
	}
	if len(unloads) != 0 {
		t.Errorf("unloads = %v, want none", unloads)
	}
	if !testutil.FileExists(path) {
		t.Error("loaded module file must remain on disk")
	}
}

func TestRun_BulkLoadOnStart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeModules(t, dir, "a.kpm", "b.kpm", "notes.txt")
	helper := &fakeHelper{}
	store := moddir.New(dir, moddir.DefaultExt, nil)

	stop := startSequencer(t, Config{
		Helper:          fakeProber{},
		Store:           store,
		Lifecycle:       lifecycle.New(helper, store),
		BulkLoadOnStart: true,
	})
	if err := stop(); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	loads, _ := helper.calls()
	names := make([]string, 0, len(loads))
	for _, p := range loads {
		names = append(names, filepath.Base(p))
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"a.kpm", "b.kpm"}) {
		t.Errorf("bulk loads = %v, want [a.kpm b.kpm]", names)
	}
}

func TestRun_DetectorFailureSkipsBulkLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeModules(t, dir, "a.kpm")
	helper := &fakeHelper{}
	store := moddir.New(dir, moddir.DefaultExt, nil)

	stop := startSequencer(t, Config{
		Helper:          fakeProber{},
		Store:           store,
		Lifecycle:       lifecycle.New(helper, store),
		SafeMode:        failingDetector{},
		BulkLoadOnStart: true,
	})
	if err := stop(); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	loads, unloads := helper.calls()
	if len(loads)+len(unloads) != 0 {
		t.Errorf("unknown boot state must not touch modules, got loads=%v unloads=%v", loads, unloads)
	}
	if !testutil.FileExists(filepath.Join(dir, "a.kpm")) {
		t.Error("module file must be kept")
	}
}

func TestRun_DirectoryRemovedStopsWatching(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "kpm")
	helper := &fakeHelper{}
	store := moddir.New(dir, moddir.DefaultExt, nil)

	subscribed := make(chan *watch.Watcher, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(Config{
			Helper:    fakeProber{},
			Store:     store,
			Lifecycle: lifecycle.New(helper, store),
			NewWatcher: func(wc watch.Config) (Runner, error) {
				w, err := watch.New(wc)
				if err == nil {
					subscribed <- w
				}
				return w, err
			},
		}).Run(context.Background())
	}()

	var w *watch.Watcher
	select {
	case w = <-subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never created")
	}
	deadline := time.Now().Add(5 * time.Second)
	for w.State() != watch.StateWatching {
		if time.Now().After(deadline) {
			t.Fatal("watcher never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := os.Remove(dir); err != nil {
		t.Fatalf("remove directory: %v", err)
	}

	select {
	case err := <-errCh:
		var ae *issue.ActionableError
		if !errors.As(err, &ae) || ae.Issue != issue.WatcherFailedId {
			t.Errorf("Run() = %v, want watcher-failed error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() kept blocking after the directory was removed")
	}
	if _, unloads := helper.calls(); len(unloads) != 0 {
		t.Errorf("removing the directory must not unload anything, got %v", unloads)
	}
}
