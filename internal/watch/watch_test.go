package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// fakeBackend forwards relative paths pushed by the test.
type fakeBackend struct {
	paths chan string
	err   error
}

func newFakeBackend() *fakeBackend { return &fakeBackend{paths: make(chan string)} }

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Run(ctx context.Context, root string, out chan<- string) error {
	if f.err != nil {
		return f.err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-f.paths:
			send(ctx, out, filepath.Join(root, filepath.FromSlash(p)))
		}
	}
}

func (f *fakeBackend) touch(t *testing.T, rel string) {
	t.Helper()
	select {
	case f.paths <- rel:
	case <-time.After(time.Second):
		t.Fatalf("watcher did not accept %s", rel)
	}
}

type countingTask struct {
	name string
	runs atomic.Int32
	fn   func(n int32) error
}

func (c *countingTask) Name() string { return c.name }

func (c *countingTask) Run(context.Context) error {
	n := c.runs.Add(1)
	if c.fn != nil {
		return c.fn(n)
	}
	return nil
}

func startWatcher(t *testing.T, w *Watcher) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
			return nil
		}
	}
}

func TestDispatchMatchesBindings(t *testing.T) {
	styles := &countingTask{name: "styles"}
	scripts := &countingTask{name: "scripts"}
	backend := newFakeBackend()
	w := New(t.TempDir(), backend, 5*time.Millisecond, nil,
		Binding{Name: "styles", Files: fileset.MustNew("styles/sass/**/*"), Task: styles},
		Binding{Name: "scripts", Files: fileset.MustNew("js/**/*.js", "!js/**/*.min.js"), Task: scripts},
	)
	stop := startWatcher(t, w)

	backend.touch(t, "styles/sass/_vars.scss")
	require.Eventually(t, func() bool { return styles.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	backend.touch(t, "js/app.min.js")
	backend.touch(t, "js/.app.js.swp")
	backend.touch(t, "js/app.js~")
	backend.touch(t, "index.html")
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, scripts.runs.Load())

	backend.touch(t, "js/lib/util.js")
	require.Eventually(t, func() bool { return scripts.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), styles.runs.Load())

	require.NoError(t, stop())
}

func TestFailingTaskKeepsWatching(t *testing.T) {
	scripts := &countingTask{name: "scripts", fn: func(n int32) error {
		if n == 1 {
			return ferrors.ScriptError("bundle failed").Build()
		}
		return nil
	}}
	backend := newFakeBackend()
	w := New(t.TempDir(), backend, time.Millisecond, nil,
		Binding{Name: "scripts", Files: fileset.MustNew("js/*.js"), Task: pipeline.Recover(scripts)},
	)
	stop := startWatcher(t, w)

	backend.touch(t, "js/app.js")
	require.Eventually(t, func() bool { return scripts.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	backend.touch(t, "js/app.js")
	require.Eventually(t, func() bool { return scripts.runs.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, stop())
}

func TestUnrecoveredFailureKeepsWatching(t *testing.T) {
	styles := &countingTask{name: "styles", fn: func(int32) error { return errors.New("boom") }}
	backend := newFakeBackend()
	w := New(t.TempDir(), backend, time.Millisecond, nil,
		Binding{Name: "styles", Files: fileset.MustNew("**/*.scss"), Task: styles},
	)
	stop := startWatcher(t, w)

	for i := int32(1); i <= 3; i++ {
		backend.touch(t, "styles/sass/app.scss")
		require.Eventually(t, func() bool { return styles.runs.Load() == i }, 2*time.Second, 5*time.Millisecond)
	}
	require.NoError(t, stop())
}

func TestRunsAreSerializedAndCoalesced(t *testing.T) {
	release := make(chan struct{})
	var active, maxActive atomic.Int32
	task := &countingTask{name: "images", fn: func(n int32) error {
		cur := active.Add(1)
		defer active.Add(-1)
		if cur > maxActive.Load() {
			maxActive.Store(cur)
		}
		if n == 1 {
			<-release
		}
		return nil
	}}
	backend := newFakeBackend()
	w := New(t.TempDir(), backend, time.Millisecond, nil,
		Binding{Name: "images", Files: fileset.MustNew("images/src/**/*"), Task: task},
	)
	stop := startWatcher(t, w)

	backend.touch(t, "images/src/a.png")
	require.Eventually(t, func() bool { return task.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	for range 10 {
		backend.touch(t, "images/src/b.png")
	}
	close(release)

	require.Eventually(t, func() bool { return task.runs.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), task.runs.Load())
	assert.Equal(t, int32(1), maxActive.Load())

	require.NoError(t, stop())
}

func TestDebounceCollapsesBurst(t *testing.T) {
	task := &countingTask{name: "reload"}
	backend := newFakeBackend()
	w := New(t.TempDir(), backend, 100*time.Millisecond, nil,
		Binding{Name: "reload", Files: fileset.MustNew("**/*.html"), Task: task},
	)
	stop := startWatcher(t, w)

	for range 5 {
		backend.touch(t, "index.html")
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return task.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), task.runs.Load())

	require.NoError(t, stop())
}

func TestBackendFailureStopsWatcher(t *testing.T) {
	backend := &fakeBackend{err: errors.New("no inotify instances left")}
	w := New(t.TempDir(), backend, time.Millisecond, nil,
		Binding{Name: "x", Files: fileset.MustNew("**/*"), Task: &countingTask{name: "x"}},
	)
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryWatch))
}

func TestIgnored(t *testing.T) {
	for _, p := range []string{".DS_Store", "css/.app.scss.swp", "a.html~", "#index.html#", "x/4913", "Thumbs.db", "styles/x.tmp"} {
		assert.True(t, ignored(p), p)
	}
	for _, p := range []string{"index.html", "styles/sass/_vars.scss", "js/app.js"} {
		assert.False(t, ignored(p), p)
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(config.WatchConfig{Backend: config.WatchBackendPolling, Interval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "polling", b.Name())

	b, err = NewBackend(config.WatchConfig{Backend: config.WatchBackendNative})
	require.NoError(t, err)
	assert.Equal(t, "native", b.Name())

	_, err = NewBackend(config.WatchConfig{Backend: "carrier-pigeon"})
	require.Error(t, err)
}

func backendDelivers(t *testing.T, b Backend) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "js"), 0o755))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string, 16)
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, root, out) }()
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(root, "js", "app.js")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	deadline := time.After(3 * time.Second)
	for found := false; !found; {
		select {
		case p := <-out:
			found = p == target
		case <-deadline:
			t.Fatalf("no event for %s", target)
		}
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("backend did not stop")
	}
}

func TestPollingBackendDelivers(t *testing.T) {
	backendDelivers(t, &PollingBackend{Interval: 10 * time.Millisecond})
}

func TestNativeBackendDelivers(t *testing.T) {
	backendDelivers(t, &NativeBackend{})
}
