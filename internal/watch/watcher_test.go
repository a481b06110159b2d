package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/deploy"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

type fakeDeploy struct {
	runs atomic.Int32
}

func (f *fakeDeploy) Run(ctx context.Context, opts deploy.Options) (*deploy.Report, error) {
	f.runs.Add(1)
	return &deploy.Report{}, nil
}

func newTestWatcher(t *testing.T) (*Watcher, *fakeDeploy) {
	t.Helper()

	root := t.TempDir()
	projects := filepath.Join(root, "projects")
	if err := os.MkdirAll(projects, 0o755); err != nil {
		t.Fatal(err)
	}

	fake := &fakeDeploy{}
	w := &Watcher{
		settings:          &config.Settings{Root: root, ProjectsDir: projects},
		deployHandler:     fake,
		filesystemHandler: utils.NewFilesystemExecutor(),
		debounce:          10 * time.Millisecond,
	}
	return w, fake
}

func waitForRuns(t *testing.T, fake *fakeDeploy, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fake.runs.Load() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("runs = %d, want at least %d", fake.runs.Load(), want)
}

func TestWatcherTriggersDeployOnChange(t *testing.T) {
	w, fake := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher a moment to register its targets
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(w.settings.ProjectsDir, "app.py"), []byte("print()\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitForRuns(t, fake, 1)
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
}

func TestWatcherIgnoresVenvAndDotfiles(t *testing.T) {
	w, fake := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(w.settings.ProjectsDir, ".env"), []byte("SECRET=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(w.settings.ProjectsDir, "venv"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(w.settings.ProjectsDir, "app.cpython-312.pyc"), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if n := fake.runs.Load(); n != 0 {
		t.Fatalf("runs = %d, want 0 for ignored paths", n)
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	w, fake := newTestWatcher(t)
	w.debounce = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(w.settings.ProjectsDir, "app.py"), []byte("print()\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitForRuns(t, fake, 1)
	time.Sleep(200 * time.Millisecond)
	if n := fake.runs.Load(); n != 1 {
		t.Fatalf("runs = %d, want one deploy for the burst", n)
	}
}
