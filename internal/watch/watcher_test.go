package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dorkodu/pharpub/internal/engine"
	"github.com/dorkodu/pharpub/internal/watch"
	"github.com/dorkodu/pharpub/pkg/mocks"
	"github.com/dorkodu/pharpub/pkg/types"
)

const settle = 50 * time.Millisecond

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, root string, opts ...watch.Option) <-chan []string {
	t.Helper()
	w, err := watch.New(root, mocks.NewMockLogger(), append([]watch.Option{watch.WithSettlingDelay(settle)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan []string, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(paths []string) { batches <- paths })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return batches
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case paths := <-batches:
		return paths
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func expectQuiet(t *testing.T, batches <-chan []string) {
	t.Helper()
	select {
	case paths := <-batches:
		t.Fatalf("expected no change batch, got %v", paths)
	case <-time.After(6 * settle):
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "index.php"), "<?php")
	batches := startWatcher(t, root)

	target := filepath.Join(root, "index.php")
	write(t, target, "<?php echo 2;")

	paths := waitBatch(t, batches)
	found := false
	for _, p := range paths {
		if p == target {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in batch, got %v", target, paths)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root)

	if err := os.Mkdir(filepath.Join(root, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	waitBatch(t, batches)

	write(t, filepath.Join(root, "lib", "app.php"), "<?php")
	paths := waitBatch(t, batches)
	if len(paths) == 0 {
		t.Fatal("expected changes inside the new directory")
	}
}

func TestWatcher_IgnoresExcludedAndOutput(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	write(t, filepath.Join(dist, "app.phar"), "old")
	write(t, filepath.Join(root, "docs", "README.md"), "# docs")

	batches := startWatcher(t, root,
		watch.WithExclusions("*.md"),
		watch.WithIgnoredDirs(dist))

	write(t, filepath.Join(dist, "app.phar"), "new")
	write(t, filepath.Join(root, "docs", "README.md"), "# changed")
	expectQuiet(t, batches)
}

func TestNew_Errors(t *testing.T) {
	if _, err := watch.New(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for missing directory")
	}
	if _, err := watch.New(t.TempDir(), nil, watch.WithExclusions("[unterminated")); err == nil {
		t.Error("expected error for invalid exclude glob")
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	calls map[string]int
	hit   chan string
}

func (f *fakePublisher) Publish(_ context.Context, job types.Job) engine.Result {
	f.mu.Lock()
	f.calls[job.Name]++
	f.mu.Unlock()
	f.hit <- job.Name
	return engine.Result{Job: job.Name}
}

func TestJobs_PublishesOnStartAndChange(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "index.php"), "<?php")

	pub := &fakePublisher{calls: map[string]int{}, hit: make(chan string, 16)}
	jobs := []types.Job{{Name: "app.phar", Source: "src", Output: "src/dist"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch.Jobs(ctx, pub, root, jobs, mocks.NewMockLogger(), settle) }()

	select {
	case <-pub.hit:
	case <-time.After(5 * time.Second):
		t.Fatal("expected initial publish")
	}

	write(t, filepath.Join(root, "src", "index.php"), "<?php echo 1;")
	select {
	case <-pub.hit:
	case <-time.After(5 * time.Second):
		t.Fatal("expected re-publish after change")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
