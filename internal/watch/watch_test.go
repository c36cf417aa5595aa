package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) seen(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, root string, rec *recorder) {
	t.Helper()
	w, err := New(root, rec.handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the event loop a moment to start draining.
	time.Sleep(50 * time.Millisecond)
}

func TestWatcherReportsNewSessionFile(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	path := filepath.Join(root, "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"user"}`+"\n"), 0o644))

	assert.Eventually(t, func() bool { return rec.seen(path) },
		3*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	other := filepath.Join(root, "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x\n"), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.False(t, rec.seen(other))
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	sub := filepath.Join(root, "project")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Let the create event register the new directory first.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"user"}`+"\n"), 0o644))

	assert.Eventually(t, func() bool { return rec.seen(path) },
		3*time.Second, 10*time.Millisecond)
}

func TestWatcherReportsFilesInsideRenamedInDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	require.NoError(t, os.Mkdir(root, 0o755))

	// Stage a directory that already contains a session file, then move
	// it into the watched root in one rename.
	staged := filepath.Join(base, "staged")
	require.NoError(t, os.Mkdir(staged, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(staged, "s.jsonl"), []byte(`{"type":"user"}`+"\n"), 0o644))

	rec := &recorder{}
	startWatcher(t, root, rec)

	moved := filepath.Join(root, "project")
	require.NoError(t, os.Rename(staged, moved))

	assert.Eventually(t, func() bool { return rec.seen(filepath.Join(moved, "s.jsonl")) },
		3*time.Second, 10*time.Millisecond)
}

func TestWatcherCoversExistingSubdirectories(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "existing")
	require.NoError(t, os.Mkdir(sub, 0o755))

	rec := &recorder{}
	startWatcher(t, root, rec)

	path := filepath.Join(sub, "s.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"user"}`+"\n"), 0o644))

	assert.Eventually(t, func() bool { return rec.seen(path) },
		3*time.Second, 10*time.Millisecond)
}
