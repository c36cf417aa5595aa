package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorDefaultsToZero(t *testing.T) {
	s := openTestStore(t)

	n, err := s.LastLine("never-seen.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCursorUpsert(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetLastLine("a.jsonl", 3))
	require.NoError(t, s.SetLastLine("a.jsonl", 7))
	require.NoError(t, s.SetLastLine("a.jsonl", 7)) // repeat is safe

	n, err := s.LastLine("a.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	count, err := s.CursorCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFastForwardAll(t *testing.T) {
	s := openTestStore(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj-a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proj-a", "s1.jsonl"), []byte("{}\n{}\n{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "s2.jsonl"), []byte("{}\n"), 0o644))

	n, err := s.FastForwardAll(root, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	line, err := s.LastLine("proj-a/s1.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 3, line)

	line, err = s.LastLine("s2.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 1, line)
}

func TestFastForwardAllHonorsFilter(t *testing.T) {
	s := openTestStore(t)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj-a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proj-b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proj-a", "s1.jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proj-b", "s2.jsonl"), []byte("{}\n"), 0o644))

	n, err := s.FastForwardAll(root, "proj-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	line, err := s.LastLine("proj-b/s2.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 0, line)
}

func TestLegacyStateImport(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"proj/a.jsonl": 42, "b.jsonl": 7}`), 0o644))

	s, err := Open(filepath.Join(dir, "events.db"), "tester")
	require.NoError(t, err)
	defer s.Close()

	line, err := s.LastLine("proj/a.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 42, line)

	// Snapshot archived, not re-imported.
	_, err = os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(statePath + ".bak")
	assert.NoError(t, err)
}

func TestLegacyStateNotImportedTwice(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "events.db"), "tester")
	require.NoError(t, err)
	require.NoError(t, s.SetLastLine("existing.jsonl", 5))
	require.NoError(t, s.Close())

	// A stray snapshot must not clobber live cursors.
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"existing.jsonl": 1}`), 0o644))

	s, err = Open(filepath.Join(dir, "events.db"), "tester")
	require.NoError(t, err)
	defer s.Close()

	line, err := s.LastLine("existing.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 5, line)
}
