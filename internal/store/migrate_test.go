package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oldSchema is the events table as the first release shipped it: raw
// columns only, no sync tracking, no derived columns, no search index.
const oldSchema = `
CREATE TABLE events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    file_name   TEXT NOT NULL,
    line_number INTEGER NOT NULL,
    event_data  TEXT NOT NULL,
    user_name   TEXT NOT NULL,
    inserted_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
    git_remote_url  TEXT,
    git_commit_hash TEXT,
    UNIQUE (file_name, line_number)
);
`

func seedOldDatabase(t *testing.T, dbPath string) {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(oldSchema)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO events (file_name, line_number, event_data, user_name)
		VALUES
			('a.jsonl', 1, '{"type":"user","sessionId":"s1","message":{"content":"find the bug"}}', 'tester'),
			('a.jsonl', 2, '{"type":"assistant","sessionId":"s1","message":{"model":"opus","content":[{"type":"text","text":"found it"}],"usage":{"input_tokens":5,"output_tokens":9}}}', 'tester')`)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE VIEW user_events AS SELECT file_name, line_number FROM events WHERE user_name = 'tester'`)
	require.NoError(t, err)
}

func TestMigrateOldDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	seedOldDatabase(t, dbPath)

	s, err := Open(dbPath, "tester")
	require.NoError(t, err)
	defer s.Close()

	// Raw payloads survived the rebuild.
	count, err := s.EventCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Derived columns were backfilled from the payloads.
	var model string
	err = s.Raw().QueryRow(
		"SELECT event_model FROM events WHERE file_name='a.jsonl' AND line_number=2").Scan(&model)
	require.NoError(t, err)
	assert.Equal(t, "opus", model)

	var tokens int64
	err = s.Raw().QueryRow(
		"SELECT event_output_tokens FROM events WHERE line_number=2").Scan(&tokens)
	require.NoError(t, err)
	assert.Equal(t, int64(9), tokens)

	// Sync tracking arrived with everything still pending.
	total, synced, pending, err := s.SyncStats()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, synced)
	assert.Equal(t, 2, pending)

	// The search index was populated from the migrated rows.
	hits, err := s.Search("bug", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	// The dependent view came back with the rebuilt table.
	var viewRows int
	err = s.Raw().QueryRow("SELECT COUNT(*) FROM user_events").Scan(&viewRows)
	require.NoError(t, err)
	assert.Equal(t, 2, viewRows)
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	seedOldDatabase(t, dbPath)

	for i := 0; i < 3; i++ {
		s, err := Open(dbPath, "tester")
		require.NoError(t, err)
		count, err := s.EventCount()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		require.NoError(t, s.Close())
	}
}

func TestMigrateAddsOnlySyncColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")

	// Current derived shape but predating sync tracking.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_name TEXT NOT NULL,
			line_number INTEGER NOT NULL,
			event_data TEXT NOT NULL,
			user_name TEXT NOT NULL,
			inserted_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
			event_type TEXT, event_message TEXT, event_session_id TEXT,
			event_uuid TEXT, event_git_branch TEXT, event_timestamp TEXT,
			event_model TEXT, event_input_tokens INTEGER,
			event_cache_creation_input_tokens INTEGER,
			event_cache_read_input_tokens INTEGER, event_output_tokens INTEGER,
			git_remote_url TEXT, git_commit_hash TEXT,
			UNIQUE (file_name, line_number)
		)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(dbPath, "tester")
	require.NoError(t, err)
	defer s.Close()

	cols, err := s.tableColumns("events")
	require.NoError(t, err)
	assert.True(t, cols["synced_at"])
}
