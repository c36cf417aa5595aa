package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Zuo-Peng/ai-session-sync/internal/event"
)

// StoredEvent is an event row as handed to the sync worker.
type StoredEvent struct {
	ID            int64
	FileName      string
	LineNumber    int
	Payload       json.RawMessage
	GitRemoteURL  string
	GitCommitHash string
}

// InsertBatch writes the events in one transaction. Duplicate
// (file_name, line_number) pairs are silently ignored, so re-ingesting a
// file after a crash mid-batch is safe. The returned count reflects the
// rows checked, not necessarily net-new rows; ingestion progress is
// driven by the cursor, not by this number.
func (s *Store) InsertBatch(events []event.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO events
			(file_name, line_number, event_data, user_name,
			 event_type, event_message, event_session_id, event_uuid,
			 event_git_branch, event_timestamp, event_model,
			 event_input_tokens, event_cache_creation_input_tokens,
			 event_cache_read_input_tokens, event_output_tokens,
			 git_remote_url, git_commit_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, ev := range events {
		d := ev.Derived
		if _, err := stmt.Exec(
			ev.FileName, ev.LineNumber, string(ev.Payload), s.userName,
			nullStr(d.Type), nullStr(d.Message), nullStr(d.SessionID),
			nullStr(d.UUID), nullStr(d.GitBranch), nullStr(d.Timestamp),
			nullStr(d.Model), d.InputTokens, d.CacheCreationInputTokens,
			d.CacheReadInputTokens, d.OutputTokens,
			nullStr(ev.GitRemoteURL), nullStr(ev.GitCommitHash),
		); err != nil {
			return 0, fmt.Errorf("insert %s:%d: %w", ev.FileName, ev.LineNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(events), nil
}

// Unsynced returns up to limit events not yet acknowledged by the remote
// collector, most recent first.
func (s *Store) Unsynced(limit int) ([]StoredEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, file_name, line_number, event_data, git_remote_url, git_commit_hash
		FROM events
		WHERE synced_at IS NULL
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			ev           StoredEvent
			data         []byte
			remote, hash sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.FileName, &ev.LineNumber, &data, &remote, &hash); err != nil {
			return nil, err
		}
		ev.Payload = json.RawMessage(data)
		ev.GitRemoteURL = remote.String
		ev.GitCommitHash = hash.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MarkSynced records the remote acknowledgment for an event. The
// transition is one-way: a second call finds synced_at already set and
// is a no-op.
func (s *Store) MarkSynced(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE events
		SET synced_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')
		WHERE id = ? AND synced_at IS NULL`, id)
	return err
}

// SyncStats reports total, synced and pending event counts.
func (s *Store) SyncStats() (total, synced, pending int, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&total); err != nil {
		return 0, 0, 0, err
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM events WHERE synced_at IS NOT NULL").Scan(&synced); err != nil {
		return 0, 0, 0, err
	}
	return total, synced, total - synced, nil
}

// EventCount returns the number of stored events.
func (s *Store) EventCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}
