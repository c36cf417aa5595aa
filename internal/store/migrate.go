package store

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/Zuo-Peng/ai-session-sync/internal/event"
)

// migrate brings an existing events table up to the current shape. Each
// step keys off the introspected schema rather than a stored version
// number, so a run interrupted mid-step resumes cleanly.
func (s *Store) migrate() error {
	cols, err := s.tableColumns("events")
	if err != nil {
		return err
	}

	if !cols["synced_at"] {
		log.Printf("migrating schema: adding synced_at column")
		if _, err := s.db.Exec("ALTER TABLE events ADD COLUMN synced_at TEXT DEFAULT NULL"); err != nil {
			return fmt.Errorf("add synced_at: %w", err)
		}
		if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_events_synced_at ON events(synced_at)"); err != nil {
			return fmt.Errorf("index synced_at: %w", err)
		}
	}

	if !cols["event_model"] {
		log.Printf("migrating schema: rebuilding events table with derived columns")
		if err := s.rebuildEventsTable(); err != nil {
			return fmt.Errorf("rebuild events table: %w", err)
		}
		if err := s.backfillDerived(); err != nil {
			return fmt.Errorf("backfill derived columns: %w", err)
		}
	}

	return nil
}

// rebuildEventsTable adds the derived columns via a shadow table: create
// the new shape, copy the non-derived columns across, drop the old
// table, rename, and restore indexes and any dependent views. Dependent
// views are captured first because dropping the table drops them.
func (s *Store) rebuildEventsTable() error {
	views, err := s.dependentViews("events")
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, v := range views {
		if _, err := tx.Exec("DROP VIEW IF EXISTS " + v.name); err != nil {
			return err
		}
	}

	shadow := strings.Replace(schemaEvents, "EXISTS events (", "EXISTS events_shadow (", 1)
	if _, err := tx.Exec(shadow); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO events_shadow
			(id, file_name, line_number, event_data, user_name, inserted_at,
			 git_remote_url, git_commit_hash, synced_at)
		SELECT id, file_name, line_number, event_data, user_name, inserted_at,
		       git_remote_url, git_commit_hash, synced_at
		FROM events`); err != nil {
		return err
	}

	if _, err := tx.Exec("DROP TABLE events"); err != nil {
		return err
	}
	if _, err := tx.Exec("ALTER TABLE events_shadow RENAME TO events"); err != nil {
		return err
	}
	if _, err := tx.Exec(schemaIndexes); err != nil {
		return err
	}
	for _, v := range views {
		if v.sql == "" {
			continue
		}
		if _, err := tx.Exec(v.sql); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// backfillDerived recomputes the derived columns from the raw payloads
// after a rebuild. Raw data is authoritative, so this is lossless.
func (s *Store) backfillDerived() error {
	rows, err := s.db.Query("SELECT id, event_data FROM events WHERE event_type IS NULL")
	if err != nil {
		return err
	}
	defer rows.Close()

	type pending struct {
		id   int64
		data []byte
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.data); err != nil {
			return err
		}
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(todo) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE events SET
			event_type = ?, event_message = ?, event_session_id = ?,
			event_uuid = ?, event_git_branch = ?, event_timestamp = ?,
			event_model = ?, event_input_tokens = ?,
			event_cache_creation_input_tokens = ?,
			event_cache_read_input_tokens = ?, event_output_tokens = ?
		WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range todo {
		d := event.Derive(p.data)
		if _, err := stmt.Exec(
			nullStr(d.Type), nullStr(d.Message), nullStr(d.SessionID),
			nullStr(d.UUID), nullStr(d.GitBranch), nullStr(d.Timestamp),
			nullStr(d.Model), d.InputTokens, d.CacheCreationInputTokens,
			d.CacheReadInputTokens, d.OutputTokens, p.id,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("migration: backfilled derived columns for %d row(s)", len(todo))
	return nil
}

// populateSearchIndex rebuilds events_fts when it is empty but the
// events table has messages, as happens right after the table rebuild or
// when upgrading a pre-search database.
func (s *Store) populateSearchIndex() error {
	var ftsCount, msgCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events_fts").Scan(&ftsCount); err != nil {
		return err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events WHERE event_message IS NOT NULL").Scan(&msgCount); err != nil {
		return err
	}
	if ftsCount > 0 || msgCount == 0 {
		return nil
	}

	log.Printf("populating search index with %d message(s)", msgCount)
	const batch = 1000
	for offset := 0; offset < msgCount; offset += batch {
		if _, err := s.db.Exec(`
			INSERT INTO events_fts(rowid, event_message, event_type, event_session_id)
			SELECT id, event_message, event_type, event_session_id
			FROM events
			WHERE event_message IS NOT NULL
			ORDER BY id
			LIMIT ? OFFSET ?`, batch, offset); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

type viewDef struct {
	name string
	sql  string
}

func (s *Store) dependentViews(table string) ([]viewDef, error) {
	rows, err := s.db.Query(
		"SELECT name, sql FROM sqlite_master WHERE type='view' AND sql LIKE '%'||?||'%'", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []viewDef
	for rows.Next() {
		var v viewDef
		var def sql.NullString
		if err := rows.Scan(&v.name, &def); err != nil {
			return nil, err
		}
		v.sql = def.String
		views = append(views, v)
	}
	return views, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
