package store

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Zuo-Peng/ai-session-sync/internal/scan"
)

// maxLineSize bounds a single JSONL line; events with large tool output
// can run into the megabytes.
const maxLineSize = 10 * 1024 * 1024

// LastLine returns the cursor for a source file, 0 when unseen.
func (s *Store) LastLine(fileName string) (int, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT last_line FROM file_cursors WHERE file_name = ?", fileName,
	).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

// SetLastLine durably advances the cursor. Calling it repeatedly with
// the same or an increasing value is safe.
func (s *Store) SetLastLine(fileName string, line int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO file_cursors (file_name, last_line, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		ON CONFLICT(file_name) DO UPDATE SET
			last_line = excluded.last_line,
			updated_at = excluded.updated_at`,
		fileName, line)
	return err
}

// FastForwardAll sets every matching file's cursor to its current line
// count without ingesting anything, deliberately skipping the backlog.
// filter, when non-empty, restricts the pass to identities with that
// prefix.
func (s *Store) FastForwardAll(root, filter string) (int, error) {
	files, err := scan.Walk(root)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", root, err)
	}

	type update struct {
		name string
		line int
	}
	var updates []update
	for _, fi := range files {
		if filter != "" && !strings.HasPrefix(fi.Rel, filter) {
			continue
		}
		n, err := countLines(fi.Path)
		if err != nil {
			log.Printf("skip-backlog: reading %s: %v", fi.Rel, err)
			continue
		}
		if n > 0 {
			updates = append(updates, update{fi.Rel, n})
		}
	}
	if len(updates) == 0 {
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
		INSERT INTO file_cursors (file_name, last_line, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		ON CONFLICT(file_name) DO UPDATE SET
			last_line = excluded.last_line,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.Exec(u.name, u.line); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(updates), nil
}

// CursorCount returns the number of tracked source files.
func (s *Store) CursorCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM file_cursors").Scan(&n)
	return n, err
}

// importLegacyState imports a plain key-value cursor snapshot left by
// the old monitor, once, then archives it. Skipped whenever the cursor
// table already has rows.
func (s *Store) importLegacyState(statePath string) error {
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	n, err := s.CursorCount()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var legacy map[string]int
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("parse %s: %w", statePath, err)
	}
	if len(legacy) == 0 {
		return nil
	}

	log.Printf("importing %d cursor(s) from legacy state file", len(legacy))
	for name, line := range legacy {
		if err := s.SetLastLine(name, line); err != nil {
			return err
		}
	}

	if err := os.Rename(statePath, statePath+".bak"); err != nil {
		return fmt.Errorf("archive %s: %w", statePath, err)
	}
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	n := 0
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
