package store

import "database/sql"

// SearchHit is one full-text match, best-ranked first.
type SearchHit struct {
	ID        int64
	FileName  string
	Type      string
	SessionID string
	Message   string
}

// Search runs an FTS5 MATCH over message text, event type and session
// id. This is the read-side boundary for external tools; the ingestion
// pipeline never queries it.
func (s *Store) Search(query string, limit int) ([]SearchHit, error) {
	rows, err := s.db.Query(`
		SELECT e.id, e.file_name, e.event_type, e.event_session_id, e.event_message
		FROM events_fts f
		JOIN events e ON e.id = f.rowid
		WHERE events_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			h                  SearchHit
			typ, session, text sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.FileName, &typ, &session, &text); err != nil {
			return nil, err
		}
		h.Type = typ.String
		h.SessionID = session.String
		h.Message = text.String
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchIndexCount returns the number of indexed rows, for integrity
// checks against EventCount.
func (s *Store) SearchIndexCount() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM events_fts").Scan(&n)
	return n, err
}
