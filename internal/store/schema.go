package store

// connPragmas rides in the DSN so the driver applies them to every
// pooled connection, not just whichever one runs a setup Exec.
const connPragmas = "_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=cache_size(-64000)" +
	"&_pragma=busy_timeout(5000)"

// The event_* columns are derived from event_data once at write time
// and queried directly thereafter. event_data stays authoritative.
const schemaEvents = `
CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    file_name   TEXT NOT NULL,
    line_number INTEGER NOT NULL,
    event_data  TEXT NOT NULL,
    user_name   TEXT NOT NULL,
    inserted_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
    event_type       TEXT,
    event_message    TEXT,
    event_session_id TEXT,
    event_uuid       TEXT,
    event_git_branch TEXT,
    event_timestamp  TEXT,
    event_model      TEXT,
    event_input_tokens                INTEGER,
    event_cache_creation_input_tokens INTEGER,
    event_cache_read_input_tokens     INTEGER,
    event_output_tokens               INTEGER,
    git_remote_url  TEXT,
    git_commit_hash TEXT,
    synced_at       TEXT DEFAULT NULL,
    UNIQUE (file_name, line_number)
);
`

const schemaIndexes = `
CREATE INDEX IF NOT EXISTS idx_events_file_name   ON events(file_name);
CREATE INDEX IF NOT EXISTS idx_events_user_name   ON events(user_name);
CREATE INDEX IF NOT EXISTS idx_events_inserted_at ON events(inserted_at);
CREATE INDEX IF NOT EXISTS idx_events_type        ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_session_id  ON events(event_session_id);
CREATE INDEX IF NOT EXISTS idx_events_uuid        ON events(event_uuid);
CREATE INDEX IF NOT EXISTS idx_events_timestamp   ON events(event_timestamp);
CREATE INDEX IF NOT EXISTS idx_events_model       ON events(event_model);
CREATE INDEX IF NOT EXISTS idx_events_git_remote  ON events(git_remote_url);
CREATE INDEX IF NOT EXISTS idx_events_synced_at   ON events(synced_at);
`

const schemaCursors = `
CREATE TABLE IF NOT EXISTS file_cursors (
    file_name  TEXT PRIMARY KEY,
    last_line  INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);
`

// events_fts is an external-content FTS5 table kept in sync by the
// triggers below, so external readers get text search without the
// pipeline ever touching it directly.
const schemaSearch = `
CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
    event_message,
    event_type,
    event_session_id,
    content=events,
    content_rowid=id,
    tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS events_fts_ai AFTER INSERT ON events
WHEN new.event_message IS NOT NULL BEGIN
    INSERT INTO events_fts(rowid, event_message, event_type, event_session_id)
    VALUES (new.id, new.event_message, new.event_type, new.event_session_id);
END;

CREATE TRIGGER IF NOT EXISTS events_fts_ad AFTER DELETE ON events
WHEN old.event_message IS NOT NULL BEGIN
    INSERT INTO events_fts(events_fts, rowid, event_message, event_type, event_session_id)
    VALUES ('delete', old.id, old.event_message, old.event_type, old.event_session_id);
END;

CREATE TRIGGER IF NOT EXISTS events_fts_au_del AFTER UPDATE ON events
WHEN old.event_message IS NOT NULL BEGIN
    INSERT INTO events_fts(events_fts, rowid, event_message, event_type, event_session_id)
    VALUES ('delete', old.id, old.event_message, old.event_type, old.event_session_id);
END;

CREATE TRIGGER IF NOT EXISTS events_fts_au_ins AFTER UPDATE ON events
WHEN new.event_message IS NOT NULL BEGIN
    INSERT INTO events_fts(rowid, event_message, event_type, event_session_id)
    VALUES (new.id, new.event_message, new.event_type, new.event_session_id);
END;
`
