// Package event parses one JSONL line of a session log into a structured
// record and derives the queryable fields from its payload.
package event

import (
	"encoding/json"
	"strings"
)

// Event is one record extracted from one line of one source file.
// Payload is the authoritative raw JSON and is stored unmodified;
// the derived fields are computed once here and queried directly
// from the store thereafter.
type Event struct {
	FileName   string
	LineNumber int
	Payload    json.RawMessage

	Derived Derived

	// Git context resolved for the working directory active at
	// ingestion time. Empty when not inside a repository.
	GitRemoteURL  string
	GitCommitHash string
}

// Derived holds the fields extracted from the payload at write time.
type Derived struct {
	Type                     string
	Message                  string
	SessionID                string
	UUID                     string
	GitBranch                string
	Timestamp                string
	Model                    string
	InputTokens              int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
	OutputTokens             int64
}

type record struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	SessionID string          `json:"sessionId"`
	GitBranch string          `json:"gitBranch"`
	Timestamp string          `json:"timestamp"`
	Content   json.RawMessage `json:"content"`
	Message   *message        `json:"message"`
}

type message struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
	Usage   *usage          `json:"usage"`
}

type usage struct {
	InputTokens              int64 `json:"input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Parse validates one line as a JSON object and returns the event for it.
// The payload keeps the line's exact bytes.
func Parse(fileName string, lineNumber int, line []byte) (Event, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Event{}, err
	}

	payload := make(json.RawMessage, len(line))
	copy(payload, line)

	return Event{
		FileName:   fileName,
		LineNumber: lineNumber,
		Payload:    payload,
		Derived:    derive(rec),
	}, nil
}

// Derive recomputes the derived fields from a stored payload. Used when
// a schema migration has to backfill derived columns for existing rows.
func Derive(payload []byte) Derived {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Derived{}
	}
	return derive(rec)
}

// Cwd returns the working directory recorded in the payload, if any.
// Used to resolve git context for the file-processing pass.
func Cwd(line []byte) string {
	var rec struct {
		Cwd string `json:"cwd"`
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return ""
	}
	return rec.Cwd
}

func derive(rec record) Derived {
	d := Derived{
		Type:      rec.Type,
		UUID:      rec.UUID,
		SessionID: rec.SessionID,
		GitBranch: rec.GitBranch,
		Timestamp: rec.Timestamp,
		Message:   extractMessage(rec),
	}
	if rec.Message != nil {
		d.Model = rec.Message.Model
		if u := rec.Message.Usage; u != nil {
			d.InputTokens = u.InputTokens
			d.CacheCreationInputTokens = u.CacheCreationInputTokens
			d.CacheReadInputTokens = u.CacheReadInputTokens
			d.OutputTokens = u.OutputTokens
		}
	}
	return d
}

// extractMessage assembles the human-readable message text. Payloads keep
// it in one of three places, tried in priority order: an array of content
// blocks under message.content, a plain string there, or a top-level
// content field.
func extractMessage(rec record) string {
	if rec.Message != nil && len(rec.Message.Content) > 0 {
		if s := textFromBlocks(rec.Message.Content); s != "" {
			return s
		}
		var plain string
		if err := json.Unmarshal(rec.Message.Content, &plain); err == nil && plain != "" {
			return plain
		}
	}
	if len(rec.Content) > 0 {
		var plain string
		if err := json.Unmarshal(rec.Content, &plain); err == nil {
			return plain
		}
	}
	return ""
}

func textFromBlocks(raw json.RawMessage) string {
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}
