package event

import (
	"bytes"
	"encoding/json"
)

// Sentinel replaces text the classifier flags as sensitive.
const Sentinel = "<SECRET REDACTED>"

// Classifier decides whether a text span may leave the machine. It
// returns the input unchanged, or a replacement (typically Sentinel).
// The classification algorithm itself lives outside this package.
type Classifier func(text string) string

// KeepAll is the pass-through classifier.
func KeepAll(text string) string { return text }

// Redact returns a copy of the payload with the classifier applied to
// the text fields of message content blocks. Only user and assistant
// records carry redactable content; anything else passes through
// untouched. The original payload is never modified: the stored copy
// stays complete, only the remote-bound copy is scrubbed.
func Redact(payload json.RawMessage, classify Classifier) json.RawMessage {
	if classify == nil {
		return payload
	}

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return payload
	}

	typ, _ := doc["type"].(string)
	if typ != "user" && typ != "assistant" && typ != "message" {
		return payload
	}
	msg, ok := doc["message"].(map[string]any)
	if !ok {
		return payload
	}
	blocks, ok := msg["content"].([]any)
	if !ok {
		return payload
	}

	changed := false
	for i, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if bt, _ := block["type"].(string); bt != "text" {
			continue
		}
		text, _ := block["text"].(string)
		if text == "" {
			continue
		}
		if redacted := classify(text); redacted != text {
			block["text"] = redacted
			blocks[i] = block
			changed = true
		}
	}
	if !changed {
		return payload
	}

	// Marshal without HTML escaping so the sentinel's angle brackets
	// survive as literal bytes rather than < escapes.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return payload
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
