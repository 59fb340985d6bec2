package dialogue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type jsonMessage struct {
	Role          string  `json:"role"`
	Content       *string `json:"content"`
	AudioFilePath string  `json:"audio_file_path,omitempty"`
	Timestamp     string  `json:"timestamp,omitempty"`
}

type jsonDialogue struct {
	ID        string          `json:"id,omitempty"`
	Title     string          `json:"title"`
	Level     string          `json:"level"`
	Context   string          `json:"context"`
	Messages  json.RawMessage `json:"messages"`
	CreatedAt string          `json:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseJSON(data []byte) (*Dialogue, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, formatErr("json", "empty document", nil)
	}

	if trimmed[0] == '[' {
		return parseJSONList(trimmed)
	}

	var doc jsonDialogue
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, formatErr("json", "invalid document", err)
	}
	if len(doc.Messages) == 0 || string(doc.Messages) == "null" {
		return nil, formatErr("json", "missing \"messages\" list", nil)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(doc.Messages, &entries); err != nil {
		return nil, formatErr("json", "\"messages\" is not a list", nil)
	}

	d := New(strings.TrimSpace(doc.Title), levelOrDefault(doc.Level), strings.TrimSpace(doc.Context))
	d.ID = doc.ID
	if t := parseTimestamp(doc.CreatedAt); !t.IsZero() {
		d.CreatedAt = t
	}
	d.UpdatedAt = parseTimestamp(doc.UpdatedAt)

	for i, raw := range entries {
		msg, err := decodeJSONMessage(raw)
		if err != nil {
			return nil, formatErr("json", fmt.Sprintf("message %d", i+1), err)
		}
		d.Messages = append(d.Messages, msg)
	}
	return d, nil
}

func decodeJSONMessage(raw json.RawMessage) (Message, error) {
	var m jsonMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("entry must be an object with role and content")
	}
	if m.Content == nil || strings.TrimSpace(*m.Content) == "" {
		return Message{}, fmt.Errorf("missing content")
	}

	role, ok := ParseRole(m.Role)
	if !ok {
		role, ok = RoleForSpeaker(m.Role)
	}
	if !ok {
		return Message{}, fmt.Errorf("unknown role %q", m.Role)
	}

	return Message{
		Role:      role,
		Content:   strings.TrimSpace(*m.Content),
		AudioPath: m.AudioFilePath,
		Timestamp: parseTimestamp(m.Timestamp),
	}, nil
}

// parseJSONList accepts a bare list of strings (alternating roles, user first)
// or a bare list of message objects.
func parseJSONList(data []byte) (*Dialogue, error) {
	d := New("", LevelBeginner, "")

	var lines []string
	if err := json.Unmarshal(data, &lines); err == nil {
		role := RoleUser
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			d.Messages = append(d.Messages, Message{Role: role, Content: line})
			role = role.Opposite()
		}
		return d, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, formatErr("json", "invalid document", err)
	}
	for i, raw := range entries {
		msg, err := decodeJSONMessage(raw)
		if err != nil {
			return nil, formatErr("json", fmt.Sprintf("message %d", i+1), err)
		}
		d.Messages = append(d.Messages, msg)
	}
	return d, nil
}
