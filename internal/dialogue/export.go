package dialogue

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type jsonExport struct {
	ID        string        `json:"id,omitempty"`
	Title     string        `json:"title"`
	Level     Level         `json:"level"`
	Context   string        `json:"context"`
	Messages  []jsonMessage `json:"messages"`
	CreatedAt string        `json:"created_at,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
}

// Export renders d in the given format. Every format parses back into the
// same message sequence: text continuation lines are prefixed with "|" and
// Markdown messages escape inline markup and end wrapped lines with a
// backslash hard break.
func Export(d *Dialogue, format string) ([]byte, error) {
	switch NormalizeFormat(format) {
	case FormatJSON:
		return exportJSON(d)
	case FormatText:
		return exportText(d), nil
	case FormatMarkdown:
		return exportMarkdown(d), nil
	case FormatCSV:
		return exportCSV(d)
	default:
		return nil, &UnsupportedFormatError{Ext: NormalizeFormat(format)}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func exportJSON(d *Dialogue) ([]byte, error) {
	out := jsonExport{
		ID:        d.ID,
		Title:     d.Title,
		Level:     d.Level,
		Context:   d.Context,
		Messages:  make([]jsonMessage, 0, len(d.Messages)),
		CreatedAt: formatTime(d.CreatedAt),
		UpdatedAt: formatTime(d.UpdatedAt),
	}
	for _, msg := range d.Messages {
		content := msg.Content
		out.Messages = append(out.Messages, jsonMessage{
			Role:          string(msg.Role),
			Content:       &content,
			AudioFilePath: msg.AudioPath,
			Timestamp:     formatTime(msg.Timestamp),
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode dialogue: %w", err)
	}
	return buf.Bytes(), nil
}

func exportText(d *Dialogue) []byte {
	var b strings.Builder
	if d.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", d.Title)
	}
	fmt.Fprintf(&b, "Level: %s\n", d.Level)
	if d.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", oneLine(d.Context))
	}
	b.WriteString("\n")

	for _, msg := range d.Messages {
		lines := strings.Split(msg.Content, "\n")
		fmt.Fprintf(&b, "%s: %s\n", msg.Role.Label(), lines[0])
		for _, line := range lines[1:] {
			if line == "" {
				b.WriteString(textContinuation + "\n")
				continue
			}
			fmt.Fprintf(&b, "%s %s\n", textContinuation, line)
		}
	}
	return []byte(b.String())
}

func exportMarkdown(d *Dialogue) []byte {
	var b strings.Builder
	title := d.Title
	if title == "" {
		title = "Dialogue"
	}
	fmt.Fprintf(&b, "# %s\n\n", oneLine(title))
	fmt.Fprintf(&b, "**Level:** %s\n", d.Level)
	if d.Context != "" {
		fmt.Fprintf(&b, "**Context:** %s\n", oneLine(d.Context))
	}
	b.WriteString("\n---\n\n")

	for _, msg := range d.Messages {
		lines := strings.Split(msg.Content, "\n")
		for i, line := range lines {
			lines[i] = mdEscaper.Replace(line)
		}
		fmt.Fprintf(&b, "**%s:** %s\n\n", msg.Role.Label(), strings.Join(lines, "\\\n"))
	}
	return []byte(b.String())
}

func exportCSV(d *Dialogue) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"role", "content"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, msg := range d.Messages {
		if err := w.Write([]string{string(msg.Role), msg.Content}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// mdEscaper backslash-escapes the characters ParseMarkdown reads as inline
// markup.
var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"~", `\~`,
	"[", `\[`,
	"]", `\]`,
)

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
