package dialogue

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	FormatText     = ".txt"
	FormatJSON     = ".json"
	FormatCSV      = ".csv"
	FormatMarkdown = ".md"
)

func SupportedFormats() []string {
	return []string{FormatText, FormatJSON, FormatCSV, FormatMarkdown}
}

// NormalizeFormat lowercases an extension and adds the leading dot.
// ".markdown" is folded into ".md".
func NormalizeFormat(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if ext == ".markdown" {
		return FormatMarkdown
	}
	return ext
}

// Parse converts raw file content into a Dialogue. name is the uploaded
// file's base name and becomes the title when the file carries none.
func Parse(content []byte, ext, name string) (*Dialogue, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(content), "\r\n", "\n")

	var (
		d   *Dialogue
		err error
	)
	format := NormalizeFormat(ext)
	switch format {
	case FormatText:
		d = ParseText(text)
	case FormatMarkdown:
		d = ParseMarkdown(text)
	case FormatJSON:
		d, err = parseJSON([]byte(text))
	case FormatCSV:
		d, err = parseCSV(text)
	default:
		return nil, &UnsupportedFormatError{Ext: format}
	}
	if err != nil {
		return nil, err
	}
	if d.IsEmpty() {
		return nil, formatErr(strings.TrimPrefix(format, "."), "no messages found", nil)
	}

	if d.Title == "" {
		d.Title = titleFromName(name)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	return d, nil
}

// ParseFile is Parse with the format and title taken from a file path.
func ParseFile(content []byte, path string) (*Dialogue, error) {
	return Parse(content, filepath.Ext(path), filepath.Base(path))
}

func titleFromName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "." || base == "" {
		return "Dialogue importé"
	}
	return strings.NewReplacer("_", " ", "-", " ").Replace(base)
}

var (
	metadataPattern = regexp.MustCompile(`(?i)^(title|titre|context|contexte|level|niveau)\s*:\s*(.*)$`)
	stageDirection  = regexp.MustCompile(`^[(\[].*[)\]]$`)
)

// applyMetadata sets a header field and reports whether key was one.
func applyMetadata(d *Dialogue, key, value string) bool {
	value = strings.TrimSpace(value)
	switch strings.ToLower(key) {
	case "title", "titre":
		d.Title = value
	case "context", "contexte":
		d.Context = value
	case "level", "niveau":
		d.Level = levelOrDefault(value)
	default:
		return false
	}
	return true
}

// textContinuation starts a line that belongs verbatim to the previous
// message.
const textContinuation = "|"

// ParseText parses "Speaker: message" lines. Lines without a speaker continue
// the previous message; metadata lines are only read before the first message.
// A line starting with "|" is appended to the previous message as is, minus
// the marker and one space.
func ParseText(text string) *Dialogue {
	d := New("", LevelBeginner, "")
	roles := newRoleAssigner()

	for _, raw := range strings.Split(text, "\n") {
		if last := len(d.Messages) - 1; last >= 0 && strings.HasPrefix(raw, textContinuation) {
			rest := strings.TrimPrefix(raw[len(textContinuation):], " ")
			d.Messages[last].Content += "\n" + rest
			continue
		}

		line := strings.TrimSpace(raw)
		if line == "" || stageDirection.MatchString(line) {
			continue
		}

		if d.IsEmpty() {
			if m := metadataPattern.FindStringSubmatch(line); m != nil {
				applyMetadata(d, m[1], m[2])
				continue
			}
		}

		if speaker, msg, ok := splitSpeaker(line); ok {
			d.Messages = append(d.Messages, Message{Role: roles.assign(speaker), Content: msg})
			continue
		}

		if last := len(d.Messages) - 1; last >= 0 {
			d.Messages[last].Content += "\n" + line
		}
	}

	return d
}
