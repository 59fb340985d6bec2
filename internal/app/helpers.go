package app

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"langtutor/internal/dialogue"
)

const maxFileStem = 50

var sanitizeRegex = regexp.MustCompile(`[^a-z0-9_-]+`)

var accentFolds = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"ç", "c",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"œ", "oe", "æ", "ae",
)

func sanitizeForPath(s string) string {
	s = accentFolds.Replace(strings.ToLower(s))
	s = sanitizeRegex.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxFileStem {
		s = strings.TrimRight(s[:maxFileStem], "_")
	}
	return s
}

func exportFileName(d *dialogue.Dialogue, ext string, now time.Time) string {
	stem := sanitizeForPath(d.Title)
	if stem == "" {
		stem = "dialogue"
	}
	return fmt.Sprintf("%s_%s%s", stem, now.Format("20060102_150405"), ext)
}

// Preview shortens text for log lines and flash messages.
func Preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "…"
}
