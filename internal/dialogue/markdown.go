package dialogue

import (
	"regexp"
	"strings"
)

var (
	mdRule      = regexp.MustCompile(`^(?:-{3,}|\*{3,}|_{3,})$`)
	mdHeading   = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	mdQuote     = regexp.MustCompile(`^(?:>\s?)+`)
	mdListItem  = regexp.MustCompile(`^(?:[-+*]|\d+[.)])\s+`)
	mdMetadata  = regexp.MustCompile(`(?i)^(?:\*\*|__)?(title|titre|context|contexte|level|niveau)\s*(?:\*\*|__)?\s*:\s*(?:\*\*|__)?\s*(.*?)\s*$`)
	mdBold      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdBoldAlt   = regexp.MustCompile(`__(.+?)__`)
	mdItalic    = regexp.MustCompile(`\*([^*]+)\*`)
	mdStrike    = regexp.MustCompile(`~~(.+?)~~`)
	mdCode      = regexp.MustCompile("`([^`]*)`")
	mdLink      = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdEmphasisR = strings.NewReplacer("**", "", "__", "")
)

// ParseMarkdown reads dialogue lines out of a Markdown document. The first
// level-one heading is the title; labelled metadata lines never become
// messages. A message line ending in a backslash hard break continues on the
// next line, and backslash-escaped punctuation is kept literally.
func ParseMarkdown(text string) *Dialogue {
	d := New("", LevelBeginner, "")
	roles := newRoleAssigner()

	continued := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		wrapped := hasHardBreak(line)
		if wrapped {
			line = line[:len(line)-1]
		}

		if last := len(d.Messages) - 1; continued && last >= 0 {
			d.Messages[last].Content += "\n" + inlineText(line)
			continued = wrapped
			continue
		}
		continued = false

		if line == "" || mdRule.MatchString(line) {
			continue
		}

		if m := mdHeading.FindStringSubmatch(line); m != nil {
			if m[1] == "#" && d.Title == "" {
				d.Title = cleanInline(m[2])
			}
			continue
		}

		line = mdQuote.ReplaceAllString(line, "")
		line = strings.TrimSpace(mdListItem.ReplaceAllString(line, ""))

		if m := mdMetadata.FindStringSubmatch(line); m != nil {
			applyMetadata(d, m[1], cleanInline(m[2]))
			continue
		}

		speaker, msg, ok := splitSpeaker(line)
		if !ok {
			continue
		}
		msg = inlineText(msg)
		if msg == "" {
			continue
		}
		speaker = mdEmphasisR.Replace(strings.Trim(speaker, "*_ "))
		d.Messages = append(d.Messages, Message{Role: roles.assign(speaker), Content: msg})
		continued = wrapped
	}

	return d
}

// cleanInline strips emphasis, code and link markup.
func cleanInline(s string) string {
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdCode.ReplaceAllString(s, "$1")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdBoldAlt.ReplaceAllString(s, "$1")
	s = mdStrike.ReplaceAllString(s, "$1")
	s = mdItalic.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// mdEscapable lists the punctuation a backslash escapes, each mapped to a
// private-use rune while inline markup is stripped.
const mdEscapable = "\\*_`~[]"

const mdPlaceholder = '\uE000'

// inlineText strips inline markup from s and resolves backslash escapes.
func inlineText(s string) string {
	if !strings.Contains(s, `\`) {
		return cleanInline(s)
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			if idx := strings.IndexByte(mdEscapable, s[i+1]); idx >= 0 {
				b.WriteRune(mdPlaceholder + rune(idx))
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}

	return strings.Map(func(r rune) rune {
		if idx := int(r - mdPlaceholder); idx >= 0 && idx < len(mdEscapable) {
			return rune(mdEscapable[idx])
		}
		return r
	}, cleanInline(b.String()))
}

// hasHardBreak reports whether line ends in an unescaped backslash.
func hasHardBreak(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}
