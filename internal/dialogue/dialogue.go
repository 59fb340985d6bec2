package dialogue

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole accepts only the canonical role names, case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	}
	return "", false
}

func (r Role) Opposite() Role {
	if r == RoleUser {
		return RoleAssistant
	}
	return RoleUser
}

// Label is the French speaker label used in text exports.
func (r Role) Label() string {
	if r == RoleUser {
		return "Utilisateur"
	}
	return "Assistant"
}

type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

var levelAliases = map[string]Level{
	"beginner":      LevelBeginner,
	"débutant":      LevelBeginner,
	"debutant":      LevelBeginner,
	"intermediate":  LevelIntermediate,
	"intermédiaire": LevelIntermediate,
	"intermediaire": LevelIntermediate,
	"advanced":      LevelAdvanced,
	"avancé":        LevelAdvanced,
	"avance":        LevelAdvanced,
}

func Levels() []Level {
	return []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}
}

func ParseLevel(s string) (Level, bool) {
	level, ok := levelAliases[strings.ToLower(strings.TrimSpace(s))]
	return level, ok
}

// levelOrDefault is used by importers, which never reject a file over its level.
func levelOrDefault(s string) Level {
	if level, ok := ParseLevel(s); ok {
		return level
	}
	return LevelBeginner
}

type Message struct {
	Role      Role
	Content   string
	AudioPath string
	Timestamp time.Time
}

type Dialogue struct {
	ID        string
	Title     string
	Level     Level
	Context   string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(title string, level Level, context string) *Dialogue {
	if level == "" {
		level = LevelBeginner
	}
	return &Dialogue{
		Title:     title,
		Level:     level,
		Context:   context,
		Messages:  make([]Message, 0),
		CreatedAt: time.Now(),
	}
}

func (d *Dialogue) AddMessage(role Role, content string) {
	now := time.Now()
	d.Messages = append(d.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	d.UpdatedAt = now
}

func (d *Dialogue) MessagesByRole(role Role) []Message {
	var out []Message
	for _, msg := range d.Messages {
		if msg.Role == role {
			out = append(out, msg)
		}
	}
	return out
}

// Recent returns at most the last n messages.
func (d *Dialogue) Recent(n int) []Message {
	if n <= 0 || len(d.Messages) <= n {
		return d.Messages
	}
	return d.Messages[len(d.Messages)-n:]
}

func (d *Dialogue) IsEmpty() bool {
	return len(d.Messages) == 0
}

// ClearAudio drops every message's audio path.
func (d *Dialogue) ClearAudio() {
	for i := range d.Messages {
		d.Messages[i].AudioPath = ""
	}
}
