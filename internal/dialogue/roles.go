package dialogue

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var userKeywords = []string{
	"utilisateur", "user", "client", "étudiant", "etudiant", "student",
	"élève", "eleve", "apprenant",
}

var assistantKeywords = []string{
	"assistant", "tuteur", "tutrice", "prof", "teacher", "tutor",
	"serveur", "serveuse", "vendeur", "vendeuse",
}

// lettered matches generated speaker labels such as "Personne A" or
// "Speaker B".
var lettered = regexp.MustCompile(`^(?:personne|person|speaker|locuteur|locutrice|interlocuteur)\s*([ab])$`)

// RoleForSpeaker maps a speaker label to a role. "Personne A" is the user and
// "Personne B" the assistant; other labels are matched by keyword, user
// keywords winning over assistant keywords.
func RoleForSpeaker(label string) (Role, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	if m := lettered.FindStringSubmatch(label); m != nil {
		if m[1] == "a" {
			return RoleUser, true
		}
		return RoleAssistant, true
	}
	for _, kw := range userKeywords {
		if strings.Contains(label, kw) {
			return RoleUser, true
		}
	}
	for _, kw := range assistantKeywords {
		if strings.Contains(label, kw) {
			return RoleAssistant, true
		}
	}
	return "", false
}

// roleAssigner gives unknown speaker labels a stable role: a label keeps the
// role it first received, and a new label takes the opposite of the previous
// message's role.
type roleAssigner struct {
	known map[string]Role
	last  Role
}

func newRoleAssigner() *roleAssigner {
	return &roleAssigner{known: make(map[string]Role)}
}

func (a *roleAssigner) assign(speaker string) Role {
	key := strings.ToLower(strings.TrimSpace(speaker))

	role, ok := RoleForSpeaker(key)
	if !ok {
		if known, seen := a.known[key]; seen {
			role = known
		} else {
			role = a.next()
			a.known[key] = role
		}
	}

	a.last = role
	return role
}

func (a *roleAssigner) next() Role {
	if a.last == RoleUser {
		return RoleAssistant
	}
	return RoleUser
}

const maxSpeakerWords = 4

// speakerPattern matches "Speaker: text", "**Speaker:** text", "**Speaker**: text"
// and "*Speaker:* text".
var speakerPattern = regexp.MustCompile(`^(?:\*{1,2}|__)?([\p{L}][\p{L}\p{N}'’ .\-]{0,39}?)\s*(?:\*{1,2}|__)?\s*:((?:\*{1,2}|__)?\s*)(.*)$`)

// splitSpeaker separates a speaker label from the message. A colon not
// followed by whitespace only counts when the label is a known role keyword,
// so "Il est 10:30" stays a plain sentence.
func splitSpeaker(line string) (speaker, message string, ok bool) {
	m := speakerPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}

	speaker = strings.TrimSpace(m[1])
	message = strings.TrimSpace(m[3])
	if speaker == "" || message == "" {
		return "", "", false
	}
	if len(strings.Fields(speaker)) > maxSpeakerWords || utf8.RuneCountInString(speaker) > 40 {
		return "", "", false
	}
	if strings.Trim(m[2], "*_") == "" {
		if _, known := RoleForSpeaker(speaker); !known {
			return "", "", false
		}
	}
	return speaker, message, true
}
