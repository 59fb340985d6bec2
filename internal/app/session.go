package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"langtutor/internal/dialogue"
	"langtutor/internal/tts"
)

type Target string

const (
	TargetGenerated Target = "generated"
	TargetImported  Target = "imported"
	TargetPractice  Target = "practice"
)

func ParseTarget(s string) (Target, bool) {
	switch t := Target(s); t {
	case TargetGenerated, TargetImported, TargetPractice:
		return t, true
	}
	return "", false
}

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

type Flash struct {
	Kind    FlashKind
	Message string
}

// SessionState is everything one browser works on. Lock it for the whole
// request that reads or changes it.
type SessionState struct {
	sync.Mutex

	Generated *dialogue.Dialogue
	Imported  *dialogue.Dialogue
	Practice  *dialogue.Dialogue

	Transcript    string
	GrammarQ      string
	GrammarA      string
	CompleteAudio map[Target]string
	Voices        []tts.Voice
	LastExport    string

	flash *Flash
}

func newSessionState() *SessionState {
	return &SessionState{CompleteAudio: make(map[Target]string)}
}

func (s *SessionState) Dialogue(t Target) *dialogue.Dialogue {
	switch t {
	case TargetGenerated:
		return s.Generated
	case TargetImported:
		return s.Imported
	case TargetPractice:
		return s.Practice
	}
	return nil
}

func (s *SessionState) SetDialogue(t Target, d *dialogue.Dialogue) {
	switch t {
	case TargetGenerated:
		s.Generated = d
	case TargetImported:
		s.Imported = d
	case TargetPractice:
		s.Practice = d
	}
	delete(s.CompleteAudio, t)
}

func (s *SessionState) SetFlash(kind FlashKind, msg string) {
	s.flash = &Flash{Kind: kind, Message: msg}
}

// TakeFlash returns the pending flash message once.
func (s *SessionState) TakeFlash() *Flash {
	f := s.flash
	s.flash = nil
	return f
}

type sessionEntry struct {
	state    *SessionState
	lastSeen time.Time
}

// SessionStore keeps session state in memory keyed by a random id. Sessions
// idle for longer than the TTL are dropped.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Get returns the session for id, creating a new one with a fresh id when id
// is unknown or expired.
func (s *SessionStore) Get(id string) (string, *SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	if e, ok := s.sessions[id]; ok && id != "" {
		e.lastSeen = now
		return id, e.state
	}

	id = uuid.NewString()
	e := &sessionEntry{state: newSessionState(), lastSeen: now}
	s.sessions[id] = e
	return id, e.state
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and reports how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

func (s *SessionStore) sweepLocked(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
