// Package tts wraps the text-to-speech services used to voice dialogues.
package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"langtutor/internal/dialogue"
	"langtutor/internal/provider"
)

const (
	DefaultLanguage = "fr-FR"
	defaultTimeout  = 60 * time.Second
)

var ErrEmptyText = errors.New("tts: empty text")

type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatOGG Format = "ogg"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatMP3, FormatWAV, FormatOGG:
		return f, nil
	case "":
		return FormatMP3, nil
	}
	return "", fmt.Errorf("unsupported audio format %q", s)
}

func (f Format) Ext() string {
	return "." + string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatOGG:
		return "audio/ogg"
	}
	return "audio/mpeg"
}

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

func (g Gender) Opposite() Gender {
	if g == GenderMale {
		return GenderFemale
	}
	return GenderMale
}

// GenderFor picks the voice gender for a dialogue role: the assistant speaks
// with the configured gender, the user with the other one.
func GenderFor(role dialogue.Role, assistant Gender) Gender {
	if assistant != GenderMale {
		assistant = GenderFemale
	}
	if role == dialogue.RoleUser {
		return assistant.Opposite()
	}
	return assistant
}

// VoicePair maps a gender to a provider voice name.
type VoicePair struct {
	Female string
	Male   string
}

func (p VoicePair) Pick(g Gender) string {
	if g == GenderMale && p.Male != "" {
		return p.Male
	}
	if p.Female != "" {
		return p.Female
	}
	return p.Male
}

type Request struct {
	Text string
	// Voice overrides the gender based selection.
	Voice        string
	LanguageCode string
	Gender       Gender
	Format       Format
}

// Audio is the synthesized result. Format is what the provider actually
// produced, which may differ from the requested one.
type Audio struct {
	Data   []byte
	Format Format
}

type Voice struct {
	Name         string
	LanguageCode string
	Gender       Gender
}

type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Audio, error)
	Voices(ctx context.Context, languageCode string) ([]Voice, error)
}

func (r Request) normalize() (Request, error) {
	r.Text = strings.TrimSpace(r.Text)
	if r.Text == "" {
		return r, ErrEmptyText
	}
	if r.LanguageCode == "" {
		r.LanguageCode = DefaultLanguage
	}
	if r.Gender == "" {
		r.Gender = GenderFemale
	}
	if r.Format == "" {
		r.Format = FormatMP3
	}
	return r, nil
}

// voiceName resolves the voice for a request against a provider's pair.
func (r Request) voiceName(pair VoicePair) string {
	if r.Voice != "" {
		return r.Voice
	}
	return pair.Pick(r.Gender)
}

func observe(providerName, op string, start time.Time, err error) {
	provider.Observe("tts", providerName, op, start, err)
}

func parseGender(s string) Gender {
	switch strings.ToLower(s) {
	case "male":
		return GenderMale
	case "female":
		return GenderFemale
	}
	return ""
}
