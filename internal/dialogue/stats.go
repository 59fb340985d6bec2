package dialogue

import (
	"math"
	"unicode/utf8"
)

type Stats struct {
	Title             string
	Level             Level
	TotalMessages     int
	UserMessages      int
	AssistantMessages int
	// AverageLength is in characters, rounded to one decimal.
	AverageLength float64
}

func (d *Dialogue) Stats() Stats {
	s := Stats{
		Title:         d.Title,
		Level:         d.Level,
		TotalMessages: len(d.Messages),
	}

	chars := 0
	for _, msg := range d.Messages {
		switch msg.Role {
		case RoleUser:
			s.UserMessages++
		case RoleAssistant:
			s.AssistantMessages++
		}
		chars += utf8.RuneCountInString(msg.Content)
	}

	if s.TotalMessages > 0 {
		avg := float64(chars) / float64(s.TotalMessages)
		s.AverageLength = math.Round(avg*10) / 10
	}
	return s
}
