package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"langtutor/internal/dialogue"
	"langtutor/internal/storage"
	"langtutor/internal/tts"
)

type AudioOption func(*audioJob)

// WithVoice forces one provider voice for every message instead of the
// gender based choice.
func WithVoice(name string) AudioOption {
	return func(j *audioJob) {
		j.voice = name
	}
}

type audioJob struct {
	ctx     context.Context
	service *Service
	d       *dialogue.Dialogue
	voice   string
}

func (s *Service) newAudioJob(ctx context.Context, d *dialogue.Dialogue, opts []AudioOption) *audioJob {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	job := &audioJob{ctx: ctx, service: s, d: d}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

// GenerateMessageAudio voices one message and records the file on it.
func (s *Service) GenerateMessageAudio(ctx context.Context, d *dialogue.Dialogue, index int, opts ...AudioOption) (string, error) {
	if index < 0 || index >= len(d.Messages) {
		return "", &ValidationError{Problems: []string{fmt.Sprintf("message %d does not exist", index)}}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.newAudioJob(ctx, d, opts).message(index)
}

// GenerateDialogueAudio voices every message that has no audio yet and
// returns how many files were written.
func (s *Service) GenerateDialogueAudio(ctx context.Context, d *dialogue.Dialogue, opts ...AudioOption) (int, error) {
	job := s.newAudioJob(ctx, d, opts)

	slog.Info("Generating dialogue audio", "id", d.ID, "messages", len(d.Messages), "provider", s.tts.Name())
	generated := 0
	for i, msg := range d.Messages {
		if hasAudio(msg) || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if _, err := job.messageWithTimeout(i); err != nil {
			return generated, err
		}
		generated++
	}
	return generated, nil
}

// GenerateCompleteAudio joins the audio of all messages into one file,
// generating the missing parts first.
func (s *Service) GenerateCompleteAudio(ctx context.Context, d *dialogue.Dialogue, opts ...AudioOption) (string, error) {
	if d.IsEmpty() {
		return "", &ValidationError{Problems: []string{"dialogue has no messages"}}
	}
	if _, err := s.GenerateDialogueAudio(ctx, d, opts...); err != nil {
		return "", err
	}

	var (
		parts  [][]byte
		format tts.Format
	)
	for i, msg := range d.Messages {
		if msg.AudioPath == "" {
			continue
		}
		data, err := os.ReadFile(msg.AudioPath)
		if err != nil {
			return "", fmt.Errorf("read audio for message %d: %w", i, err)
		}
		f := formatOf(msg.AudioPath)
		if format == "" {
			format = f
		} else if f != format {
			return "", fmt.Errorf("cannot join %s and %s audio", format, f)
		}
		parts = append(parts, data)
	}
	if len(parts) == 0 {
		return "", errors.New("no audio to join")
	}

	var (
		merged []byte
		err    error
	)
	switch format {
	case tts.FormatWAV:
		merged, err = tts.MergeWAV(parts)
	case tts.FormatMP3:
		merged = tts.MergeMP3(parts)
	default:
		err = fmt.Errorf("joining %s audio is not supported", format)
	}
	if err != nil {
		return "", fmt.Errorf("merge audio: %w", err)
	}

	path, err := s.library.SaveAudio(merged, storage.CompleteAudioName(d.ID, format.Ext()))
	if err != nil {
		return "", err
	}
	slog.Info("Complete audio written", "path", path, "parts", len(parts))

	s.archive(ctx, path)
	return path, nil
}

func (s *Service) Voices(ctx context.Context) ([]tts.Voice, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	voices, err := s.tts.Voices(ctx, s.cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return voices, nil
}

func (job *audioJob) messageWithTimeout(index int) (string, error) {
	ctx, cancel := job.service.withTimeout(job.ctx)
	defer cancel()

	j := *job
	j.ctx = ctx
	return j.message(index)
}

func (job *audioJob) message(index int) (string, error) {
	s := job.service
	msg := job.d.Messages[index]

	audio, err := s.tts.Synthesize(job.ctx, tts.Request{
		Text:         msg.Content,
		Voice:        job.voice,
		LanguageCode: s.cfg.Language,
		Gender:       tts.GenderFor(msg.Role, tts.Gender(s.cfg.DefaultVoiceGender)),
		Format:       s.format,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize message %d: %w", index, err)
	}

	path, err := s.library.SaveAudio(audio.Data, storage.MessageAudioName(job.d.ID, index, audio.Format.Ext()))
	if err != nil {
		return "", err
	}
	job.d.Messages[index].AudioPath = path

	slog.Debug("Message audio written", "index", index, "role", msg.Role, "path", path)
	return path, nil
}

func hasAudio(msg dialogue.Message) bool {
	if msg.AudioPath == "" {
		return false
	}
	_, err := os.Stat(msg.AudioPath)
	return err == nil
}

func formatOf(path string) tts.Format {
	f, err := tts.ParseFormat(filepath.Ext(path))
	if err != nil {
		return tts.Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	}
	return f
}
