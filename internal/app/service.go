package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"langtutor/internal/dialogue"
	"langtutor/internal/llm"
	"langtutor/internal/storage"
	"langtutor/internal/stt"
	"langtutor/internal/tts"
	"langtutor/pkg/config"
)

const maxDefaultExchanges = 8

var ErrSTTDisabled = errors.New("speech recognition is disabled (stt_provider is none)")

// ValidationError lists the problems with a request before any provider is
// called.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

type Service struct {
	cfg      *config.Config
	tutor    *llm.Tutor
	tts      tts.Provider
	stt      stt.Transcriber
	library  *storage.Library
	archiver storage.Archiver
	format   tts.Format
}

type ServiceOptions struct {
	Config   *config.Config
	Tutor    *llm.Tutor
	TTS      tts.Provider
	STT      stt.Transcriber
	Library  *storage.Library
	Archiver storage.Archiver
}

func NewService(opts ServiceOptions) *Service {
	format, err := tts.ParseFormat(opts.Config.AudioOutputFormat)
	if err != nil {
		format = tts.FormatMP3
	}
	return &Service{
		cfg:      opts.Config,
		tutor:    opts.Tutor,
		tts:      opts.TTS,
		stt:      opts.STT,
		library:  opts.Library,
		archiver: opts.Archiver,
		format:   format,
	}
}

func (s *Service) Config() *config.Config    { return s.cfg }
func (s *Service) Tutor() *llm.Tutor         { return s.tutor }
func (s *Service) TTS() tts.Provider         { return s.tts }
func (s *Service) STT() stt.Transcriber      { return s.stt }
func (s *Service) Library() *storage.Library { return s.library }

func (s *Service) STTEnabled() bool {
	return s.stt != nil
}

// Close releases the provider clients that hold connections.
func (s *Service) Close() error {
	var errs []error
	for _, c := range []any{s.tts, s.stt, s.archiver} {
		if closer, ok := c.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

type GenerateParams struct {
	Topic     string
	Context   string
	Level     string
	Exchanges int
}

// DefaultExchanges is used when a request leaves the exchange count at zero.
func (s *Service) DefaultExchanges() int {
	return min(s.cfg.MaxDialogueLength, maxDefaultExchanges)
}

func (s *Service) GenerateDialogue(ctx context.Context, p GenerateParams) (*dialogue.Dialogue, error) {
	var problems []string

	topic := strings.TrimSpace(p.Topic)
	if topic == "" {
		problems = append(problems, "topic is required")
	}

	level := dialogue.LevelBeginner
	if strings.TrimSpace(p.Level) != "" {
		l, ok := dialogue.ParseLevel(p.Level)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown level %q", p.Level))
		}
		level = l
	}

	exchanges := p.Exchanges
	if exchanges == 0 {
		exchanges = s.DefaultExchanges()
	}
	if exchanges < 1 || exchanges > s.cfg.MaxDialogueLength {
		problems = append(problems, fmt.Sprintf("exchanges must be between 1 and %d", s.cfg.MaxDialogueLength))
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	slog.Info("Generating dialogue", "topic", topic, "level", level, "exchanges", exchanges, "provider", s.tutor.Provider())
	d, err := s.tutor.GenerateDialogue(ctx, llm.DialogueRequest{
		Topic:     topic,
		Context:   strings.TrimSpace(p.Context),
		Level:     level,
		Exchanges: exchanges,
	})
	if err != nil {
		return nil, fmt.Errorf("generate dialogue: %w", err)
	}
	d.ID = uuid.NewString()

	slog.Debug("Dialogue generated", "id", d.ID, "messages", len(d.Messages))
	return d, nil
}

// StartPractice opens an empty dialogue for free conversation.
func (s *Service) StartPractice(topic, level string) (*dialogue.Dialogue, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &ValidationError{Problems: []string{"topic is required"}}
	}
	l := dialogue.LevelBeginner
	if strings.TrimSpace(level) != "" {
		var ok bool
		if l, ok = dialogue.ParseLevel(level); !ok {
			return nil, &ValidationError{Problems: []string{fmt.Sprintf("unknown level %q", level)}}
		}
	}
	d := dialogue.New(topic, l, "")
	d.ID = uuid.NewString()
	return d, nil
}

// ContinueDialogue gets the tutor's reply to input and appends both turns.
func (s *Service) ContinueDialogue(ctx context.Context, d *dialogue.Dialogue, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", &ValidationError{Problems: []string{"message is empty"}}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	slog.Info("Continuing dialogue", "id", d.ID, "messages", len(d.Messages))
	reply, err := s.tutor.ContinueDialogue(ctx, d, input)
	if err != nil {
		return "", fmt.Errorf("continue dialogue: %w", err)
	}

	d.AddMessage(dialogue.RoleUser, input)
	d.AddMessage(dialogue.RoleAssistant, reply)
	return reply, nil
}

func (s *Service) AskGrammar(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", &ValidationError{Problems: []string{"question is empty"}}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	slog.Info("Answering grammar question", "length", len(question))
	answer, err := s.tutor.AskQuestion(ctx, question)
	if err != nil {
		return "", fmt.Errorf("grammar question: %w", err)
	}
	return answer, nil
}

func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if s.stt == nil {
		return "", ErrSTTDisabled
	}
	cfg, err := stt.ConfigForFile(filename, s.cfg.Language)
	if err != nil {
		return "", &ValidationError{Problems: []string{err.Error()}}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	slog.Info("Transcribing audio", "file", cfg.Filename, "bytes", len(audio), "provider", s.stt.Name())
	text, err := s.stt.Transcribe(ctx, audio, cfg)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return text, nil
}

// Import parses an uploaded dialogue file and gives it a fresh id.
func (s *Service) Import(content []byte, filename string) (*dialogue.Dialogue, error) {
	d, err := dialogue.ParseFile(content, filename)
	if err != nil {
		return nil, err
	}
	d.ID = uuid.NewString()
	d.ClearAudio()

	slog.Info("Imported dialogue", "file", filename, "title", d.Title, "messages", len(d.Messages))
	return d, nil
}

type ExportResult struct {
	Path string
	// ArchiveURL is set when the export was also copied to GCS.
	ArchiveURL string
	Data       []byte
}

// Export renders d in format, writes it to the export directory and archives
// it when an archiver is configured. Archive failures are logged only.
func (s *Service) Export(ctx context.Context, d *dialogue.Dialogue, format string) (*ExportResult, error) {
	data, err := dialogue.Export(d, format)
	if err != nil {
		return nil, err
	}

	name := exportFileName(d, dialogue.NormalizeFormat(format), time.Now())
	path, err := s.library.SaveExport(name, data)
	if err != nil {
		return nil, fmt.Errorf("save export: %w", err)
	}
	slog.Info("Exported dialogue", "path", path)

	result := &ExportResult{Path: path, Data: data}
	result.ArchiveURL = s.archive(ctx, path)
	return result, nil
}

func (s *Service) archive(ctx context.Context, path string) string {
	if s.archiver == nil {
		return ""
	}
	url, err := s.archiver.Archive(ctx, path)
	if err != nil {
		slog.Warn("Archive failed", "path", path, "error", err)
		return ""
	}
	slog.Debug("Archived", "url", url)
	return url
}

// CleanupLibrary keeps the keep most recent audio files; keep <= 0 uses the
// configured library size.
func (s *Service) CleanupLibrary(keep int) (int, error) {
	if keep <= 0 {
		keep = s.cfg.Storage.MaxLibraryFiles
	}
	deleted, err := s.library.Cleanup(keep)
	if err != nil {
		return deleted, fmt.Errorf("cleanup library: %w", err)
	}
	slog.Info("Cleaned audio library", "deleted", deleted, "kept", keep)
	return deleted, nil
}
