package stt

import (
	"bytes"
	"context"
	"strings"
	"time"

	openaiapi "github.com/sashabaranov/go-openai"

	"langtutor/internal/provider"
)

const whisperName = "openai"

var _ Transcriber = (*WhisperTranscriber)(nil)

// WhisperTranscriber sends recordings to OpenAI's Whisper endpoint.
type WhisperTranscriber struct {
	api *openaiapi.Client
}

// NewWhisperTranscriber builds the client; baseURL is only set in tests.
func NewWhisperTranscriber(apiKey, baseURL string) *WhisperTranscriber {
	cfg := openaiapi.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &WhisperTranscriber{api: openaiapi.NewClientWithConfig(cfg)}
}

func (w *WhisperTranscriber) Name() string {
	return whisperName
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, cfg AudioConfig) (_ string, err error) {
	start := time.Now()
	defer func() { provider.Observe("stt", whisperName, "transcribe", start, err) }()

	if len(audio) == 0 {
		return "", ErrNoSpeech
	}

	filename := cfg.Filename
	if filename == "" {
		filename = "recording.wav"
	}
	lang, _, _ := strings.Cut(cfg.Language, "-")

	resp, err := w.api.CreateTranscription(ctx, openaiapi.AudioRequest{
		Model:    openaiapi.Whisper1,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: strings.ToLower(lang),
	})
	if err != nil {
		return "", provider.Wrap(whisperName, "transcribe", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
