package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/api/option"

	"langtutor/internal/llm"
	"langtutor/internal/llm/gemini"
	"langtutor/internal/llm/groq"
	"langtutor/internal/llm/openai"
	"langtutor/internal/storage"
	"langtutor/internal/stt"
	"langtutor/internal/tts"
	"langtutor/pkg/config"
	"langtutor/pkg/prompts"
)

// BuildService wires the providers selected in cfg. cfg is expected to have
// passed Validate. Clients built before a failure are closed.
func BuildService(ctx context.Context, cfg *config.Config) (_ *Service, err error) {
	var built []any
	defer func() {
		if err != nil {
			closeAll(built...)
		}
	}()

	p, err := prompts.LoadFrom(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	completer, model, err := buildCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	built = append(built, completer)
	tutor := llm.NewTutor(completer, p, llm.TutorOptions{
		Temperature: model.Temperature,
		MaxTokens:   model.MaxTokens,
	})

	ttsProvider, err := buildTTS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	built = append(built, ttsProvider)

	transcriber, err := buildSTT(ctx, cfg)
	if err != nil {
		return nil, err
	}
	built = append(built, transcriber)

	library := storage.NewLibrary(cfg.Storage.AudioDir, cfg.Storage.ExportDir)
	if err := library.EnsureDirectories(); err != nil {
		return nil, err
	}

	var archiver storage.Archiver
	if cfg.Storage.GCSBucket != "" {
		archiver, err = storage.NewGCSArchiver(ctx, cfg.Storage.GCSBucket, cfg.Storage.ArchivePrefix, GoogleOptions(cfg)...)
		if err != nil {
			return nil, err
		}
	}

	slog.Debug("Service built",
		"llm", cfg.LLMProvider,
		"model", model.Model,
		"tts", cfg.TTSProvider,
		"stt", cfg.STTProvider,
		"archive", cfg.Storage.GCSBucket != "")

	return NewService(ServiceOptions{
		Config:   cfg,
		Tutor:    tutor,
		TTS:      ttsProvider,
		STT:      transcriber,
		Library:  library,
		Archiver: archiver,
	}), nil
}

func buildCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, config.ModelConfig, error) {
	switch cfg.LLMProvider {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, openai.Options{
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		}), cfg.OpenAI, nil
	case "deepseek":
		return openai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeek.Model, cfg.DeepSeek.BaseURL), cfg.DeepSeek, nil
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.Gemini.Model, cfg.Gemini.BaseURL)
		return c, cfg.Gemini, err
	case "groq":
		c, err := groq.NewClient(cfg.GroqAPIKey, cfg.Groq.Model, cfg.Groq.BaseURL)
		return c, cfg.Groq, err
	}
	return nil, config.ModelConfig{}, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
}

func buildTTS(ctx context.Context, cfg *config.Config) (tts.Provider, error) {
	switch cfg.TTSProvider {
	case "google_cloud":
		return tts.NewGoogleClient(ctx, cfg.GoogleCredentialsPath, voicePair(cfg.GoogleTTS))
	case "azure":
		return tts.NewAzureClient(cfg.AzureSpeechKey, cfg.AzureSpeechRegion, voicePair(cfg.Azure)), nil
	case "gtts":
		return tts.NewGTTSClient(), nil
	case "whisperspeech":
		return tts.NewWhisperSpeechClient(tts.WhisperSpeechOptions{
			ServerURL: cfg.WhisperSpeech.ServerURL,
			Model:     cfg.WhisperSpeech.Model,
		}), nil
	case "elevenlabs":
		return tts.NewElevenLabsClient(cfg.ElevenLabsAPIKey, tts.ElevenLabsOptions{
			Voices:     voicePair(cfg.ElevenLabs.Voices),
			Model:      cfg.ElevenLabs.Model,
			Stability:  cfg.ElevenLabs.Stability,
			Similarity: cfg.ElevenLabs.Similarity,
		}), nil
	case "silent":
		return tts.NewSilent(), nil
	}
	return nil, fmt.Errorf("unsupported TTS provider: %s", cfg.TTSProvider)
}

func buildSTT(ctx context.Context, cfg *config.Config) (stt.Transcriber, error) {
	switch cfg.STTProvider {
	case "", "none":
		return nil, nil
	case "google_cloud":
		return stt.NewGoogleTranscriber(ctx, cfg.GoogleCredentialsPath)
	case "openai":
		return stt.NewWhisperTranscriber(cfg.OpenAIAPIKey, ""), nil
	}
	return nil, fmt.Errorf("unsupported STT provider: %s", cfg.STTProvider)
}

// closeAll closes every value that holds a connection, logging failures.
func closeAll(resources ...any) {
	for _, r := range resources {
		c, ok := r.(io.Closer)
		if !ok || c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			slog.Warn("Failed to close provider client", "error", err)
		}
	}
}

func voicePair(p config.VoicePair) tts.VoicePair {
	return tts.VoicePair{Female: p.Female, Male: p.Male}
}

// GoogleOptions carries the configured service account file, if any.
func GoogleOptions(cfg *config.Config) []option.ClientOption {
	if cfg.GoogleCredentialsPath == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleCredentialsPath)}
}
