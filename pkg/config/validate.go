package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

var (
	LLMProviders = []string{"openai", "gemini", "groq", "deepseek"}
	TTSProviders = []string{"google_cloud", "azure", "gtts", "whisperspeech", "elevenlabs", "silent"}
	STTProviders = []string{"none", "google_cloud", "openai"}
	AudioFormats = []string{"mp3", "wav", "ogg"}
	VoiceGenders = []string{"female", "male"}
)

// ConfigurationError lists every problem found in a configuration.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("configuration has %d problems:\n  - %s", len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// Validate checks that the selected providers have what they need.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			add("%sOPENAI_API_KEY is required when using the openai LLM provider", EnvPrefix)
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			add("%sGEMINI_API_KEY is required when using the gemini LLM provider", EnvPrefix)
		}
	case "groq":
		if c.GroqAPIKey == "" {
			add("%sGROQ_API_KEY is required when using the groq LLM provider", EnvPrefix)
		}
	case "deepseek":
		if c.DeepSeekAPIKey == "" {
			add("%sDEEPSEEK_API_KEY is required when using the deepseek LLM provider", EnvPrefix)
		}
	default:
		add("unknown LLM provider %q (options: %s)", c.LLMProvider, strings.Join(LLMProviders, ", "))
	}

	switch c.TTSProvider {
	case "google_cloud":
		if c.GoogleCredentialsPath != "" {
			if _, err := os.Stat(c.GoogleCredentialsPath); err != nil {
				add("Google Cloud credentials file %s is not readable: %v", c.GoogleCredentialsPath, err)
			}
		}
	case "azure":
		if c.AzureSpeechKey == "" || c.AzureSpeechRegion == "" {
			add("%sAZURE_SPEECH_KEY and %sAZURE_SPEECH_REGION are required when using Azure TTS", EnvPrefix, EnvPrefix)
		}
	case "elevenlabs":
		if c.ElevenLabsAPIKey == "" {
			add("%sELEVENLABS_API_KEY is required when using ElevenLabs TTS", EnvPrefix)
		}
	case "gtts":
		if c.AudioOutputFormat != "mp3" {
			add("gtts only produces mp3 audio, got %sAUDIO_OUTPUT_FORMAT=%s", EnvPrefix, c.AudioOutputFormat)
		}
	case "whisperspeech", "silent":
	default:
		add("unknown TTS provider %q (options: %s)", c.TTSProvider, strings.Join(TTSProviders, ", "))
	}

	switch c.STTProvider {
	case "none", "google_cloud":
	case "openai":
		if c.OpenAIAPIKey == "" {
			add("%sOPENAI_API_KEY is required for Whisper speech recognition", EnvPrefix)
		}
	default:
		add("unknown STT provider %q (options: %s)", c.STTProvider, strings.Join(STTProviders, ", "))
	}

	if !slices.Contains(AudioFormats, c.AudioOutputFormat) {
		add("unsupported audio format %q (options: %s)", c.AudioOutputFormat, strings.Join(AudioFormats, ", "))
	}
	if !slices.Contains(VoiceGenders, c.DefaultVoiceGender) {
		add("default voice gender must be female or male, got %q", c.DefaultVoiceGender)
	}
	if c.MaxDialogueLength < 1 {
		add("max dialogue length must be positive, got %d", c.MaxDialogueLength)
	}
	if c.RequestTimeout <= 0 {
		add("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxConcurrentRequests < 1 {
		add("max concurrent requests must be positive, got %d", c.MaxConcurrentRequests)
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}
