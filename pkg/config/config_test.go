package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	orig, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(orig) })
	_ = os.Chdir(tmp)
	return tmp
}

func TestLoadFromYAML(t *testing.T) {
	tmp := chdirTemp(t)

	yaml := `
llm_provider: gemini
gemini:
  model: test-model
google_tts:
  female: fr-FR-Neural2-A
storage:
  audio_dir: sons
  max_library_files: 7
server:
  session_ttl: 30m
`
	_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte(yaml), 0644)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LLMProvider != "gemini" {
		t.Errorf("LLMProvider = %q, want gemini", cfg.LLMProvider)
	}
	if cfg.Gemini.Model != "test-model" {
		t.Errorf("Gemini.Model = %q, want test-model", cfg.Gemini.Model)
	}
	if cfg.GoogleTTS.Female != "fr-FR-Neural2-A" {
		t.Errorf("GoogleTTS.Female = %q, want fr-FR-Neural2-A", cfg.GoogleTTS.Female)
	}
	if cfg.GoogleTTS.Male != defaultGoogleMaleVoice {
		t.Errorf("GoogleTTS.Male = %q, want %q", cfg.GoogleTTS.Male, defaultGoogleMaleVoice)
	}
	if cfg.Storage.AudioDir != "sons" || cfg.Storage.MaxLibraryFiles != 7 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Server.SessionTTL != 30*time.Minute {
		t.Errorf("Server.SessionTTL = %s, want 30m", cfg.Server.SessionTTL)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	tmp := chdirTemp(t)
	_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte("llm_provider: gemini\nmax_dialogue_length: 4\n"), 0644)

	t.Setenv("LANG_TUTOR_LLM_PROVIDER", "OpenAI")
	t.Setenv("LANG_TUTOR_OPENAI_API_KEY", "sk-test")
	t.Setenv("LANG_TUTOR_MAX_DIALOGUE_LENGTH", "12")
	t.Setenv("LANG_TUTOR_REQUEST_TIMEOUT", "45")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %q, want openai", cfg.LLMProvider)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("OpenAIAPIKey = %q, want sk-test", cfg.OpenAIAPIKey)
	}
	if cfg.MaxDialogueLength != 12 {
		t.Errorf("MaxDialogueLength = %d, want 12", cfg.MaxDialogueLength)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Errorf("RequestTimeout = %s, want 45s", cfg.RequestTimeout)
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"TTSProvider", cfg.TTSProvider, "gtts"},
		{"STTProvider", cfg.STTProvider, "none"},
		{"DefaultVoiceGender", cfg.DefaultVoiceGender, "female"},
		{"AudioOutputFormat", cfg.AudioOutputFormat, "mp3"},
		{"MaxConcurrentRequests", cfg.MaxConcurrentRequests, 5},
		{"OpenAI.Model", cfg.OpenAI.Model, "gpt-4o-mini"},
		{"DeepSeek.BaseURL", cfg.DeepSeek.BaseURL, defaultDeepSeekBaseURL},
		{"Azure.Female", cfg.Azure.Female, "fr-FR-DeniseNeural"},
		{"WhisperSpeech.Model", cfg.WhisperSpeech.Model, defaultWhisperSpeechModel},
		{"Storage.ExportDir", cfg.Storage.ExportDir, "output"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LANG_TUTOR_MAX_DIALOGUE_LENGTH", "ten")

	_, err := Load(context.Background())
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Load() error = %v, want *ConfigurationError", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmp := chdirTemp(t)
	_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte("server: [unclosed"), 0644)

	if _, err := Load(context.Background()); err == nil {
		t.Error("Load() should fail on malformed config.yaml")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{LLMProvider: "openai", OpenAIAPIKey: "sk", TTSProvider: "gtts"}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missingOpenAIKey", mutate: func(c *Config) { c.OpenAIAPIKey = "" }, wantErr: "OPENAI_API_KEY"},
		{name: "missingGeminiKey", mutate: func(c *Config) { c.LLMProvider = "gemini" }, wantErr: "GEMINI_API_KEY"},
		{name: "unknownLLM", mutate: func(c *Config) { c.LLMProvider = "claude" }, wantErr: "unknown LLM provider"},
		{name: "azureNeedsRegion", mutate: func(c *Config) {
			c.TTSProvider = "azure"
			c.AzureSpeechKey = "k"
		}, wantErr: "AZURE_SPEECH_REGION"},
		{name: "gttsOnlyMP3", mutate: func(c *Config) { c.AudioOutputFormat = "wav" }, wantErr: "only produces mp3"},
		{name: "silentAcceptsWAV", mutate: func(c *Config) {
			c.TTSProvider = "silent"
			c.AudioOutputFormat = "wav"
		}},
		{name: "whisperSTTNeedsKey", mutate: func(c *Config) {
			c.LLMProvider = "groq"
			c.GroqAPIKey = "g"
			c.OpenAIAPIKey = ""
			c.STTProvider = "openai"
		}, wantErr: "Whisper"},
		{name: "badGender", mutate: func(c *Config) { c.DefaultVoiceGender = "robot" }, wantErr: "voice gender"},
		{name: "missingCredentialsFile", mutate: func(c *Config) {
			c.TTSProvider = "google_cloud"
			c.GoogleCredentialsPath = "/nonexistent/creds.json"
		}, wantErr: "credentials file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error = %v, want *ConfigurationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

type fakeSecrets map[string]string

func (f fakeSecrets) Secret(_ context.Context, name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestResolveSecrets(t *testing.T) {
	cfg := &Config{LLMProvider: "gemini", TTSProvider: "elevenlabs", GeminiAPIKey: "", ElevenLabsAPIKey: "from-env"}
	src := fakeSecrets{
		"lang-tutor-gemini-api-key":     "from-secret-manager",
		"lang-tutor-elevenlabs-api-key": "should-not-be-used",
	}

	resolveSecrets(context.Background(), cfg, src)

	if cfg.GeminiAPIKey != "from-secret-manager" {
		t.Errorf("GeminiAPIKey = %q, want from-secret-manager", cfg.GeminiAPIKey)
	}
	if cfg.ElevenLabsAPIKey != "from-env" {
		t.Errorf("ElevenLabsAPIKey = %q, want from-env", cfg.ElevenLabsAPIKey)
	}
}

func TestWriteEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	err := WriteEnv(path, map[string]string{
		"LLM_PROVIDER":              "gemini",
		"LANG_TUTOR_GEMINI_API_KEY": "abc",
		"GROQ_API_KEY":              "",
	})
	if err != nil {
		t.Fatalf("WriteEnv() error: %v", err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("godotenv.Read() error: %v", err)
	}
	if env["LANG_TUTOR_LLM_PROVIDER"] != "gemini" || env["LANG_TUTOR_GEMINI_API_KEY"] != "abc" {
		t.Errorf("env = %v", env)
	}
	if _, ok := env["LANG_TUTOR_GROQ_API_KEY"]; ok {
		t.Error("empty value was written")
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.sample")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample() error: %v", err)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("godotenv.Read() error: %v", err)
	}
	if env["LANG_TUTOR_TTS_PROVIDER"] != "gtts" {
		t.Errorf("LANG_TUTOR_TTS_PROVIDER = %q, want gtts", env["LANG_TUTOR_TTS_PROVIDER"])
	}
}
