package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "LANG_TUTOR_"

const (
	defaultConfigPath            = "config.yaml"
	defaultLLMProvider           = "openai"
	defaultTTSProvider           = "gtts"
	defaultSTTProvider           = "none"
	defaultMaxDialogueLength     = 10
	defaultVoiceGender           = "female"
	defaultAudioFormat           = "mp3"
	defaultRequestTimeout        = 30 * time.Second
	defaultMaxConcurrentRequests = 5
	defaultServerAddr            = "127.0.0.1:7860"
	defaultSessionTTL            = 2 * time.Hour
	defaultLanguage              = "fr-FR"
	defaultAudioDir              = "audio_output"
	defaultExportDir             = "output"
	defaultMaxLibraryFiles       = 50
	defaultArchivePrefix         = "langtutor"
	defaultOpenAIModel           = "gpt-4o-mini"
	defaultGeminiModel           = "gemini-2.0-flash"
	defaultGroqModel             = "llama-3.3-70b-versatile"
	defaultDeepSeekModel         = "deepseek-chat"
	defaultDeepSeekBaseURL       = "https://api.deepseek.com/v1"
	defaultTemperature           = 0.7
	defaultMaxTokens             = 1500
	defaultGoogleFemaleVoice     = "fr-FR-Wavenet-C"
	defaultGoogleMaleVoice       = "fr-FR-Wavenet-B"
	defaultAzureFemaleVoice      = "fr-FR-DeniseNeural"
	defaultAzureMaleVoice        = "fr-FR-HenriNeural"
	defaultElevenLabsFemaleVoice = "XB0fDUnXU5powFXDhCwa"
	defaultElevenLabsMaleVoice   = "onwK4e9ZLuTAKqWW03F9"
	defaultElevenLabsModel       = "eleven_multilingual_v2"
	defaultStability             = 0.5
	defaultSimilarity            = 0.75
	defaultWhisperSpeechURL      = "http://localhost:8030"
	defaultWhisperSpeechModel    = "collabora/whisperspeech:s2a-q4-tiny-en+pl.model"
)

type Config struct {
	LLMProvider           string        `yaml:"llm_provider"`
	TTSProvider           string        `yaml:"tts_provider"`
	STTProvider           string        `yaml:"stt_provider"`
	MaxDialogueLength     int           `yaml:"max_dialogue_length"`
	DefaultVoiceGender    string        `yaml:"default_voice_gender"`
	AudioOutputFormat     string        `yaml:"audio_output_format"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	Language              string        `yaml:"language"`
	PromptsPath           string        `yaml:"prompts_path"`

	OpenAIAPIKey          string `yaml:"-"`
	GeminiAPIKey          string `yaml:"-"`
	GroqAPIKey            string `yaml:"-"`
	DeepSeekAPIKey        string `yaml:"-"`
	ElevenLabsAPIKey      string `yaml:"-"`
	AzureSpeechKey        string `yaml:"-"`
	AzureSpeechRegion     string `yaml:"azure_speech_region"`
	GoogleCredentialsPath string `yaml:"google_cloud_credentials_path"`
	GCPProject            string `yaml:"gcp_project"`

	OpenAI        ModelConfig         `yaml:"openai"`
	Gemini        ModelConfig         `yaml:"gemini"`
	Groq          ModelConfig         `yaml:"groq"`
	DeepSeek      ModelConfig         `yaml:"deepseek"`
	GoogleTTS     VoicePair           `yaml:"google_tts"`
	Azure         VoicePair           `yaml:"azure"`
	ElevenLabs    ElevenLabsConfig    `yaml:"elevenlabs"`
	WhisperSpeech WhisperSpeechConfig `yaml:"whisperspeech"`
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
}

type ModelConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type VoicePair struct {
	Female string `yaml:"female"`
	Male   string `yaml:"male"`
}

type ElevenLabsConfig struct {
	Voices     VoicePair `yaml:"voices"`
	Model      string    `yaml:"model"`
	Stability  float64   `yaml:"stability"`
	Similarity float64   `yaml:"similarity"`
}

type WhisperSpeechConfig struct {
	ServerURL string `yaml:"server_url"`
	Model     string `yaml:"model"`
}

type StorageConfig struct {
	AudioDir        string `yaml:"audio_dir"`
	ExportDir       string `yaml:"export_dir"`
	MaxLibraryFiles int    `yaml:"max_library_files"`
	GCSBucket       string `yaml:"gcs_bucket"`
	ArchivePrefix   string `yaml:"archive_prefix"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Load reads .env, then config.yaml, then LANG_TUTOR_* variables, which
// override the file. API keys still missing are looked up in Secret Manager
// when a GCP project is configured.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, defaultConfigPath)
}

func LoadFrom(ctx context.Context, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := loadYAMLConfig(cfg, path); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if cfg.GCPProject != "" {
		resolveSecrets(ctx, cfg, newSecretManagerSource(cfg.GCPProject))
	}

	return cfg, nil
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("No config file found, using defaults", "path", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigurationError{Problems: []string{fmt.Sprintf("parse %s: %v", path, err)}}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var problems []string

	envString(&cfg.LLMProvider, "LLM_PROVIDER")
	envString(&cfg.TTSProvider, "TTS_PROVIDER")
	envString(&cfg.STTProvider, "STT_PROVIDER")
	envString(&cfg.DefaultVoiceGender, "DEFAULT_VOICE_GENDER")
	envString(&cfg.AudioOutputFormat, "AUDIO_OUTPUT_FORMAT")
	envString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	envString(&cfg.GroqAPIKey, "GROQ_API_KEY")
	envString(&cfg.DeepSeekAPIKey, "DEEPSEEK_API_KEY")
	envString(&cfg.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	envString(&cfg.AzureSpeechKey, "AZURE_SPEECH_KEY")
	envString(&cfg.AzureSpeechRegion, "AZURE_SPEECH_REGION")
	envString(&cfg.GoogleCredentialsPath, "GOOGLE_CLOUD_CREDENTIALS_PATH")
	envString(&cfg.GCPProject, "GCP_PROJECT")
	envString(&cfg.WhisperSpeech.ServerURL, "WHISPERSPEECH_URL")
	envString(&cfg.WhisperSpeech.Model, "WHISPERSPEECH_MODEL")
	envString(&cfg.Storage.GCSBucket, "GCS_BUCKET")
	envString(&cfg.Server.Addr, "SERVER_ADDR")

	if err := envInt(&cfg.MaxDialogueLength, "MAX_DIALOGUE_LENGTH"); err != nil {
		problems = append(problems, err.Error())
	}
	if err := envInt(&cfg.MaxConcurrentRequests, "MAX_CONCURRENT_REQUESTS"); err != nil {
		problems = append(problems, err.Error())
	}
	if err := envSeconds(&cfg.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	applyGeneralDefaults(cfg)
	applyLLMDefaults(cfg)
	applyVoiceDefaults(cfg)
	applyWhisperSpeechDefaults(cfg)
	applyStorageDefaults(cfg)
	applyServerDefaults(cfg)
}

func applyGeneralDefaults(cfg *Config) {
	cfg.LLMProvider = strings.ToLower(getOrDefault(cfg.LLMProvider, defaultLLMProvider))
	cfg.TTSProvider = strings.ToLower(getOrDefault(cfg.TTSProvider, defaultTTSProvider))
	cfg.STTProvider = strings.ToLower(getOrDefault(cfg.STTProvider, defaultSTTProvider))
	cfg.DefaultVoiceGender = strings.ToLower(getOrDefault(cfg.DefaultVoiceGender, defaultVoiceGender))
	cfg.AudioOutputFormat = strings.ToLower(getOrDefault(cfg.AudioOutputFormat, defaultAudioFormat))
	cfg.Language = getOrDefault(cfg.Language, defaultLanguage)
	if cfg.MaxDialogueLength == 0 {
		cfg.MaxDialogueLength = defaultMaxDialogueLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxConcurrentRequests == 0 {
		cfg.MaxConcurrentRequests = defaultMaxConcurrentRequests
	}
}

func applyLLMDefaults(cfg *Config) {
	applyModelDefaults(&cfg.OpenAI, defaultOpenAIModel)
	applyModelDefaults(&cfg.Gemini, defaultGeminiModel)
	applyModelDefaults(&cfg.Groq, defaultGroqModel)
	applyModelDefaults(&cfg.DeepSeek, defaultDeepSeekModel)
	if cfg.DeepSeek.BaseURL == "" {
		cfg.DeepSeek.BaseURL = defaultDeepSeekBaseURL
	}
}

func applyModelDefaults(m *ModelConfig, model string) {
	if m.Model == "" {
		m.Model = model
	}
	if m.Temperature == 0 {
		m.Temperature = defaultTemperature
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = defaultMaxTokens
	}
}

func applyVoiceDefaults(cfg *Config) {
	cfg.GoogleTTS.Female = getOrDefault(cfg.GoogleTTS.Female, defaultGoogleFemaleVoice)
	cfg.GoogleTTS.Male = getOrDefault(cfg.GoogleTTS.Male, defaultGoogleMaleVoice)
	cfg.Azure.Female = getOrDefault(cfg.Azure.Female, defaultAzureFemaleVoice)
	cfg.Azure.Male = getOrDefault(cfg.Azure.Male, defaultAzureMaleVoice)
	cfg.ElevenLabs.Voices.Female = getOrDefault(cfg.ElevenLabs.Voices.Female, defaultElevenLabsFemaleVoice)
	cfg.ElevenLabs.Voices.Male = getOrDefault(cfg.ElevenLabs.Voices.Male, defaultElevenLabsMaleVoice)
	cfg.ElevenLabs.Model = getOrDefault(cfg.ElevenLabs.Model, defaultElevenLabsModel)
	if cfg.ElevenLabs.Stability == 0 {
		cfg.ElevenLabs.Stability = defaultStability
	}
	if cfg.ElevenLabs.Similarity == 0 {
		cfg.ElevenLabs.Similarity = defaultSimilarity
	}
}

func applyWhisperSpeechDefaults(cfg *Config) {
	cfg.WhisperSpeech.ServerURL = getOrDefault(cfg.WhisperSpeech.ServerURL, defaultWhisperSpeechURL)
	cfg.WhisperSpeech.Model = getOrDefault(cfg.WhisperSpeech.Model, defaultWhisperSpeechModel)
}

func applyStorageDefaults(cfg *Config) {
	cfg.Storage.AudioDir = getOrDefault(cfg.Storage.AudioDir, defaultAudioDir)
	cfg.Storage.ExportDir = getOrDefault(cfg.Storage.ExportDir, defaultExportDir)
	cfg.Storage.ArchivePrefix = getOrDefault(cfg.Storage.ArchivePrefix, defaultArchivePrefix)
	if cfg.Storage.MaxLibraryFiles == 0 {
		cfg.Storage.MaxLibraryFiles = defaultMaxLibraryFiles
	}
}

func applyServerDefaults(cfg *Config) {
	cfg.Server.Addr = getOrDefault(cfg.Server.Addr, defaultServerAddr)
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = defaultSessionTTL
	}
}

func envString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(EnvPrefix + key)); value != "" {
		*dst = value
	}
}

func envInt(dst *int, key string) error {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s%s must be an integer, got %q", EnvPrefix, key, value)
	}
	*dst = n
	return nil
}

// envSeconds accepts a plain number of seconds or a Go duration string.
func envSeconds(dst *time.Duration, key string) error {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if value == "" {
		return nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s%s must be seconds or a duration, got %q", EnvPrefix, key, value)
	}
	*dst = d
	return nil
}

func getOrDefault(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}
