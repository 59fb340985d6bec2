package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const sampleEnv = `# Language Tutor configuration

# LLM provider: openai, gemini, groq, deepseek
LANG_TUTOR_LLM_PROVIDER=openai
LANG_TUTOR_OPENAI_API_KEY=your_openai_api_key_here
LANG_TUTOR_GEMINI_API_KEY=your_gemini_api_key_here
LANG_TUTOR_GROQ_API_KEY=
LANG_TUTOR_DEEPSEEK_API_KEY=

# TTS provider: google_cloud, azure, gtts, whisperspeech, elevenlabs, silent
LANG_TUTOR_TTS_PROVIDER=gtts
LANG_TUTOR_GOOGLE_CLOUD_CREDENTIALS_PATH=path/to/credentials.json
LANG_TUTOR_AZURE_SPEECH_KEY=your_azure_speech_key_here
LANG_TUTOR_AZURE_SPEECH_REGION=your_azure_region_here
LANG_TUTOR_ELEVENLABS_API_KEY=
LANG_TUTOR_WHISPERSPEECH_URL=http://localhost:8030
LANG_TUTOR_WHISPERSPEECH_MODEL=collabora/whisperspeech:s2a-q4-tiny-en+pl.model

# Speech recognition: none, google_cloud, openai
LANG_TUTOR_STT_PROVIDER=none

# General settings
LANG_TUTOR_MAX_DIALOGUE_LENGTH=10
LANG_TUTOR_DEFAULT_VOICE_GENDER=female
LANG_TUTOR_AUDIO_OUTPUT_FORMAT=mp3

# Performance settings
LANG_TUTOR_REQUEST_TIMEOUT=30
LANG_TUTOR_MAX_CONCURRENT_REQUESTS=5

# Optional Google Cloud project (Secret Manager lookups) and archive bucket
LANG_TUTOR_GCP_PROJECT=
LANG_TUTOR_GCS_BUCKET=

LANG_TUTOR_SERVER_ADDR=127.0.0.1:7860
`

// WriteSample writes a commented .env template listing every option.
func WriteSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleEnv), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteEnv writes env to path in dotenv format. Keys without the
// LANG_TUTOR_ prefix get it added; empty values are dropped.
func WriteEnv(path string, env map[string]string) error {
	out := make(map[string]string, len(env))
	for key, value := range env {
		if value == "" {
			continue
		}
		if !strings.HasPrefix(key, EnvPrefix) {
			key = EnvPrefix + key
		}
		out[key] = value
	}
	if err := godotenv.Write(out, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
