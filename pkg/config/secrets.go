package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

type secretSource interface {
	Secret(ctx context.Context, name string) (string, error)
}

type secretManagerSource struct {
	project string
}

func newSecretManagerSource(project string) *secretManagerSource {
	return &secretManagerSource{project: project}
}

func (s *secretManagerSource) Secret(ctx context.Context, name string) (string, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create secret manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.project, name),
	})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

// secretName maps an env key like OPENAI_API_KEY to "lang-tutor-openai-api-key".
func secretName(key string) string {
	return "lang-tutor-" + strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

// resolveSecrets fills in API keys the selected providers need but that the
// environment did not provide.
func resolveSecrets(ctx context.Context, cfg *Config, src secretSource) {
	for _, key := range neededKeys(cfg) {
		if *key.dst != "" {
			continue
		}
		value, err := src.Secret(ctx, secretName(key.name))
		if err != nil {
			slog.Warn("Secret lookup failed", "key", key.name, "error", err)
			continue
		}
		*key.dst = value
		slog.Debug("Resolved secret", "key", key.name)
	}
}

type keyRef struct {
	name string
	dst  *string
}

func neededKeys(cfg *Config) []keyRef {
	var keys []keyRef
	switch cfg.LLMProvider {
	case "openai":
		keys = append(keys, keyRef{"OPENAI_API_KEY", &cfg.OpenAIAPIKey})
	case "gemini":
		keys = append(keys, keyRef{"GEMINI_API_KEY", &cfg.GeminiAPIKey})
	case "groq":
		keys = append(keys, keyRef{"GROQ_API_KEY", &cfg.GroqAPIKey})
	case "deepseek":
		keys = append(keys, keyRef{"DEEPSEEK_API_KEY", &cfg.DeepSeekAPIKey})
	}
	switch cfg.TTSProvider {
	case "azure":
		keys = append(keys, keyRef{"AZURE_SPEECH_KEY", &cfg.AzureSpeechKey})
	case "elevenlabs":
		keys = append(keys, keyRef{"ELEVENLABS_API_KEY", &cfg.ElevenLabsAPIKey})
	}
	if cfg.STTProvider == "openai" && cfg.LLMProvider != "openai" {
		keys = append(keys, keyRef{"OPENAI_API_KEY", &cfg.OpenAIAPIKey})
	}
	return keys
}
