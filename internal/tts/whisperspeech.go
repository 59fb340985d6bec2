package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"langtutor/internal/provider"
)

const (
	whisperSpeechName    = "whisperspeech"
	whisperSpeechVoice   = "whisperspeech-default"
	whisperSpeechTimeout = 120 * time.Second
)

type whisperSpeechRequest struct {
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language"`
	Speaker  string `json:"speaker,omitempty"`
}

var _ Provider = (*WhisperSpeechClient)(nil)

// WhisperSpeechClient calls a local sidecar serving the WhisperSpeech model.
// The sidecar answers /health and returns WAV bytes from /tts.
type WhisperSpeechClient struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

type WhisperSpeechOptions struct {
	ServerURL string
	Model     string
}

func NewWhisperSpeechClient(opts WhisperSpeechOptions) *WhisperSpeechClient {
	return &WhisperSpeechClient{
		serverURL: opts.ServerURL,
		model:     opts.Model,
		httpClient: &http.Client{
			Timeout: whisperSpeechTimeout,
		},
	}
}

func (c *WhisperSpeechClient) Name() string {
	return whisperSpeechName
}

// Synthesize returns WAV whatever format was asked for.
func (c *WhisperSpeechClient) Synthesize(ctx context.Context, req Request) (_ *Audio, err error) {
	req, err = req.normalize()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observe(whisperSpeechName, "synthesize", start, err) }()

	if err := c.Health(ctx); err != nil {
		return nil, err
	}

	speaker := req.Voice
	if speaker == whisperSpeechVoice {
		speaker = ""
	}
	data, err := json.Marshal(whisperSpeechRequest{
		Text:     req.Text,
		Model:    c.model,
		Language: languageOnly(req.LanguageCode),
		Speaker:  speaker,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/tts", bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, provider.Wrap(whisperSpeechName, "synthesize", fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, provider.FromStatus(whisperSpeechName, "synthesize", resp.StatusCode, body)
	}
	if len(body) <= wavHeaderSize {
		return nil, provider.Empty(whisperSpeechName, "synthesize", "empty audio response")
	}
	return &Audio{Data: body, Format: FormatWAV}, nil
}

// Health checks that the sidecar is up.
func (c *WhisperSpeechClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &provider.ProviderError{
			Kind:     provider.KindUnavailable,
			Provider: whisperSpeechName,
			Op:       "health",
			Err:      fmt.Errorf("server not running at %s: %w", c.serverURL, err),
		}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return provider.FromStatus(whisperSpeechName, "health", resp.StatusCode, body)
	}
	return nil
}

func (c *WhisperSpeechClient) Voices(_ context.Context, languageCode string) ([]Voice, error) {
	if languageCode == "" {
		languageCode = DefaultLanguage
	}
	return []Voice{{Name: whisperSpeechVoice, LanguageCode: languageCode}}, nil
}
