package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"langtutor/internal/provider"
)

const (
	elevenLabsName    = "elevenlabs"
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"
)

type elevenlabsRequest struct {
	Text          string                `json:"text"`
	ModelID       string                `json:"model_id"`
	LanguageCode  string                `json:"language_code,omitempty"`
	VoiceSettings elevenlabsVoiceConfig `json:"voice_settings"`
}

type elevenlabsVoiceConfig struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenlabsTimestampResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

type elevenlabsVoicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

type elevenlabsErrorResponse struct {
	Detail struct {
		Message string `json:"message"`
	} `json:"detail"`
}

var _ Provider = (*ElevenLabsClient)(nil)

// ElevenLabsClient implements Provider using the ElevenLabs API.
type ElevenLabsClient struct {
	apiKey     string
	httpClient *http.Client
	voices     VoicePair
	model      string
	stability  float64
	similarity float64
	baseURL    string
}

// ElevenLabsOptions configures the ElevenLabs client.
type ElevenLabsOptions struct {
	Voices     VoicePair
	Model      string
	Stability  float64
	Similarity float64
}

// NewElevenLabsClient creates a new ElevenLabs TTS client.
func NewElevenLabsClient(apiKey string, opts ElevenLabsOptions) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		voices:     opts.Voices,
		model:      opts.Model,
		stability:  opts.Stability,
		similarity: opts.Similarity,
		baseURL:    elevenLabsBaseURL,
	}
}

func (c *ElevenLabsClient) Name() string {
	return elevenLabsName
}

// Synthesize always returns MP3; the timestamped endpoint has no WAV output.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, req Request) (_ *Audio, err error) {
	req, err = req.normalize()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observe(elevenLabsName, "synthesize", start, err) }()

	reqBody := elevenlabsRequest{
		Text:         req.Text,
		ModelID:      c.model,
		LanguageCode: languageOnly(req.LanguageCode),
		VoiceSettings: elevenlabsVoiceConfig{
			Stability:       c.stability,
			SimilarityBoost: c.similarity,
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/with-timestamps", c.baseURL, req.voiceName(c.voices))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	body, err := c.do(httpReq, "synthesize")
	if err != nil {
		return nil, err
	}

	var tsResp elevenlabsTimestampResponse
	if err := json.Unmarshal(body, &tsResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(tsResp.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}

	if len(audio) == 0 {
		return nil, provider.Empty(elevenLabsName, "synthesize", "empty audio response")
	}

	return &Audio{Data: audio, Format: FormatMP3}, nil
}

// Voices lists the account's voices. ElevenLabs voices are multilingual, so
// languageCode is only copied onto the result.
func (c *ElevenLabsClient) Voices(ctx context.Context, languageCode string) (_ []Voice, err error) {
	start := time.Now()
	defer func() { observe(elevenLabsName, "voices", start, err) }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	body, err := c.do(httpReq, "voices")
	if err != nil {
		return nil, err
	}

	var resp elevenlabsVoicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if languageCode == "" {
		languageCode = DefaultLanguage
	}
	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, Voice{
			Name:         v.VoiceID,
			LanguageCode: languageCode,
			Gender:       parseGender(v.Labels["gender"]),
		})
	}
	return voices, nil
}

func (c *ElevenLabsClient) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.Wrap(elevenLabsName, op, fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp elevenlabsErrorResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Detail.Message != "" {
			body = []byte(errResp.Detail.Message)
		}
		return nil, provider.FromStatus(elevenLabsName, op, resp.StatusCode, body)
	}
	return body, nil
}

// SetBaseURL sets the base URL for testing.
func (c *ElevenLabsClient) SetBaseURL(url string) {
	c.baseURL = url
}
