package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"langtutor/internal/provider"
)

const azureName = "azure"

var azureOutputFormats = map[Format]string{
	FormatMP3: "audio-24khz-48kbitrate-mono-mp3",
	FormatWAV: "riff-24khz-16bit-mono-pcm",
	FormatOGG: "ogg-24khz-16bit-mono-opus",
}

type azureVoice struct {
	ShortName string `json:"ShortName"`
	Locale    string `json:"Locale"`
	Gender    string `json:"Gender"`
}

var _ Provider = (*AzureClient)(nil)

// AzureClient talks to the Azure Speech REST API.
type AzureClient struct {
	key        string
	voices     VoicePair
	httpClient *http.Client
	baseURL    string
}

func NewAzureClient(key, region string, voices VoicePair) *AzureClient {
	return &AzureClient{
		key:        key,
		voices:     voices,
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices", region),
	}
}

func (c *AzureClient) Name() string {
	return azureName
}

func (c *AzureClient) Synthesize(ctx context.Context, req Request) (_ *Audio, err error) {
	req, err = req.normalize()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observe(azureName, "synthesize", start, err) }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1",
		strings.NewReader(buildSSML(req.Text, req.voiceName(c.voices), req.LanguageCode)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", azureOutputFormats[req.Format])
	httpReq.Header.Set("User-Agent", "langtutor")

	body, err := c.do(httpReq, "synthesize")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, provider.Empty(azureName, "synthesize", "empty audio response")
	}
	return &Audio{Data: body, Format: req.Format}, nil
}

func (c *AzureClient) Voices(ctx context.Context, languageCode string) (_ []Voice, err error) {
	start := time.Now()
	defer func() { observe(azureName, "voices", start, err) }()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices/list", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	body, err := c.do(httpReq, "voices")
	if err != nil {
		return nil, err
	}

	var list []azureVoice
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var voices []Voice
	for _, v := range list {
		if languageCode != "" && !strings.EqualFold(v.Locale, languageCode) {
			continue
		}
		voices = append(voices, Voice{Name: v.ShortName, LanguageCode: v.Locale, Gender: parseGender(v.Gender)})
	}
	return voices, nil
}

func (c *AzureClient) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.Wrap(azureName, op, fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, provider.FromStatus(azureName, op, resp.StatusCode, body)
	}
	return body, nil
}

// SetBaseURL sets the base URL for testing.
func (c *AzureClient) SetBaseURL(url string) {
	c.baseURL = url
}

func buildSSML(text, voice, lang string) string {
	return fmt.Sprintf(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="%s"><voice name="%s">%s</voice></speak>`,
		xmlEscape(lang), xmlEscape(voice), xmlEscape(text))
}

// xmlEscape escapes s for use as XML text or a quoted attribute value.
func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
