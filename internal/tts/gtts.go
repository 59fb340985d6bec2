package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"langtutor/internal/provider"
)

const (
	gttsName      = "gtts"
	gttsBaseURL   = "https://translate.google.com/translate_tts"
	gttsMaxChunk  = 200
	gttsUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko)"
)

var _ Provider = (*GTTSClient)(nil)

// GTTSClient uses the Google Translate speech endpoint. It has a single voice
// per language and only produces MP3.
type GTTSClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewGTTSClient() *GTTSClient {
	return &GTTSClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    gttsBaseURL,
	}
}

func (c *GTTSClient) Name() string {
	return gttsName
}

func (c *GTTSClient) Synthesize(ctx context.Context, req Request) (_ *Audio, err error) {
	req, err = req.normalize()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observe(gttsName, "synthesize", start, err) }()

	chunks := splitText(req.Text, gttsMaxChunk)
	parts := make([][]byte, 0, len(chunks))
	for i, chunk := range chunks {
		data, err := c.fetch(ctx, chunk, languageOnly(req.LanguageCode), i, len(chunks))
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
	}

	audio := MergeMP3(parts)
	if len(audio) == 0 {
		return nil, provider.Empty(gttsName, "synthesize", "empty audio response")
	}
	return &Audio{Data: audio, Format: FormatMP3}, nil
}

func (c *GTTSClient) fetch(ctx context.Context, text, lang string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", gttsUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.Wrap(gttsName, "synthesize", fmt.Errorf("send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, provider.FromStatus(gttsName, "synthesize", resp.StatusCode, body)
	}
	return body, nil
}

func (c *GTTSClient) Voices(_ context.Context, languageCode string) ([]Voice, error) {
	if languageCode == "" {
		languageCode = DefaultLanguage
	}
	return []Voice{{Name: "gtts-" + languageOnly(languageCode), LanguageCode: languageCode}}, nil
}

// SetBaseURL sets the base URL for testing.
func (c *GTTSClient) SetBaseURL(url string) {
	c.baseURL = url
}

// splitText cuts text into chunks of at most max runes, preferring sentence
// ends, then spaces.
func splitText(text string, max int) []string {
	var chunks []string
	rest := []rune(strings.TrimSpace(text))
	for len(rest) > max {
		cut := lastIndexFunc(rest[:max+1], func(r rune) bool {
			return strings.ContainsRune(".!?;:…", r)
		})
		if cut > 0 {
			cut++
		} else if cut = lastIndexFunc(rest[:max+1], unicode.IsSpace); cut <= 0 {
			cut = max
		}
		if chunk := strings.TrimSpace(string(rest[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

func lastIndexFunc(rs []rune, f func(rune) bool) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if f(rs[i]) {
			return i
		}
	}
	return -1
}

// languageOnly turns "fr-FR" into "fr".
func languageOnly(code string) string {
	lang, _, _ := strings.Cut(code, "-")
	return strings.ToLower(lang)
}
