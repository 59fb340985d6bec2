package openai

import (
	"context"
	"errors"

	openaiapi "github.com/sashabaranov/go-openai"

	"langtutor/internal/llm"
	"langtutor/internal/provider"
)

var _ llm.Completer = (*Client)(nil)

type Client struct {
	api   *openaiapi.Client
	name  string
	model string
}

type Options struct {
	// Name labels errors and metrics; "openai" when empty.
	Name    string
	Model   string
	BaseURL string
}

func NewClient(apiKey string, opts Options) *Client {
	cfg := openaiapi.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &Client{
		api:   openaiapi.NewClientWithConfig(cfg),
		name:  name,
		model: opts.Model,
	}
}

// NewDeepSeekClient talks to DeepSeek's OpenAI-compatible endpoint.
func NewDeepSeekClient(apiKey, model, baseURL string) *Client {
	return NewClient(apiKey, Options{Name: "deepseek", Model: model, BaseURL: baseURL})
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	messages := make([]openaiapi.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiapi.ChatCompletionMessage{
			Role:    openaiapi.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openaiapi.ChatMessageRoleUser
		if m.Role == llm.RoleAssistant {
			role = openaiapi.ChatMessageRoleAssistant
		}
		messages = append(messages, openaiapi.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openaiapi.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", c.wrap(err)
	}

	if len(resp.Choices) == 0 {
		return "", provider.Empty(c.name, "complete", "no response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) wrap(err error) error {
	var apiErr *openaiapi.APIError
	if errors.As(err, &apiErr) {
		return &provider.ProviderError{
			Kind:     provider.KindFromStatus(apiErr.HTTPStatusCode),
			Provider: c.name,
			Op:       "complete",
			Err:      err,
		}
	}
	var reqErr *openaiapi.RequestError
	if errors.As(err, &reqErr) {
		return &provider.ProviderError{
			Kind:     provider.KindFromStatus(reqErr.HTTPStatusCode),
			Provider: c.name,
			Op:       "complete",
			Err:      err,
		}
	}
	return provider.Wrap(c.name, "complete", err)
}
